package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/tagaudit"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// TaggingConfigResponse is what storefront pages need to run the injection
// coordinator and the inspection detector
type TaggingConfigResponse struct {
	TrackingID    string                       `json:"tracking_id"`
	ScriptURL     string                       `json:"script_url"`
	BeaconURL     string                       `json:"beacon_url"`
	GlobalName    string                       `json:"global_name"`
	PageViewEvent string                       `json:"page_view_event"`
	InlineSnippet string                       `json:"inline_snippet,omitempty"`
	RetryDelayMs  int64                        `json:"retry_delay_ms"`
	LoadTimeoutMs int64                        `json:"load_timeout_ms"`
	QueueCapacity int                          `json:"queue_capacity"`
	ClaimTTLMs    int64                        `json:"claim_ttl_ms"`
	Strategies    []tagging.StrategyDescriptor `json:"strategies"`
	Tamper        TamperSettings               `json:"tamper"`
}

// TamperSettings configures the page-side inspection detector
type TamperSettings struct {
	Enabled        bool  `json:"enabled"`
	Threshold      int   `json:"threshold"`
	PollIntervalMs int64 `json:"poll_interval_ms"`
}

// NewTaggingConfigResponse builds the page configuration from settings
func NewTaggingConfigResponse(tc config.TaggingConfig, tamper config.TamperConfig) TaggingConfigResponse {
	globalName := tc.GlobalName
	if globalName == "" {
		globalName = apptagging.DefaultGlobalName
	}
	event := tc.PageViewEvent
	if event == "" {
		event = apptagging.DefaultPageViewEvent
	}
	return TaggingConfigResponse{
		TrackingID:    tc.TrackingID,
		ScriptURL:     apptagging.ExpandURL(tc.ScriptURL, tc.TrackingID),
		BeaconURL:     apptagging.BeaconURL(tc.BeaconURL, tc.TrackingID, event),
		GlobalName:    globalName,
		PageViewEvent: event,
		InlineSnippet: tc.InlineSnippet,
		RetryDelayMs:  tc.RetryDelay.Milliseconds(),
		LoadTimeoutMs: tc.LoadTimeout.Milliseconds(),
		QueueCapacity: tc.QueueCapacity,
		ClaimTTLMs:    tc.ClaimTTL.Milliseconds(),
		Strategies:    tagging.SortByPriority(tagging.DefaultStrategies()),
		Tamper: TamperSettings{
			Enabled:        tamper.Enabled,
			Threshold:      tamper.Threshold,
			PollIntervalMs: tamper.PollInterval.Milliseconds(),
		},
	}
}

// AuditRequest asks for a tag audit of one page
type AuditRequest struct {
	URL string `json:"url" binding:"required,http_url,max=2048"`
}

// TaggingHandler serves the page tagging configuration and tag audits
type TaggingHandler struct {
	BaseHandler
	page   TaggingConfigResponse
	audits *tagaudit.Service
}

// NewTaggingHandler creates a new TaggingHandler
func NewTaggingHandler(page TaggingConfigResponse, audits *tagaudit.Service) *TaggingHandler {
	return &TaggingHandler{page: page, audits: audits}
}

// GetConfig godoc
// @ID           getTaggingConfig
// @Summary      Page tagging configuration
// @Description  Strategy descriptors, script and beacon URLs, and detector settings used by storefront pages
// @Tags         tagging
// @Produce      json
// @Success      200 {object} Envelope[TaggingConfigResponse]
// @Router       /tagging/config [get]
func (h *TaggingHandler) GetConfig(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	h.Success(c, h.page)
}

// RunAudit godoc
// @ID           runTagAudit
// @Summary      Audit tag installation on a page
// @Description  Opens the URL in a headless browser, mounts the coordinator and reports which strategy installed the tag
// @Tags         tagging
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body AuditRequest true "Page to audit"
// @Success      200 {object} Envelope[tagging.AuditReport]
// @Failure      400 {object} ErrorEnvelope
// @Failure      503 {object} ErrorEnvelope
// @Router       /tagging/audits [post]
func (h *TaggingHandler) RunAudit(c *gin.Context) {
	var req AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(c, err)
		return
	}
	report, err := h.audits.Audit(c.Request.Context(), req.URL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// RecentAudits godoc
// @ID           listTagAudits
// @Summary      Recent tag audits
// @Tags         tagging
// @Security     BearerAuth
// @Produce      json
// @Param        limit query int false "Max reports (1-100)" default(20)
// @Success      200 {object} Envelope[[]tagging.AuditReport]
// @Router       /tagging/audits [get]
func (h *TaggingHandler) RecentAudits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	reports, err := h.audits.Recent(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reports)
}
