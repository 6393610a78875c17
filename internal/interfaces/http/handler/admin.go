package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// AdminHandler handles admin sessions and order cleanup
type AdminHandler struct {
	BaseHandler
	admin *storefront.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admin *storefront.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Login godoc
// @ID           adminLogin
// @Summary      Admin login
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body storefront.LoginInput true "Credentials"
// @Success      200 {object} Envelope[auth.Token]
// @Failure      400 {object} ErrorEnvelope
// @Failure      401 {object} ErrorEnvelope
// @Failure      403 {object} ErrorEnvelope
// @Router       /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req storefront.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(c, err)
		return
	}
	token, err := h.admin.Login(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, token)
}

// Logout godoc
// @ID           adminLogout
// @Summary      Revoke the current admin token
// @Tags         admin
// @Security     BearerAuth
// @Success      204
// @Failure      401 {object} ErrorEnvelope
// @Router       /admin/logout [post]
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.admin.Logout(c.Request.Context(), middleware.GetAdminClaims(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListOrders godoc
// @ID           adminListOrders
// @Summary      List orders
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size (max 100)" default(20)
// @Param        order_by  query string false "created_at, total_amount or customer_name"
// @Param        order_dir query string false "asc or desc"
// @Param        search    query string false "Customer name or phone"
// @Success      200 {object} Envelope[[]storefront.OrderResponse]
// @Failure      401 {object} ErrorEnvelope
// @Router       /admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	var q storefront.ListOrdersInput
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleBindingError(c, err)
		return
	}
	page, err := h.admin.ListOrders(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// GetOrder godoc
// @ID           adminGetOrder
// @Summary      Get one order
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} Envelope[storefront.OrderResponse]
// @Failure      404 {object} ErrorEnvelope
// @Router       /admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := h.admin.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// DeleteOrder godoc
// @ID           adminDeleteOrder
// @Summary      Delete one order
// @Tags         admin
// @Security     BearerAuth
// @Param        id path string true "Order ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorEnvelope
// @Router       /admin/orders/{id} [delete]
func (h *AdminHandler) DeleteOrder(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteOrder(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// DeleteOrdersBefore godoc
// @ID           adminCleanupOrders
// @Summary      Delete orders created before a cutoff
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        before query string true "RFC3339 cutoff" format(date-time)
// @Success      200 {object} Envelope[storefront.CleanupResult]
// @Failure      400 {object} ErrorEnvelope
// @Router       /admin/orders [delete]
func (h *AdminHandler) DeleteOrdersBefore(c *gin.Context) {
	before, ok := h.timeQuery(c, "before")
	if !ok {
		return
	}
	res, err := h.admin.DeleteOrdersBefore(c.Request.Context(), before)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
