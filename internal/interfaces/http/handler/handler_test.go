package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/application/tagaudit"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	"github.com/storefront/backend/internal/domain/shared"
	domain "github.com/storefront/backend/internal/domain/storefront"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/headless"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockOrderRepository is a mock implementation of domain.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter shared.Filter) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOrderRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func newEngine() *gin.Engine {
	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

func doJSON(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const orderJSON = `{
	"customer_name": "Ana Souza",
	"phone": "+55 11 99999-0000",
	"address": "Rua das Flores 10",
	"items": [
		{"product_name": "Latte", "quantity": 2, "unit_price": "4.50"},
		{"product_name": "Croissant", "quantity": 1, "unit_price": 3.25}
	]
}`

// =============================================================================
// Orders
// =============================================================================

func TestOrderHandler_Submit(t *testing.T) {
	repo := new(MockOrderRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	svc := storefront.NewOrderService(repo, store, nil, nil, zaptest.NewLogger(t))
	r := newEngine()
	r.POST("/orders", NewOrderHandler(svc).Submit)

	w := doJSON(r, "POST", "/orders", orderJSON, IdempotencyKeyHeader, "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created storefront.OrderResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "12.25", created.TotalAmount.StringFixed(2))
	assert.Equal(t, 3, created.ItemCount)

	t.Run("replay", func(t *testing.T) {
		w := doJSON(r, "POST", "/orders", orderJSON, IdempotencyKeyHeader, "abc")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", w.Header().Get(IdempotentReplayedHeader))
		var replayed storefront.OrderResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &replayed))
		assert.Equal(t, created.ID, replayed.ID)
	})

	t.Run("validation error", func(t *testing.T) {
		w := doJSON(r, "POST", "/orders", `{"customer_name":"Ana","phone":"123456","address":"x","items":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, "ERR_INVALID_INPUT", env.Error.Code)
		assert.Contains(t, env.Error.Message, "items")
		assert.NotEmpty(t, env.Error.RequestID)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(r, "POST", "/orders", `{"items": "nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ERR_INVALID_JSON", decode(t, w).Error.Code)
	})

	repo.AssertExpectations(t)
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}
	r := newEngine()
	r.GET("/domain", func(c *gin.Context) { h.HandleError(c, shared.ErrNotFound) })
	r.GET("/wrapped", func(c *gin.Context) {
		h.HandleError(c, errorsJoin(shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")))
	})
	r.GET("/internal", func(c *gin.Context) { h.HandleError(c, assert.AnError) })

	w := doJSON(r, "GET", "/domain", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ERR_NOT_FOUND", decode(t, w).Error.Code)

	w = doJSON(r, "GET", "/wrapped", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unit price cannot be negative", decode(t, w).Error.Message)

	w = doJSON(r, "GET", "/internal", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

// =============================================================================
// Admin
// =============================================================================

func newAdminEngine(t *testing.T, repo *MockOrderRepository) *gin.Engine {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	tokens := auth.NewJWTService(config.JWTConfig{Secret: "handler-test-secret-0123456789abcdef", Issuer: "storefront"})
	svc := storefront.NewAdminService(repo, auth.NewCredentials("admin", hash), tokens, auth.NewInMemoryTokenBlacklist(), zaptest.NewLogger(t))
	h := NewAdminHandler(svc)

	r := newEngine()
	r.POST("/admin/login", h.Login)
	g := r.Group("/admin", middleware.AdminAuth(svc))
	g.POST("/logout", h.Logout)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.DELETE("/orders", h.DeleteOrdersBefore)
	g.DELETE("/orders/:id", h.DeleteOrder)
	return r
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(r, "POST", "/admin/login", `{"username":"admin","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var token auth.Token
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &token))
	return token.AccessToken
}

func TestAdminHandler(t *testing.T) {
	repo := new(MockOrderRepository)
	r := newAdminEngine(t, repo)
	token := login(t, r)
	bearer := []string{"Authorization", "Bearer " + token}

	order, err := domain.NewOrder(domain.Customer{Name: "Ana", Phone: "5511999990000", Address: "Rua 1"}, "",
		[]domain.ItemInput{{ProductName: "Latte", Quantity: 1}})
	require.NoError(t, err)

	t.Run("requires token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doJSON(r, "GET", "/admin/orders", "").Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := doJSON(r, "POST", "/admin/login", `{"username":"admin","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "ERR_UNAUTHORIZED", decode(t, w).Error.Code)
	})

	t.Run("list", func(t *testing.T) {
		repo.On("List", mock.Anything, mock.Anything).Return([]domain.Order{*order}, int64(1), nil).Once()
		w := doJSON(r, "GET", "/admin/orders?page=1&page_size=10", "", bearer...)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		require.NotNil(t, env.Meta)
		assert.Equal(t, int64(1), env.Meta.Total)
	})

	t.Run("get", func(t *testing.T) {
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil).Once()
		w := doJSON(r, "GET", "/admin/orders/"+order.ID.String(), "", bearer...)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(r, "GET", "/admin/orders/not-a-uuid", "", bearer...)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete one", func(t *testing.T) {
		missing := uuid.New()
		repo.On("Delete", mock.Anything, order.ID).Return(nil).Once()
		repo.On("Delete", mock.Anything, missing).Return(shared.ErrNotFound).Once()
		assert.Equal(t, http.StatusNoContent, doJSON(r, "DELETE", "/admin/orders/"+order.ID.String(), "", bearer...).Code)
		assert.Equal(t, http.StatusNotFound, doJSON(r, "DELETE", "/admin/orders/"+missing.String(), "", bearer...).Code)
	})

	t.Run("delete before", func(t *testing.T) {
		cutoff := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
		repo.On("DeleteBefore", mock.Anything, mock.MatchedBy(cutoff.Equal)).Return(int64(3), nil).Once()
		w := doJSON(r, "DELETE", "/admin/orders?before="+cutoff.Format(time.RFC3339), "", bearer...)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, string(decode(t, w).Data), `"deleted":3`)

		assert.Equal(t, http.StatusBadRequest, doJSON(r, "DELETE", "/admin/orders", "", bearer...).Code)
		assert.Equal(t, http.StatusBadRequest, doJSON(r, "DELETE", "/admin/orders?before=yesterday", "", bearer...).Code)
		future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		assert.Equal(t, http.StatusBadRequest, doJSON(r, "DELETE", "/admin/orders?before="+future, "", bearer...).Code)
	})

	t.Run("logout revokes", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, doJSON(r, "POST", "/admin/logout", "", bearer...).Code)
		w := doJSON(r, "GET", "/admin/orders", "", bearer...)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	repo.AssertExpectations(t)
}

// =============================================================================
// Uploads
// =============================================================================

func multipartBody(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	store := storage.NewMemoryStorage("https://files.example.com")
	svc := storefront.NewUploadService(store, storefront.UploadOptions{MaxSize: 1024}, nil, zaptest.NewLogger(t))
	r := newEngine()
	r.POST("/uploads", NewUploadHandler(svc).Upload)

	post := func(data []byte) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, data)
		req := httptest.NewRequest("POST", "/uploads", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("image", func(t *testing.T) {
		gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00,")
		w := post(gif)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var res storefront.UploadResult
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
		assert.Equal(t, "image/gif", res.ContentType)
		assert.True(t, strings.HasSuffix(res.Key, ".gif"))
	})

	t.Run("not an image", func(t *testing.T) {
		w := post([]byte("plain text, definitely not an image"))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		w := post(bytes.Repeat([]byte{0xff}, 2048))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := doJSON(r, "POST", "/uploads", "{}")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// System
// =============================================================================

func TestSystemHandler(t *testing.T) {
	healthy := storefront.CheckerFunc{CheckName: "database", Fn: func(context.Context) error { return nil }}
	broken := storefront.CheckerFunc{CheckName: "redis", Fn: func(context.Context) error { return assert.AnError }}

	r := newEngine()
	r.GET("/ok/health", NewSystemHandler(storefront.NewHealthService(time.Second, healthy), "storefront", "test").Health)
	sys := NewSystemHandler(storefront.NewHealthService(time.Second, healthy, broken), "storefront", "test")
	r.GET("/bad/health", sys.Health)
	r.GET("/health/live", sys.Live)
	r.GET("/system/info", sys.Info)

	w := doJSON(r, "GET", "/ok/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = doJSON(r, "GET", "/bad/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)

	assert.Equal(t, http.StatusOK, doJSON(r, "GET", "/health/live", "").Code)

	w = doJSON(r, "GET", "/system/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"name":"storefront"`)
}

// =============================================================================
// Tagging
// =============================================================================

func taggingSettings() (config.TaggingConfig, config.TamperConfig) {
	return config.TaggingConfig{
			TrackingID: "T-1",
			ScriptURL:  "https://cdn.example.com/tag.js?id={id}",
			BeaconURL:  "https://px.example.com/tr?id={id}",
			RetryDelay: 3 * time.Second,
		}, config.TamperConfig{
			Enabled:      true,
			Threshold:    160,
			PollInterval: time.Second,
		}
}

func TestTaggingHandler_GetConfig(t *testing.T) {
	tc, tamper := taggingSettings()
	r := newEngine()
	r.GET("/tagging/config", NewTaggingHandler(NewTaggingConfigResponse(tc, tamper), nil).GetConfig)

	w := doJSON(r, "GET", "/tagging/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cfg TaggingConfigResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &cfg))
	assert.Equal(t, "https://cdn.example.com/tag.js?id=T-1", cfg.ScriptURL)
	assert.Contains(t, cfg.BeaconURL, "ev=PageView")
	assert.Equal(t, apptagging.DefaultGlobalName, cfg.GlobalName)
	assert.Len(t, cfg.Strategies, len(tagging.DefaultStrategies()))
	assert.Equal(t, int64(3000), cfg.RetryDelayMs)
	assert.Equal(t, 160, cfg.Tamper.Threshold)
}

func TestTaggingHandler_Audits(t *testing.T) {
	tc, tamper := taggingSettings()
	page := NewTaggingConfigResponse(tc, tamper)

	t.Run("disabled", func(t *testing.T) {
		r := newEngine()
		h := NewTaggingHandler(page, tagaudit.NewService(nil, tagaudit.Settings{}, nil, zaptest.NewLogger(t)))
		r.POST("/tagging/audits", h.RunAudit)
		r.GET("/tagging/audits", h.RecentAudits)

		w := doJSON(r, "POST", "/tagging/audits", `{"url":"https://shop.example.com/"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = doJSON(r, "GET", "/tagging/audits", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, string(decode(t, w).Data))
	})

	t.Run("invalid url", func(t *testing.T) {
		r := newEngine()
		r.POST("/tagging/audits", NewTaggingHandler(page, nil).RunAudit)
		w := doJSON(r, "POST", "/tagging/audits", `{"url":"not a url"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ERR_VALIDATION", decode(t, w).Error.Code)
	})

	t.Run("installs", func(t *testing.T) {
		opener := tagaudit.OpenerFunc(func(context.Context, string) (tagaudit.Page, error) {
			return headless.New(
				headless.WithAutoLoad(),
				headless.WithResource("https://cdn.example.com/tag.js?id=T-1", `function track() {}`),
			), nil
		})
		svc := tagaudit.NewService(opener, tagaudit.Settings{
			Tagging: apptagging.Config{TrackingID: tc.TrackingID, ScriptURL: tc.ScriptURL, BeaconURL: tc.BeaconURL},
			Window:  2 * time.Second,
		}, nil, zaptest.NewLogger(t))

		r := newEngine()
		r.POST("/tagging/audits", NewTaggingHandler(page, svc).RunAudit)
		w := doJSON(r, "POST", "/tagging/audits", `{"url":"https://shop.example.com/"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var report tagging.AuditReport
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &report))
		assert.True(t, report.Installed)
		assert.True(t, report.BeaconFired)
	})
}

func errorsJoin(err error) error {
	return fmt.Errorf("place order: %w", err)
}
