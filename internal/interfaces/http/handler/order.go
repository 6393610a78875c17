package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// Idempotency headers
const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

// OrderHandler handles shopper order submission
type OrderHandler struct {
	BaseHandler
	orders *storefront.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *storefront.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Submit godoc
// @ID           submitOrder
// @Summary      Place an order
// @Description  Validates and stores an order, then forwards it to the order spreadsheet. A repeated Idempotency-Key returns the first result with 200.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client idempotency key"
// @Param        request body storefront.SubmitOrderInput true "Order"
// @Success      201 {object} Envelope[storefront.OrderResponse]
// @Success      200 {object} Envelope[storefront.OrderResponse]
// @Failure      400 {object} ErrorEnvelope
// @Failure      409 {object} ErrorEnvelope
// @Failure      429 {object} ErrorEnvelope
// @Router       /orders [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	var req storefront.SubmitOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(c, err)
		return
	}

	resp, replayed, err := h.orders.Submit(c.Request.Context(), c.GetHeader(IdempotencyKeyHeader), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if replayed {
		c.Header(IdempotentReplayedHeader, "true")
		c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
		return
	}
	h.Created(c, resp)
}
