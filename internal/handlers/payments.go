package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

type PaymentsHandler struct {
	service            service.PaymentsService
	fakePaymentEnabled bool
	logger             *slog.Logger
}

func NewPaymentsHandler(service service.PaymentsService, fakePaymentEnabled bool, logger *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		service:            service,
		fakePaymentEnabled: fakePaymentEnabled,
		logger:             logger,
	}
}

// Callback receives the provider's payment outcome. The signature middleware
// has already authenticated the body by the time this runs.
func (h *PaymentsHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if !req.Valid() {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be success or failed")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order_id")
		return
	}

	order, err := h.service.ProcessCallback(ctx, req.PaymentID, orderID, req.Status)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// FakePayment stands in for a real provider's create-payment endpoint. The
// outbox worker posts here and gets back a payment id; the simulated outcome
// arrives later through Callback.
func (h *PaymentsHandler) FakePayment(c *gin.Context) {
	if !h.fakePaymentEnabled {
		respondWithError(c, http.StatusServiceUnavailable, "FAKE_PAYMENTS_DISABLED", "Fake payment provider is disabled")
		return
	}

	var req models.FakePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	paymentID := "pay_" + uuid.NewString()
	h.logger.InfoContext(c.Request.Context(), "Fake payment created",
		slog.String("payment_id", paymentID),
		slog.String("order_id", req.OrderID),
		slog.String("amount", req.Amount),
	)

	c.JSON(http.StatusOK, models.FakePaymentResponse{
		PaymentID: paymentID,
		Status:    "pending",
	})
}
