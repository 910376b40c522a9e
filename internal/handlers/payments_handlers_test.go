package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/infinity-9427/shop-microservices/orders/internal/middleware"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/security"
	svc "github.com/infinity-9427/shop-microservices/orders/internal/service"
)

type fakePaymentsService struct {
	processFn func(ctx context.Context, paymentID string, orderID uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error)
}

func (f *fakePaymentsService) ProcessCallback(ctx context.Context, paymentID string, orderID uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
	return f.processFn(ctx, paymentID, orderID, outcome)
}

const testWebhookSecret = "test-webhook-secret"

func newPaymentsRouter(svcImpl svc.PaymentsService, fakeEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPaymentsHandler(svcImpl, fakeEnabled, testLogger())
	r.POST("/payments/callback", middleware.VerifySignature(testWebhookSecret, testLogger()), h.Callback)
	r.POST("/_fake_payments", h.FakePayment)
	return r
}

func signedCallbackRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req, _ := http.NewRequest("POST", "/payments/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", security.ComputeSignature(body, testWebhookSecret))
	return req
}

func TestPaymentCallback_Success(t *testing.T) {
	orderID := uuid.New()
	fs := &fakePaymentsService{processFn: func(ctx context.Context, paymentID string, id uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
		assert.Equal(t, "pay_1", paymentID)
		assert.Equal(t, orderID, id)
		assert.Equal(t, models.PaymentOutcomeSuccess, outcome)
		return &models.Order{ID: id, Status: models.OrderStatusPaid}, nil
	}}
	router := newPaymentsRouter(fs, false)

	body := []byte(fmt.Sprintf(`{"payment_id":"pay_1","order_id":"%s","status":"success"}`, orderID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedCallbackRequest(t, body))

	assert.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestPaymentCallback_MissingSignatureIs401(t *testing.T) {
	fs := &fakePaymentsService{processFn: func(ctx context.Context, paymentID string, id uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
		t.Fatal("service should not be called without a valid signature")
		return nil, nil
	}}
	router := newPaymentsRouter(fs, false)

	body := []byte(fmt.Sprintf(`{"payment_id":"pay_1","order_id":"%s","status":"success"}`, uuid.New()))
	req, _ := http.NewRequest("POST", "/payments/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentCallback_WrongSignatureIs401(t *testing.T) {
	fs := &fakePaymentsService{processFn: func(ctx context.Context, paymentID string, id uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
		t.Fatal("service should not be called with a forged signature")
		return nil, nil
	}}
	router := newPaymentsRouter(fs, false)

	body := []byte(fmt.Sprintf(`{"payment_id":"pay_1","order_id":"%s","status":"success"}`, uuid.New()))
	req, _ := http.NewRequest("POST", "/payments/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", security.ComputeSignature(body, "wrong-secret"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentCallback_UnknownStatusIs400(t *testing.T) {
	fs := &fakePaymentsService{processFn: func(ctx context.Context, paymentID string, id uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
		t.Fatal("service should not be called for malformed callbacks")
		return nil, nil
	}}
	router := newPaymentsRouter(fs, false)

	body := []byte(fmt.Sprintf(`{"payment_id":"pay_1","order_id":"%s","status":"refunded"}`, uuid.New()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedCallbackRequest(t, body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCallback_MalformedOrderIDIs400(t *testing.T) {
	fs := &fakePaymentsService{processFn: func(ctx context.Context, paymentID string, id uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
		t.Fatal("service should not be called for malformed callbacks")
		return nil, nil
	}}
	router := newPaymentsRouter(fs, false)

	body := []byte(`{"payment_id":"pay_1","order_id":"not-a-uuid","status":"success"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedCallbackRequest(t, body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFakePayment_ReturnsPaymentID(t *testing.T) {
	fs := &fakePaymentsService{}
	router := newPaymentsRouter(fs, true)

	body := []byte(fmt.Sprintf(`{"order_id":"%s","amount":"99.00"}`, uuid.New()))
	req, _ := http.NewRequest("POST", "/_fake_payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.FakePaymentResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PaymentID)
	assert.Equal(t, "pending", resp.Status)
}

func TestFakePayment_DisabledIs503(t *testing.T) {
	fs := &fakePaymentsService{}
	router := newPaymentsRouter(fs, false)

	body := []byte(fmt.Sprintf(`{"order_id":"%s","amount":"99.00"}`, uuid.New()))
	req, _ := http.NewRequest("POST", "/_fake_payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
