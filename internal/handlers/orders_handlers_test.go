package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/infinity-9427/shop-microservices/orders/internal/middleware"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	svc "github.com/infinity-9427/shop-microservices/orders/internal/service"
)

// fakeOrdersService implements svc.OrdersService for handler tests
type fakeOrdersService struct {
	createFn func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	cancelFn func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (f *fakeOrdersService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
	return f.createFn(ctx, req, key)
}
func (f *fakeOrdersService) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.getFn(ctx, id)
}
func (f *fakeOrdersService) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.cancelFn(ctx, id)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newOrdersRouter(svcImpl svc.OrdersService, limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, 5, testLogger())
	}
	r := gin.New()
	h := NewOrdersHandler(svcImpl, limiter, testLogger())
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	return r
}

func validOrderBody(productID uuid.UUID) *bytes.Buffer {
	return bytes.NewBufferString(fmt.Sprintf(
		`{"user_email":"alice@example.com","items":[{"product_id":"%s","quantity":2}]}`, productID))
}

func TestCreateOrderHandler_Success(t *testing.T) {
	orderID := uuid.New()
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		assert.Equal(t, "abc", key)
		return &models.Order{ID: orderID, Status: models.OrderStatusReserved, ItemsTotal: "39.98"}, false, nil
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/orders/"+orderID.String(), w.Header().Get("Location"))

	var order models.Order
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, "39.98", order.ItemsTotal)
}

func TestCreateOrderHandler_ReplayStillReturns201(t *testing.T) {
	orderID := uuid.New()
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		return &models.Order{ID: orderID, Status: models.OrderStatusReserved}, true, nil
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateOrderHandler_MissingIdempotencyKey(t *testing.T) {
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		t.Fatal("service should not be called without an idempotency key")
		return nil, false, nil
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var er models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &er)
	assert.Equal(t, "VALIDATION_ERROR", er.Error)
}

func TestCreateOrderHandler_OverlongIdempotencyKey(t *testing.T) {
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		t.Fatal("service should not be called")
		return nil, false, nil
	}}
	router := newOrdersRouter(fs, nil)

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'k'
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", string(long))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderHandler_InsufficientStockIs409(t *testing.T) {
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		return nil, false, &svc.InsufficientStockError{ProductID: uuid.New(), Name: "Widget", Requested: 10, Available: 5}
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var er models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &er)
	assert.Equal(t, "INSUFFICIENT_STOCK", er.Error)
}

func TestCreateOrderHandler_IdempotencyConflictIs409(t *testing.T) {
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		return nil, false, &svc.IdempotencyConflictError{Key: key}
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var er models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &er)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", er.Error)
}

func TestCreateOrderHandler_UnknownProductIs400(t *testing.T) {
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		return nil, false, &svc.ProductsMissingError{IDs: []uuid.UUID{uuid.New()}}
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders", validOrderBody(uuid.New()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var er models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &er)
	assert.Equal(t, "PRODUCTS_MISSING", er.Error)
}

func TestCreateOrderHandler_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := middleware.NewRateLimiter(client, 2, testLogger())

	orderID := uuid.New()
	fs := &fakeOrdersService{createFn: func(ctx context.Context, req *models.CreateOrderRequest, key string) (*models.Order, bool, error) {
		return &models.Order{ID: orderID, Status: models.OrderStatusReserved}, false, nil
	}}
	router := newOrdersRouter(fs, limiter)

	productID := uuid.New()
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/orders", validOrderBody(productID))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", fmt.Sprintf("key-%d", i))
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, http.StatusCreated, statuses[0])
	assert.Equal(t, http.StatusCreated, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2])
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	fs := &fakeOrdersService{getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return nil, &svc.OrderNotFoundError{ID: id}
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/orders/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrderHandler_InvalidID(t *testing.T) {
	fs := &fakeOrdersService{getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		t.Fatal("service should not be called for malformed ids")
		return nil, nil
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/orders/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrderHandler_TerminalIs409(t *testing.T) {
	fs := &fakeOrdersService{cancelFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return nil, &svc.IllegalTransitionError{OrderID: id, From: models.OrderStatusPaid, Event: "cancel"}
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders/"+uuid.NewString()+"/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var er models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &er)
	assert.Equal(t, "ILLEGAL_TRANSITION", er.Error)
}

func TestCancelOrderHandler_Success(t *testing.T) {
	orderID := uuid.New()
	fs := &fakeOrdersService{cancelFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return &models.Order{ID: id, Status: models.OrderStatusCanceled}, nil
	}}
	router := newOrdersRouter(fs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/orders/"+orderID.String()+"/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
}
