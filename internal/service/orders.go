package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/infinity-9427/shop-microservices/orders/internal/metrics"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

type OrdersService interface {
	// CreateOrder reserves stock and persists the order, its items, the
	// idempotency binding, and an order.created outbox event in one
	// transaction. The returned bool reports whether an existing order was
	// reused for the idempotency key.
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, bool, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type ordersService struct {
	db          repository.DB
	orders      repository.OrdersRepository
	products    repository.ProductsRepository
	outbox      repository.OutboxRepository
	idempotency repository.IdempotencyRepository
	logger      *slog.Logger
}

func NewOrdersService(
	db repository.DB,
	orders repository.OrdersRepository,
	products repository.ProductsRepository,
	outbox repository.OutboxRepository,
	idempotency repository.IdempotencyRepository,
	logger *slog.Logger,
) OrdersService {
	return &ordersService{
		db:          db,
		orders:      orders,
		products:    products,
		outbox:      outbox,
		idempotency: idempotency,
		logger:      logger,
	}
}

func (s *ordersService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, bool, error) {
	requestID := getRequestID(ctx)

	s.logger.InfoContext(ctx, "Creating order",
		slog.String("request_id", requestID),
		slog.String("user_email", req.UserEmail),
		slog.Int("item_count", len(req.Items)),
	)

	if err := req.Validate(); err != nil {
		s.logger.WarnContext(ctx, "Invalid order request",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, false, &ValidationError{Message: err.Error()}
	}

	requestHash := computeRequestHash(req)

	existing, err := s.idempotency.Get(ctx, idempotencyKey)
	if err != nil {
		return nil, false, s.internal(ctx, "Failed to look up idempotency key", err)
	}
	if existing != nil {
		return s.reuseExistingOrder(ctx, idempotencyKey, requestHash, existing)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, s.internal(ctx, "Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	itemsTotal, items, err := s.reserveStock(ctx, tx, req.Items)
	if err != nil {
		return nil, false, err
	}

	order := &models.Order{
		ID:         uuid.New(),
		UserEmail:  req.UserEmail,
		Status:     models.OrderStatusReserved,
		ItemsTotal: models.FormatPrice(itemsTotal),
		Items:      items,
	}
	if err := s.orders.Insert(ctx, tx, order); err != nil {
		return nil, false, s.internal(ctx, "Failed to insert order", err)
	}

	if err := s.idempotency.Insert(ctx, tx, idempotencyKey, requestHash, order.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent request with the same key won the race. Drop our
			// reservation and return the winner's order if the payload matches.
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				return nil, false, s.internal(ctx, "Failed to roll back after idempotency race", rbErr)
			}
			winner, lookupErr := s.idempotency.Get(ctx, idempotencyKey)
			if lookupErr != nil {
				return nil, false, s.internal(ctx, "Failed to re-read idempotency key", lookupErr)
			}
			if winner != nil {
				return s.reuseExistingOrder(ctx, idempotencyKey, requestHash, winner)
			}
			return nil, false, &IdempotencyConflictError{Key: idempotencyKey}
		}
		return nil, false, s.internal(ctx, "Failed to bind idempotency key", err)
	}

	event, err := buildOrderCreatedEvent(order)
	if err != nil {
		return nil, false, s.internal(ctx, "Failed to build outbox event", err)
	}
	if err := s.outbox.Insert(ctx, tx, event); err != nil {
		return nil, false, s.internal(ctx, "Failed to insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, s.internal(ctx, "Failed to commit order transaction", err)
	}

	metrics.OrdersCreated.Inc()

	s.logger.InfoContext(ctx, "Order created",
		slog.String("request_id", requestID),
		slog.String("order_id", order.ID.String()),
		slog.String("items_total", order.ItemsTotal),
		slog.Int("item_count", len(order.Items)),
	)

	return order, false, nil
}

// reuseExistingOrder resolves an idempotency-key hit: same hash reloads the
// bound order, a different hash is a conflict.
func (s *ordersService) reuseExistingOrder(ctx context.Context, key, requestHash string, existing *models.IdempotencyKey) (*models.Order, bool, error) {
	if existing.RequestHash != requestHash {
		return nil, false, &IdempotencyConflictError{Key: key}
	}

	order, err := s.orders.GetByID(ctx, existing.OrderID)
	if err != nil {
		var notFound *repository.OrderNotFoundError
		if errors.As(err, &notFound) {
			return nil, false, s.internal(ctx, "Idempotency key references missing order", err)
		}
		return nil, false, s.internal(ctx, "Failed to reload order for idempotency key", err)
	}

	s.logger.InfoContext(ctx, "Duplicate create request, returning existing order",
		slog.String("request_id", getRequestID(ctx)),
		slog.String("order_id", order.ID.String()),
	)
	return order, true, nil
}

// reserveStock locks the referenced products, validates availability against
// the running post-debit balance and debits stock per request line. Returns
// the order total and the priced items.
func (s *ordersService) reserveStock(ctx context.Context, tx pgx.Tx, lines []models.CreateOrderItemRequest) (decimal.Decimal, []models.OrderItem, error) {
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	distinct := repository.SortProductIDs(ids)

	products, err := s.products.GetByIDsForUpdate(ctx, tx, distinct)
	if err != nil {
		return decimal.Zero, nil, s.internal(ctx, "Failed to lock products", err)
	}

	productMap := make(map[uuid.UUID]*models.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	if len(products) != len(distinct) {
		var missing []uuid.UUID
		for _, id := range distinct {
			if _, ok := productMap[id]; !ok {
				missing = append(missing, id)
			}
		}
		return decimal.Zero, nil, &ProductsMissingError{IDs: missing}
	}

	balance := make(map[uuid.UUID]int, len(products))
	for _, p := range products {
		balance[p.ID] = p.Stock
	}

	itemsTotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		product := productMap[line.ProductID]

		if !product.IsActive {
			return decimal.Zero, nil, &ProductInactiveError{ID: product.ID, Name: product.Name}
		}
		if balance[product.ID] < line.Quantity {
			return decimal.Zero, nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: balance[product.ID],
			}
		}
		balance[product.ID] -= line.Quantity

		price, err := product.GetPriceDecimal()
		if err != nil {
			return decimal.Zero, nil, s.internal(ctx, "Invalid product price", err)
		}
		itemsTotal = itemsTotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))

		items = append(items, models.OrderItem{
			ID:            uuid.New(),
			ProductID:     product.ID,
			Quantity:      line.Quantity,
			PriceSnapshot: models.FormatPrice(price),
		})
	}

	for _, id := range distinct {
		if err := s.products.UpdateStock(ctx, tx, id, balance[id]); err != nil {
			return decimal.Zero, nil, s.internal(ctx, "Failed to debit stock", err)
		}
	}

	return itemsTotal, items, nil
}

func (s *ordersService) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		var notFound *repository.OrderNotFoundError
		if errors.As(err, &notFound) {
			return nil, &OrderNotFoundError{ID: id}
		}
		return nil, s.internal(ctx, "Failed to get order", err)
	}
	return order, nil
}

func (s *ordersService) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	requestID := getRequestID(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, s.internal(ctx, "Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		var notFound *repository.OrderNotFoundError
		if errors.As(err, &notFound) {
			return nil, &OrderNotFoundError{ID: id}
		}
		return nil, s.internal(ctx, "Failed to load order for cancel", err)
	}

	if !order.Status.CanTransitionTo(models.OrderStatusCanceled) {
		return nil, &IllegalTransitionError{OrderID: id, From: order.Status, Event: "cancel"}
	}

	if order.Status.HoldsStock() {
		if err := s.restoreStock(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	if err := s.orders.UpdateStatus(ctx, tx, id, models.OrderStatusCanceled); err != nil {
		return nil, s.internal(ctx, "Failed to update order status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.internal(ctx, "Failed to commit cancel transaction", err)
	}

	order.Status = models.OrderStatusCanceled
	metrics.OrdersCanceled.Inc()

	s.logger.InfoContext(ctx, "Order canceled",
		slog.String("request_id", requestID),
		slog.String("order_id", id.String()),
	)
	return order, nil
}

// restoreStock adds each item's quantity back to its product. Product rows
// are locked in ascending id order, the same discipline as reservation.
func (s *ordersService) restoreStock(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	return restoreOrderStock(ctx, tx, s.products, s.logger, order)
}

// restoreOrderStock is shared by cancellation and payment-failure
// compensation. The price snapshots are never touched.
func restoreOrderStock(ctx context.Context, tx pgx.Tx, products repository.ProductsRepository, logger *slog.Logger, order *models.Order) error {
	ids := make([]uuid.UUID, len(order.Items))
	quantities := make(map[uuid.UUID]int, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
		quantities[item.ProductID] += item.Quantity
	}

	distinct := repository.SortProductIDs(ids)
	if _, err := products.GetByIDsForUpdate(ctx, tx, distinct); err != nil {
		return &InternalError{Message: fmt.Sprintf("failed to lock products for restock: %v", err)}
	}

	for _, id := range distinct {
		if err := products.IncrementStock(ctx, tx, id, quantities[id]); err != nil {
			return &InternalError{Message: fmt.Sprintf("failed to restore stock: %v", err)}
		}
		logger.InfoContext(ctx, "Restored stock",
			slog.String("order_id", order.ID.String()),
			slog.String("product_id", id.String()),
			slog.Int("quantity", quantities[id]),
		)
	}
	return nil
}

func buildOrderCreatedEvent(order *models.Order) (*models.OutboxEvent, error) {
	payload := models.OrderCreatedPayload{
		OrderID: order.ID.String(),
		Total:   order.ItemsTotal,
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, models.OrderCreatedPayloadItem{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.PriceSnapshot,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     models.EventTypeOrderCreated,
		Payload:       body,
		Status:        models.OutboxStatusPending,
		Attempts:      0,
		NextAttemptAt: time.Now().UTC(),
	}, nil
}

func (s *ordersService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg,
		slog.String("request_id", getRequestID(ctx)),
		slog.String("error", err.Error()),
	)
	return &InternalError{Message: msg}
}

type requestIDKey struct{}

// RequestIDKey is the context key the request-id middleware stores the
// correlation id under.
var RequestIDKey = requestIDKey{}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}
