package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/metrics"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

type PaymentsService interface {
	// ProcessCallback applies a payment outcome to an order. Callbacks on
	// terminal orders are no-ops so webhook replays always succeed.
	ProcessCallback(ctx context.Context, paymentID string, orderID uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error)
}

type paymentsService struct {
	db       repository.DB
	orders   repository.OrdersRepository
	products repository.ProductsRepository
	logger   *slog.Logger
}

func NewPaymentsService(
	db repository.DB,
	orders repository.OrdersRepository,
	products repository.ProductsRepository,
	logger *slog.Logger,
) PaymentsService {
	return &paymentsService{
		db:       db,
		orders:   orders,
		products: products,
		logger:   logger,
	}
}

func (s *paymentsService) ProcessCallback(ctx context.Context, paymentID string, orderID uuid.UUID, outcome models.PaymentOutcome) (*models.Order, error) {
	requestID := getRequestID(ctx)

	s.logger.InfoContext(ctx, "Processing payment callback",
		slog.String("request_id", requestID),
		slog.String("payment_id", paymentID),
		slog.String("order_id", orderID.String()),
		slog.String("status", string(outcome)),
	)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, s.internal(ctx, "Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		var notFound *repository.OrderNotFoundError
		if errors.As(err, &notFound) {
			return nil, &OrderNotFoundError{ID: orderID}
		}
		return nil, s.internal(ctx, "Failed to load order for payment callback", err)
	}

	if order.Status.IsTerminal() {
		s.logger.InfoContext(ctx, "Payment callback on terminal order, ignoring",
			slog.String("request_id", requestID),
			slog.String("order_id", orderID.String()),
			slog.String("order_status", string(order.Status)),
		)
		return order, nil
	}

	switch outcome {
	case models.PaymentOutcomeSuccess:
		if !order.Status.CanTransitionTo(models.OrderStatusPaid) {
			return nil, &IllegalTransitionError{OrderID: orderID, From: order.Status, Event: "payment success"}
		}
		if err := s.orders.UpdateStatus(ctx, tx, orderID, models.OrderStatusPaid); err != nil {
			return nil, s.internal(ctx, "Failed to mark order paid", err)
		}
		order.Status = models.OrderStatusPaid

	case models.PaymentOutcomeFailed:
		if !order.Status.HoldsStock() {
			return nil, &IllegalTransitionError{OrderID: orderID, From: order.Status, Event: "payment failure"}
		}
		if err := restoreOrderStock(ctx, tx, s.products, s.logger, order); err != nil {
			return nil, err
		}
		if err := s.orders.UpdateStatus(ctx, tx, orderID, models.OrderStatusCanceled); err != nil {
			return nil, s.internal(ctx, "Failed to cancel order after payment failure", err)
		}
		order.Status = models.OrderStatusCanceled

	default:
		return nil, &ValidationError{Message: "unknown payment status"}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, s.internal(ctx, "Failed to commit payment callback", err)
	}

	switch order.Status {
	case models.OrderStatusPaid:
		metrics.OrdersPaid.Inc()
	case models.OrderStatusCanceled:
		metrics.OrdersCanceled.Inc()
	}

	s.logger.InfoContext(ctx, "Payment callback applied",
		slog.String("request_id", requestID),
		slog.String("order_id", orderID.String()),
		slog.String("order_status", string(order.Status)),
	)
	return order, nil
}

func (s *paymentsService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg,
		slog.String("request_id", getRequestID(ctx)),
		slog.String("error", err.Error()),
	)
	return &InternalError{Message: msg}
}
