package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jpillora/backoff"

	"github.com/infinity-9427/shop-microservices/orders/internal/clients"
	"github.com/infinity-9427/shop-microservices/orders/internal/metrics"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

// Config tunes the dispatcher loop.
type Config struct {
	Interval               time.Duration
	BatchLimit             int
	MaxAttempts            int
	RetryBaseDelay         time.Duration
	FakePaymentEnabled     bool
	FakePaymentSuccessRate float64
}

// OutboxWorker drains pending outbox events. Claiming uses FOR UPDATE SKIP
// LOCKED, so any number of replicas can run the same loop without dividing
// work up front.
type OutboxWorker struct {
	db       repository.DB
	outbox   repository.OutboxRepository
	orders   repository.OrdersRepository
	payments clients.PaymentsClient
	cfg      Config
	logger   *slog.Logger
	backoff  *backoff.Backoff

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewOutboxWorker(
	db repository.DB,
	outbox repository.OutboxRepository,
	orders repository.OrdersRepository,
	payments clients.PaymentsClient,
	cfg Config,
	logger *slog.Logger,
) *OutboxWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &OutboxWorker{
		db:       db,
		outbox:   outbox,
		orders:   orders,
		payments: payments,
		cfg:      cfg,
		logger:   logger,
		backoff: &backoff.Backoff{
			Min:    cfg.RetryBaseDelay,
			Max:    30 * time.Minute,
			Factor: 2,
			Jitter: false,
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the dispatcher loop in its own goroutine.
func (w *OutboxWorker) Start() {
	w.logger.Info("Outbox worker started", slog.Duration("interval", w.cfg.Interval))
	go w.run()
}

// Stop signals the loop and waits for the in-flight iteration to finish; a
// claim transaction is never abandoned mid-commit.
func (w *OutboxWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Outbox worker stopped")
}

func (w *OutboxWorker) run() {
	defer close(w.doneCh)
	for {
		if err := w.ProcessOnce(context.Background()); err != nil {
			w.logger.Error("Outbox iteration failed", slog.String("error", err.Error()))
		}
		select {
		case <-time.After(w.cfg.Interval):
		case <-w.stopCh:
			return
		}
	}
}

// ProcessOnce claims one batch of due events and runs their handlers. Event
// status updates (sent, retry schedule, dead) are applied in the claim
// transaction and committed together, so backoff state is durable even when a
// handler fails. Simulated webhooks are deferred until after the commit: the
// callback endpoint locks the same order row the claim transaction holds FOR
// UPDATE, so posting from inside the transaction would deadlock against
// ourselves until the client timeout.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	events, err := w.outbox.ClaimDue(ctx, tx, w.cfg.BatchLimit, now)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return tx.Commit(ctx)
	}

	w.logger.Info("Processing outbox events", slog.Int("count", len(events)))

	var callbacks []*models.PaymentWebhookRequest
	for _, event := range events {
		callback, err := w.handleEvent(ctx, tx, event)
		if err != nil {
			w.recordFailure(ctx, tx, event, err)
			continue
		}
		if err := w.outbox.MarkSent(ctx, tx, event.ID); err != nil {
			return err
		}
		if callback != nil {
			callbacks = append(callbacks, callback)
		}
		metrics.OutboxEventsSent.Inc()
		w.logger.Info("Outbox event processed",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
		)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	w.deliverCallbacks(ctx, callbacks)
	return nil
}

func (w *OutboxWorker) handleEvent(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) (*models.PaymentWebhookRequest, error) {
	switch event.EventType {
	case models.EventTypeOrderCreated:
		return w.handleOrderCreated(ctx, tx, event)
	default:
		// Unknown event types succeed so that newer writers do not wedge an
		// older dispatcher.
		w.logger.Warn("Unknown outbox event type, skipping",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
		)
		return nil, nil
	}
}

func (w *OutboxWorker) handleOrderCreated(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) (*models.PaymentWebhookRequest, error) {
	var payload models.OrderCreatedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return nil, err
	}

	order, err := w.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		var notFound *repository.OrderNotFoundError
		if errors.As(err, &notFound) {
			w.logger.Warn("Outbox event references missing order",
				slog.String("event_id", event.ID.String()),
				slog.String("order_id", payload.OrderID),
			)
			return nil, nil
		}
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusReserved:
		if err := w.orders.UpdateStatus(ctx, tx, orderID, models.OrderStatusPaymentPending); err != nil {
			return nil, err
		}
	case models.OrderStatusPaymentPending:
		// Redelivery after an earlier partial failure; retry the provider call.
	default:
		// Already terminal, nothing left to initiate.
		return nil, nil
	}

	paymentID, err := w.payments.CreatePayment(ctx, orderID, payload.Total)
	if err != nil {
		return nil, err
	}

	w.logger.Info("Payment initiated",
		slog.String("order_id", payload.OrderID),
		slog.String("payment_id", paymentID),
	)

	if w.cfg.FakePaymentEnabled {
		return w.simulatedCallback(paymentID, payload.OrderID), nil
	}
	return nil, nil
}

// simulatedCallback plays the provider's part: it decides the outcome with
// the configured success rate. Delivery happens post-commit.
func (w *OutboxWorker) simulatedCallback(paymentID, orderID string) *models.PaymentWebhookRequest {
	status := models.PaymentOutcomeSuccess
	if rand.Float64() >= w.cfg.FakePaymentSuccessRate {
		status = models.PaymentOutcomeFailed
	}
	return &models.PaymentWebhookRequest{
		PaymentID: paymentID,
		OrderID:   orderID,
		Status:    status,
	}
}

// deliverCallbacks posts the simulated webhooks collected during the batch.
// The events are already marked sent; a delivery failure is logged and the
// order settles on a later webhook, exactly as with a real provider.
func (w *OutboxWorker) deliverCallbacks(ctx context.Context, callbacks []*models.PaymentWebhookRequest) {
	for _, callback := range callbacks {
		w.logger.Info("Simulating payment webhook",
			slog.String("payment_id", callback.PaymentID),
			slog.String("order_id", callback.OrderID),
			slog.String("status", string(callback.Status)),
		)
		if err := w.payments.SendCallback(ctx, callback); err != nil {
			w.logger.Warn("Simulated webhook delivery failed",
				slog.String("payment_id", callback.PaymentID),
				slog.String("order_id", callback.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *OutboxWorker) recordFailure(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent, cause error) {
	event.Attempts++

	if event.Attempts >= w.cfg.MaxAttempts {
		if err := w.outbox.MarkDead(ctx, tx, event.ID, event.Attempts); err != nil {
			w.logger.Error("Failed to mark outbox event dead", slog.String("error", err.Error()))
			return
		}
		metrics.OutboxEventsDead.Inc()
		w.logger.Error("Outbox event moved to dead letter",
			slog.String("event_id", event.ID.String()),
			slog.Int("attempts", event.Attempts),
			slog.String("error", cause.Error()),
		)
		return
	}

	delay := w.nextDelay(event.Attempts)
	nextAttempt := time.Now().UTC().Add(delay)
	if err := w.outbox.ScheduleRetry(ctx, tx, event.ID, event.Attempts, nextAttempt); err != nil {
		w.logger.Error("Failed to schedule outbox retry", slog.String("error", err.Error()))
		return
	}
	w.logger.Warn("Outbox event retry scheduled",
		slog.String("event_id", event.ID.String()),
		slog.Duration("delay", delay),
		slog.Int("attempts", event.Attempts),
		slog.Int("max_attempts", w.cfg.MaxAttempts),
		slog.String("error", cause.Error()),
	)
}

// nextDelay is base * 2^(attempts-1) plus up to one second of jitter.
func (w *OutboxWorker) nextDelay(attempts int) time.Duration {
	exp := w.backoff.ForAttempt(float64(attempts - 1))
	jitter := time.Duration(rand.Float64() * float64(time.Second))
	return exp + jitter
}
