package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"eatery/internal/events"
	"eatery/internal/models"
	"eatery/internal/orders"
)

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventIntentSucceeded   = "payment_intent.succeeded"
	EventIntentFailed      = "payment_intent.payment_failed"
)

type Outcome string

const (
	OutcomeSettled      Outcome = "settled"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnresolvable Outcome = "unresolvable"
)

type Result struct {
	Outcome       Outcome
	EventID       string
	EventType     string
	OrderID       string
	PaymentStatus models.PaymentStatus
	Reason        string
}

// Settler is the part of the order store reconciliation writes through.
type Settler interface {
	SettlePayment(ctx context.Context, match orders.PaymentMatch) (models.Order, bool, error)
}

type Reconciler struct {
	secret    string
	store     Settler
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconciler(secret string, store Settler, publisher events.Publisher, logger *zap.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		secret:    strings.TrimSpace(secret),
		store:     store,
		publisher: publisher,
		logger:    logger.Named("reconciler"),
		now:       time.Now,
	}
}

// Verify authenticates the exact bytes received. Nothing is parsed before the signature
// check succeeds.
func (r *Reconciler) Verify(payload []byte, signature string) (stripe.Event, error) {
	if r.secret == "" {
		return stripe.Event{}, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, r.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// Handle verifies and applies one delivery.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	event, err := r.Verify(payload, signature)
	if err != nil {
		return Result{}, err
	}
	return r.Apply(ctx, event)
}

type correlation struct {
	userID string
	ref    string
	amount int64
	detail string
}

// Apply maps an authenticated event onto at most one order. An error is returned only when
// the store failed, so the delivery should be retried.
func (r *Reconciler) Apply(ctx context.Context, event stripe.Event) (Result, error) {
	result := Result{EventID: event.ID, EventType: string(event.Type)}

	var (
		corr  correlation
		match orders.PaymentMatch
		err   error
	)
	switch event.Type {
	case EventCheckoutCompleted:
		corr, err = checkoutCorrelation(event)
		match.From = []models.PaymentStatus{models.PaymentStatusPending}
		match.To = models.PaymentStatusPaid
	case EventIntentSucceeded:
		corr, err = intentCorrelation(event)
		match.From = []models.PaymentStatus{models.PaymentStatusPending}
		match.To = models.PaymentStatusPaid
	case EventIntentFailed:
		corr, err = intentCorrelation(event)
		match.From = []models.PaymentStatus{models.PaymentStatusPending}
		match.To = models.PaymentStatusFailed
	default:
		r.logger.Debug("unhandled webhook event", zap.String("eventId", event.ID), zap.String("type", result.EventType))
		result.Outcome = OutcomeIgnored
		return result, nil
	}
	if err != nil {
		return r.unresolvable(result, err.Error()), nil
	}

	userID, err := primitive.ObjectIDFromHex(corr.userID)
	if err != nil {
		return r.unresolvable(result, "metadata userId is missing or malformed"), nil
	}
	if corr.ref == "" {
		return r.unresolvable(result, "payment reference is missing"), nil
	}
	if match.To == models.PaymentStatusPaid {
		// a charge only settles the order whose total it covers exactly
		if corr.amount <= 0 {
			return r.unresolvable(result, "payment amount is missing"), nil
		}
		match.Amount = corr.amount
	}
	match.UserID = userID
	match.ExternalPaymentRef = corr.ref
	match.At = r.now().UTC()

	order, ok, err := r.store.SettlePayment(ctx, match)
	if err != nil {
		r.logger.Error("failed to settle payment",
			zap.String("eventId", event.ID),
			zap.String("paymentIntentId", corr.ref),
			zap.Error(err),
		)
		return Result{}, err
	}
	if !ok {
		return r.unresolvable(result, fmt.Sprintf("no pending order for user %s, payment %s and amount %d", corr.userID, corr.ref, match.Amount)), nil
	}

	fields := []zap.Field{
		zap.String("eventId", event.ID),
		zap.String("type", result.EventType),
		zap.String("orderId", order.ID.Hex()),
		zap.String("paymentStatus", string(order.PaymentStatus)),
	}
	if corr.detail != "" {
		fields = append(fields, zap.String("detail", corr.detail))
	}
	r.logger.Info("payment reconciled", fields...)

	if err := r.publisher.Publish(ctx, events.PaymentChanged(order, match.At)); err != nil {
		r.logger.Warn("failed to publish payment event", zap.String("orderId", order.ID.Hex()), zap.Error(err))
	}

	result.Outcome = OutcomeSettled
	result.OrderID = order.ID.Hex()
	result.PaymentStatus = order.PaymentStatus
	return result, nil
}

func (r *Reconciler) unresolvable(result Result, reason string) Result {
	r.logger.Warn("unresolvable webhook event",
		zap.String("eventId", result.EventID),
		zap.String("type", result.EventType),
		zap.String("reason", reason),
	)
	result.Outcome = OutcomeUnresolvable
	result.Reason = reason
	return result
}

func checkoutCorrelation(event stripe.Event) (correlation, error) {
	if event.Data == nil {
		return correlation{}, errors.New("event has no data")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return correlation{}, fmt.Errorf("decode checkout session: %v", err)
	}
	corr := correlation{userID: session.Metadata[metadataUserID], amount: session.AmountTotal}
	if session.PaymentIntent != nil {
		corr.ref = session.PaymentIntent.ID
	}
	return corr, nil
}

func intentCorrelation(event stripe.Event) (correlation, error) {
	if event.Data == nil {
		return correlation{}, errors.New("event has no data")
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return correlation{}, fmt.Errorf("decode payment intent: %v", err)
	}
	corr := correlation{userID: intent.Metadata[metadataUserID], ref: intent.ID, amount: intent.AmountReceived}
	if corr.amount == 0 {
		corr.amount = intent.Amount
	}
	if intent.LastPaymentError != nil {
		corr.detail = intent.LastPaymentError.Msg
	}
	return corr, nil
}
