package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"eatery/internal/events"
	"eatery/internal/models"
	"eatery/internal/orders"
)

const testSecret = "whsec_test"

// settleStore applies matches under a lock, the way a single conditional update would.
type settleStore struct {
	mu     sync.Mutex
	orders []models.Order
	wins   int
	err    error
}

func (s *settleStore) SettlePayment(_ context.Context, match orders.PaymentMatch) (models.Order, bool, error) {
	if s.err != nil {
		return models.Order{}, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.orders {
		if o.UserID != match.UserID || o.ExternalPaymentRef != match.ExternalPaymentRef {
			continue
		}
		if match.Amount > 0 && orders.MinorUnits(o.TotalAmount) != match.Amount {
			continue
		}
		for _, from := range match.From {
			if o.PaymentStatus == from {
				s.orders[i].PaymentStatus = match.To
				s.wins++
				return s.orders[i], true, nil
			}
		}
	}
	return models.Order{}, false, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// orderTotal is the total of every pendingOrder, charged in full by default.
const (
	orderTotal      = 25.64
	orderTotalCents = 2564
)

func intentEvent(eventType, intentID, userID string) []byte {
	return intentEventFor(eventType, intentID, userID, orderTotalCents)
}

func intentEventFor(eventType, intentID, userID string, cents int64) []byte {
	received := cents
	if eventType == EventIntentFailed {
		received = 0
	}
	return []byte(fmt.Sprintf(`{
  "id": "evt_%s",
  "object": "event",
  "type": %q,
  "data": {"object": {"id": %q, "object": "payment_intent", "amount": %d, "amount_received": %d, "metadata": {"userId": %q}}}
}`, intentID, eventType, intentID, cents, received, userID))
}

func checkoutEvent(sessionID, intentID, userID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_%s",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {"id": %q, "object": "checkout.session", "payment_intent": %q, "amount_total": %d, "metadata": {"userId": %q}}}
}`, sessionID, sessionID, intentID, orderTotalCents, userID))
}

func pendingOrder(ref string) models.Order {
	return models.Order{
		ID:                 primitive.NewObjectID(),
		UserID:             primitive.NewObjectID(),
		Status:             models.OrderStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		TotalAmount:        orderTotal,
		ExternalPaymentRef: ref,
	}
}

func TestHandleRejectsBadSignature(t *testing.T) {
	order := pendingOrder("pi_1")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	payload := intentEvent(EventIntentSucceeded, "pi_1", order.UserID.Hex())

	for name, header := range map[string]string{
		"missing":      "",
		"wrong secret": sign(payload, "whsec_other", time.Now()),
		"stale":        sign(payload, testSecret, time.Now().Add(-time.Hour)),
	} {
		_, err := r.Handle(context.Background(), payload, header)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected invalid signature, got %v", name, err)
		}
	}

	tampered := intentEvent(EventIntentSucceeded, "pi_1", order.UserID.Hex())
	header := sign(payload, testSecret, time.Now())
	tampered = append(tampered, ' ')
	if _, err := r.Handle(context.Background(), tampered, header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered body: expected invalid signature, got %v", err)
	}

	if store.orders[0].PaymentStatus != models.PaymentStatusPending || store.wins != 0 {
		t.Fatal("rejected events must not change the order")
	}
}

func TestHandleWithoutSecretFails(t *testing.T) {
	r := NewReconciler("", &settleStore{}, nil, nil)
	if _, err := r.Handle(context.Background(), []byte("{}"), "t=1,v1=00"); !errors.Is(err, ErrWebhookNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestDuplicateSuccessEventIsNoop(t *testing.T) {
	order := pendingOrder("pi_dup")
	store := &settleStore{orders: []models.Order{order}}
	pub := &capturePublisher{}
	r := NewReconciler(testSecret, store, pub, zap.NewNop())

	payload := intentEvent(EventIntentSucceeded, "pi_dup", order.UserID.Hex())

	first, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Outcome != OutcomeSettled || first.PaymentStatus != models.PaymentStatusPaid || first.OrderID != order.ID.Hex() {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("second delivery must be acknowledged, got %v", err)
	}
	if second.Outcome != OutcomeUnresolvable {
		t.Fatalf("expected duplicate to be a no-op, got %+v", second)
	}
	if store.orders[0].PaymentStatus != models.PaymentStatusPaid || store.wins != 1 {
		t.Fatalf("expected exactly one transition, got %d", store.wins)
	}
	if len(pub.events) != 1 || pub.events[0].Type != "order.payment.paid" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestConcurrentEventsSettleOnce(t *testing.T) {
	order := pendingOrder("pi_race")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	intent := intentEvent(EventIntentSucceeded, "pi_race", order.UserID.Hex())
	session := checkoutEvent("cs_race", "pi_race", order.UserID.Hex())

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	for i, payload := range [][]byte{intent, session} {
		wg.Add(1)
		go func(i int, payload []byte) {
			defer wg.Done()
			results[i], errs[i] = r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
		}(i, payload)
	}
	wg.Wait()

	settled := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("event %d: %v", i, errs[i])
		}
		if results[i].Outcome == OutcomeSettled {
			settled++
		}
	}
	if settled != 1 || store.wins != 1 {
		t.Fatalf("expected exactly one winner, got settled=%d wins=%d", settled, store.wins)
	}
}

func TestCheckoutSessionUsesIntentReference(t *testing.T) {
	order := pendingOrder("pi_checkout")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	payload := checkoutEvent("cs_1", "pi_checkout", order.UserID.Hex())
	res, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
	if err != nil || res.Outcome != OutcomeSettled {
		t.Fatalf("expected settled, got %+v %v", res, err)
	}
}

func TestFailedPaymentIsTerminal(t *testing.T) {
	order := pendingOrder("pi_retry")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	failed := intentEvent(EventIntentFailed, "pi_retry", order.UserID.Hex())
	res, err := r.Handle(context.Background(), failed, sign(failed, testSecret, time.Now()))
	if err != nil || res.PaymentStatus != models.PaymentStatusFailed {
		t.Fatalf("expected failed, got %+v %v", res, err)
	}

	late := intentEvent(EventIntentFailed, "pi_retry", order.UserID.Hex())
	res, _ = r.Handle(context.Background(), late, sign(late, testSecret, time.Now()))
	if res.Outcome != OutcomeUnresolvable {
		t.Fatalf("second failure must not match, got %+v", res)
	}

	succeeded := intentEvent(EventIntentSucceeded, "pi_retry", order.UserID.Hex())
	res, err = r.Handle(context.Background(), succeeded, sign(succeeded, testSecret, time.Now()))
	if err != nil || res.Outcome != OutcomeUnresolvable {
		t.Fatalf("a failed order must not be settled, got %+v %v", res, err)
	}
	if store.orders[0].PaymentStatus != models.PaymentStatusFailed || store.wins != 1 {
		t.Fatalf("expected one transition ending in failed, got %s after %d", store.orders[0].PaymentStatus, store.wins)
	}
}

func TestPaidOrderIgnoresLateFailure(t *testing.T) {
	order := pendingOrder("pi_late")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	succeeded := intentEvent(EventIntentSucceeded, "pi_late", order.UserID.Hex())
	if res, err := r.Handle(context.Background(), succeeded, sign(succeeded, testSecret, time.Now())); err != nil || res.Outcome != OutcomeSettled {
		t.Fatalf("expected settled, got %+v %v", res, err)
	}

	failed := intentEvent(EventIntentFailed, "pi_late", order.UserID.Hex())
	res, _ := r.Handle(context.Background(), failed, sign(failed, testSecret, time.Now()))
	if res.Outcome != OutcomeUnresolvable || store.orders[0].PaymentStatus != models.PaymentStatusPaid {
		t.Fatal("a late failure must not undo a paid order")
	}
}

func TestUnderpaymentDoesNotSettle(t *testing.T) {
	order := pendingOrder("pi_short")
	order.TotalAmount = 100.00
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	short := intentEventFor(EventIntentSucceeded, "pi_short", order.UserID.Hex(), 50)
	res, err := r.Handle(context.Background(), short, sign(short, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("expected acknowledgement, got %v", err)
	}
	if res.Outcome != OutcomeUnresolvable || store.orders[0].PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("an underpaid order must stay pending, got %+v", res)
	}

	full := intentEventFor(EventIntentSucceeded, "pi_short", order.UserID.Hex(), 10000)
	res, err = r.Handle(context.Background(), full, sign(full, testSecret, time.Now()))
	if err != nil || res.Outcome != OutcomeSettled || store.orders[0].PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected the full charge to settle, got %+v %v", res, err)
	}
}

func TestSuccessWithoutAmountIsUnresolvable(t *testing.T) {
	order := pendingOrder("pi_zero")
	store := &settleStore{orders: []models.Order{order}}
	r := NewReconciler(testSecret, store, nil, zap.NewNop())

	payload := intentEventFor(EventIntentSucceeded, "pi_zero", order.UserID.Hex(), 0)
	res, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
	if err != nil || res.Outcome != OutcomeUnresolvable || store.wins != 0 {
		t.Fatalf("expected unresolvable, got %+v %v", res, err)
	}
}

func TestUnresolvableEventsAreAcknowledged(t *testing.T) {
	order := pendingOrder("pi_1")
	store := &settleStore{orders: []models.Order{order}}
	core, logs := observer.New(zap.WarnLevel)
	r := NewReconciler(testSecret, store, nil, zap.New(core))

	cases := map[string][]byte{
		"no user":        intentEvent(EventIntentSucceeded, "pi_1", ""),
		"malformed user": intentEvent(EventIntentSucceeded, "pi_1", "user-1"),
		"other user":     intentEvent(EventIntentSucceeded, "pi_1", primitive.NewObjectID().Hex()),
		"unknown ref":    intentEvent(EventIntentSucceeded, "pi_404", order.UserID.Hex()),
		"no intent":      checkoutEvent("cs_1", "", order.UserID.Hex()),
	}
	for name, payload := range cases {
		res, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
		if err != nil {
			t.Fatalf("%s: expected acknowledgement, got %v", name, err)
		}
		if res.Outcome != OutcomeUnresolvable {
			t.Fatalf("%s: expected unresolvable, got %+v", name, res)
		}
	}
	if store.wins != 0 {
		t.Fatal("no order should have been settled")
	}
	if logs.FilterMessage("unresolvable webhook event").Len() != len(cases) {
		t.Fatalf("expected every unresolvable event logged, got %d", logs.Len())
	}
}

func TestUnhandledEventTypeIsIgnored(t *testing.T) {
	r := NewReconciler(testSecret, &settleStore{}, nil, zap.NewNop())
	payload := []byte(`{"id":"evt_x","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	res, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now()))
	if err != nil || res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %+v %v", res, err)
	}
}

func TestStoreErrorIsReturnedForRedelivery(t *testing.T) {
	order := pendingOrder("pi_1")
	r := NewReconciler(testSecret, &settleStore{err: errors.New("server selection timeout")}, nil, zap.NewNop())

	payload := intentEvent(EventIntentSucceeded, "pi_1", order.UserID.Hex())
	if _, err := r.Handle(context.Background(), payload, sign(payload, testSecret, time.Now())); err == nil {
		t.Fatal("expected store error to surface")
	}
}
