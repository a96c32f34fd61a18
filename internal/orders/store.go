package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"eatery/internal/models"
)

type ListFilter struct {
	UserID *primitive.ObjectID
	Status models.OrderStatus
}

// StatusChange is applied only while the order is still in From.
type StatusChange struct {
	OrderID primitive.ObjectID
	From    models.OrderStatus
	To      models.OrderStatus
	At      time.Time
}

// PaymentMatch identifies the single order a payment event may settle: same owner, same
// processor reference, and a payment status still in From. A positive Amount (in cents)
// must also equal the order total.
type PaymentMatch struct {
	UserID             primitive.ObjectID
	ExternalPaymentRef string
	Amount             int64
	From               []models.PaymentStatus
	To                 models.PaymentStatus
	At                 time.Time
}

// Store persists orders. UpdateStatus and SettlePayment are single conditional updates;
// the boolean result is false when nothing matched.
type Store interface {
	WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, change StatusChange) (models.Order, bool, error)
	SettlePayment(ctx context.Context, match PaymentMatch) (models.Order, bool, error)
}
