package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"eatery/internal/events"
	"eatery/internal/models"
)

// CreateOrderInput is the normalised creation request. It carries no prices: totals are
// always derived from the catalog.
type CreateOrderInput struct {
	Items               []CartLine
	OrderType           models.OrderType
	PaymentMethod       string
	DeliveryAddress     *models.Address
	ContactPhone        string
	SpecialInstructions string
	ExternalPaymentRef  string
}

type Service struct {
	store     Store
	catalog   Catalog
	policy    PricingPolicy
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, catalog Catalog, policy PricingPolicy, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		catalog:   catalog,
		policy:    policy,
		publisher: publisher,
		logger:    logger.Named("orders"),
		now:       time.Now,
	}
}

// CreateOrder prices the cart against the catalog and persists the order in one transaction.
// Either the whole order is stored or nothing is.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (models.Order, error) {
	userID, err := primitive.ObjectIDFromHex(actor.UserID)
	if err != nil {
		return models.Order{}, ValidationError{Field: "user", Message: "authenticated user id is invalid"}
	}
	if err := validateCreateInput(in); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	err = s.store.WithinTransaction(ctx, func(txCtx context.Context) error {
		snapshot, err := s.catalog.Lookup(txCtx, UniqueItemIDs(in.Items))
		if err != nil {
			return err
		}
		quote, err := Price(in.Items, snapshot, in.OrderType, s.policy)
		if err != nil {
			return err
		}

		order = buildOrder(userID, in, quote, s.now().UTC())
		return s.store.Insert(txCtx, &order)
	})
	if err != nil {
		if isDomainError(err) {
			return models.Order{}, err
		}
		s.logger.Error("order transaction aborted", zap.String("userId", actor.UserID), zap.Error(err))
		return models.Order{}, transactionFailure(err)
	}

	s.logger.Info("order created",
		zap.String("orderId", order.ID.Hex()),
		zap.String("userId", actor.UserID),
		zap.Float64("totalAmount", order.TotalAmount),
	)
	s.publish(ctx, events.OrderCreated(order, order.CreatedAt))
	return order, nil
}

// Quote prices a cart without persisting anything, for sizing a payment before the order exists.
func (s *Service) Quote(ctx context.Context, cart []CartLine, orderType models.OrderType) (Quote, error) {
	if !orderType.Valid() {
		return Quote{}, ValidationError{Field: "orderType", Message: "must be delivery or pickup"}
	}
	if len(cart) == 0 {
		return Quote{}, ValidationError{Field: "items", Message: "no items in order"}
	}
	snapshot, err := s.catalog.Lookup(ctx, UniqueItemIDs(cart))
	if err != nil {
		return Quote{}, err
	}
	return Price(cart, snapshot, orderType, s.policy)
}

func validateCreateInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return ValidationError{Field: "items", Message: "no items in order"}
	}
	if !in.OrderType.Valid() {
		return ValidationError{Field: "orderType", Message: "must be delivery or pickup"}
	}
	if in.PaymentMethod != models.PaymentMethodCard && in.PaymentMethod != models.PaymentMethodCash {
		return ValidationError{Field: "paymentMethod", Message: "must be card or cash"}
	}
	if strings.TrimSpace(in.ContactPhone) == "" {
		return ValidationError{Field: "contactPhone", Message: "is required"}
	}
	if in.OrderType == models.OrderTypeDelivery {
		addr := in.DeliveryAddress
		if addr == nil || addr.IsZero() {
			return ValidationError{Field: "deliveryAddress", Message: "is required for delivery orders"}
		}
		if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" {
			return ValidationError{Field: "deliveryAddress", Message: "street and city are required"}
		}
	}
	return nil
}

func buildOrder(userID primitive.ObjectID, in CreateOrderInput, quote Quote, now time.Time) models.Order {
	items := make([]models.OrderItem, 0, len(quote.Lines))
	longestPrep := 0
	for _, line := range quote.Lines {
		items = append(items, models.OrderItem{
			MenuItemID:          line.Item.ID,
			Name:                line.Item.Name,
			Image:               line.Item.Image,
			Category:            line.Item.Category,
			Quantity:            line.Quantity,
			SpecialInstructions: strings.TrimSpace(line.SpecialInstructions),
			Price:               line.UnitPrice,
		})
		if line.Item.PreparationTime > longestPrep {
			longestPrep = line.Item.PreparationTime
		}
	}

	order := models.Order{
		UserID:              userID,
		Items:               items,
		Status:              models.OrderStatusPending,
		PaymentStatus:       models.PaymentStatusPending,
		PaymentMethod:       in.PaymentMethod,
		OrderType:           in.OrderType,
		ContactPhone:        strings.TrimSpace(in.ContactPhone),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		Subtotal:            quote.Subtotal,
		Tax:                 quote.Tax,
		DeliveryFee:         quote.DeliveryFee,
		TotalAmount:         quote.Total,
		ExternalPaymentRef:  strings.TrimSpace(in.ExternalPaymentRef),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.OrderType == models.OrderTypeDelivery && in.DeliveryAddress != nil {
		addr := *in.DeliveryAddress
		order.DeliveryAddress = &addr
	}
	if longestPrep > 0 {
		eta := now.Add(time.Duration(longestPrep) * time.Minute)
		order.EstimatedDeliveryTime = &eta
	}
	return order
}

// Get returns the order when the actor owns it or is an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(order) {
		return models.Order{}, ErrForbidden
	}
	return order, nil
}

// List returns orders newest first. Admins see every order, everyone else only their own.
func (s *Service) List(ctx context.Context, actor Actor, status models.OrderStatus) ([]models.Order, error) {
	filter := ListFilter{Status: status}
	if !actor.IsAdmin() {
		userID, err := primitive.ObjectIDFromHex(actor.UserID)
		if err != nil {
			return nil, ErrForbidden
		}
		filter.UserID = &userID
	}
	return s.store.List(ctx, filter)
}

// UpdateStatus applies one lifecycle transition. The write is conditional on the status the
// check was made against, so a concurrent change makes this call fail instead of skipping a step.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to models.OrderStatus) (models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := CheckTransition(order, actor, to); err != nil {
		return models.Order{}, err
	}

	updated, ok, err := s.store.UpdateStatus(ctx, StatusChange{
		OrderID: order.ID,
		From:    order.Status,
		To:      to,
		At:      s.now().UTC(),
	})
	if err != nil {
		return models.Order{}, err
	}
	if !ok {
		fresh, err := s.store.FindByID(ctx, order.ID)
		if err != nil {
			return models.Order{}, err
		}
		if err := CheckTransition(fresh, actor, to); err != nil {
			return models.Order{}, err
		}
		return models.Order{}, IllegalTransitionError{From: fresh.Status, To: to, Reason: "order status changed concurrently"}
	}

	s.logger.Info("order status updated",
		zap.String("orderId", updated.ID.Hex()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor", actor.UserID),
	)
	s.publish(ctx, events.StatusChanged(updated, updated.UpdatedAt))
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (models.Order, error) {
	return s.UpdateStatus(ctx, actor, id, models.OrderStatusCancelled)
}

func (s *Service) find(ctx context.Context, id string) (models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Order{}, ErrOrderNotFound
	}
	order, err := s.store.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

// publish runs after commit; a broker failure is logged and never undoes the change.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event", zap.String("type", event.Type), zap.String("orderId", event.OrderID), zap.Error(err))
	}
}
