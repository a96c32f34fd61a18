package orders

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"eatery/internal/models"
)

type stagedKey struct{}

type staged struct {
	inserts []models.Order
}

// memStore keeps committed orders in memory. Inserts made inside WithinTransaction are
// staged and only become visible when fn returns nil.
type memStore struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]models.Order
	insertErr error
	commitErr error
	updates   int
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[primitive.ObjectID]models.Order)}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx := &staged{}
	if err := fn(context.WithValue(ctx, stagedKey{}, tx)); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range tx.inserts {
		m.orders[o.ID] = o
	}
	return nil
}

func (m *memStore) Insert(ctx context.Context, order *models.Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	order.ID = primitive.NewObjectID()
	if tx, ok := ctx.Value(stagedKey{}).(*staged); ok {
		tx.inserts = append(tx.inserts, *order)
		return nil
	}
	m.mu.Lock()
	m.orders[order.ID] = *order
	m.mu.Unlock()
	return nil
}

func (m *memStore) put(order models.Order) models.Order {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	m.mu.Lock()
	m.orders[order.ID] = order
	m.mu.Unlock()
	return order
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) FindByID(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (m *memStore) List(_ context.Context, filter ListFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, change StatusChange) (models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[change.OrderID]
	if !ok || order.Status != change.From {
		return models.Order{}, false, nil
	}
	order.Status = change.To
	order.UpdatedAt = change.At
	m.orders[order.ID] = order
	m.updates++
	return order, true, nil
}

func (m *memStore) SettlePayment(_ context.Context, match PaymentMatch) (models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, order := range m.orders {
		if order.UserID != match.UserID || order.ExternalPaymentRef == "" || order.ExternalPaymentRef != match.ExternalPaymentRef {
			continue
		}
		if match.Amount > 0 && MinorUnits(order.TotalAmount) != match.Amount {
			continue
		}
		for _, from := range match.From {
			if order.PaymentStatus == from {
				order.PaymentStatus = match.To
				order.UpdatedAt = match.At
				m.orders[id] = order
				m.updates++
				return order, true, nil
			}
		}
	}
	return models.Order{}, false, nil
}

type memCatalog struct {
	items   []models.MenuItem
	lookups int
	err     error
}

func (c *memCatalog) Lookup(_ context.Context, ids []string) (CatalogSnapshot, error) {
	c.lookups++
	if c.err != nil {
		return CatalogSnapshot{}, c.err
	}
	found := make([]models.MenuItem, 0, len(ids))
	for _, id := range ids {
		for _, item := range c.items {
			if item.ID.Hex() == id {
				found = append(found, item)
			}
		}
	}
	return NewSnapshot(ids, found), nil
}

func menuItem(name string, price float64, available bool) models.MenuItem {
	return models.MenuItem{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Price:     price,
		Available: available,
		Category:  "main",
	}
}
