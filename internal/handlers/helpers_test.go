package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"eatery/internal/auth"
	"eatery/internal/middleware"
	"eatery/internal/models"
	"eatery/internal/orders"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withIdentity(identity auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetIdentity(c, identity)
		c.Next()
	}
}

func customer() auth.Identity {
	return auth.Identity{UserID: primitive.NewObjectID().Hex(), Email: "diner@example.com", Role: models.RoleUser}
}

func administrator() auth.Identity {
	return auth.Identity{UserID: primitive.NewObjectID().Hex(), Email: "admin@example.com", Role: models.RoleAdmin}
}

func performJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not json: %v (%s)", err, w.Body.String())
	}
	return body
}

func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %#v", body["data"])
	}
	return data
}

// orderStore is a minimal in-memory orders.Store for driving the real order service.
type orderStore struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order
}

func newOrderStore() *orderStore {
	return &orderStore{orders: make(map[primitive.ObjectID]models.Order)}
}

func (s *orderStore) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func (s *orderStore) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = primitive.NewObjectID()
	s.orders[order.ID] = *order
	return nil
}

func (s *orderStore) FindByID(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, orders.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderStore) List(_ context.Context, filter orders.ListFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Order{}
	for _, o := range s.orders {
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

func (s *orderStore) UpdateStatus(_ context.Context, change orders.StatusChange) (models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[change.OrderID]
	if !ok || order.Status != change.From {
		return models.Order{}, false, nil
	}
	order.Status = change.To
	order.UpdatedAt = change.At
	s.orders[order.ID] = order
	return order, true, nil
}

func (s *orderStore) SettlePayment(context.Context, orders.PaymentMatch) (models.Order, bool, error) {
	return models.Order{}, false, nil
}

func (s *orderStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type menuCatalog struct {
	items []models.MenuItem
}

func (m *menuCatalog) Lookup(_ context.Context, ids []string) (orders.CatalogSnapshot, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	found := []models.MenuItem{}
	for _, item := range m.items {
		if wanted[item.ID.Hex()] {
			found = append(found, item)
		}
	}
	return orders.NewSnapshot(ids, found), nil
}

func dish(name string, price float64, available bool) models.MenuItem {
	return models.MenuItem{
		ID:              primitive.NewObjectID(),
		Name:            name,
		Price:           price,
		Category:        "main",
		Available:       available,
		PreparationTime: 15,
	}
}

func newOrderService(items ...models.MenuItem) (*orders.Service, *orderStore) {
	store := newOrderStore()
	svc := orders.NewService(store, &menuCatalog{items: items}, orders.DefaultPricingPolicy(), nil, nil)
	return svc, store
}
