package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"eatery/internal/models"
	"eatery/internal/orders"
)

// orderItemRequest accepts the cart shapes clients send: menuItemId, menuItem as an id
// string, or menuItem as an embedded object. It has no price fields: prices always come
// from the catalog.
type orderItemRequest struct {
	MenuItemID          string          `json:"menuItemId"`
	MenuItem            json.RawMessage `json:"menuItem"`
	Quantity            json.Number     `json:"quantity"`
	SpecialInstructions string          `json:"specialInstructions"`
}

type createOrderRequest struct {
	Items               []orderItemRequest `json:"items"`
	OrderType           string             `json:"orderType"`
	DeliveryAddress     *models.Address    `json:"deliveryAddress"`
	PaymentMethod       string             `json:"paymentMethod"`
	ContactPhone        string             `json:"contactPhone"`
	SpecialInstructions string             `json:"specialInstructions"`
	PaymentIntentID     string             `json:"paymentIntentId"`
	ExternalPaymentRef  string             `json:"externalPaymentRef"`
}

type embeddedMenuItem struct {
	ObjectID string `json:"_id"`
	ID       string `json:"id"`
}

func (r orderItemRequest) itemID() (string, error) {
	if id := strings.TrimSpace(r.MenuItemID); id != "" {
		return id, nil
	}

	raw := bytes.TrimSpace(r.MenuItem)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("menu item reference is required")
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("menu item reference is invalid")
		}
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("menu item reference is required")
	}

	var embedded embeddedMenuItem
	if err := json.Unmarshal(raw, &embedded); err != nil {
		return "", fmt.Errorf("menu item reference is invalid")
	}
	if id := strings.TrimSpace(embedded.ObjectID); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(embedded.ID); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("menu item reference is required")
}

// parseQuantity accepts whole numbers only; 2 and 2.0 are the same quantity, 1.5 is not.
func parseQuantity(n json.Number) (int, bool) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(v), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.Trunc(f) != f || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func normalizeCart(items []orderItemRequest) ([]orders.CartLine, error) {
	if len(items) == 0 {
		return nil, orders.ValidationError{Field: "items", Message: "no items in order"}
	}
	cart := make([]orders.CartLine, 0, len(items))
	for i, item := range items {
		id, err := item.itemID()
		if err != nil {
			return nil, orders.ValidationError{Field: fmt.Sprintf("items[%d].menuItem", i), Message: err.Error()}
		}
		qty, ok := parseQuantity(item.Quantity)
		if !ok {
			return nil, orders.InvalidQuantityError{ItemID: id, Quantity: item.Quantity.String()}
		}
		cart = append(cart, orders.CartLine{
			ItemID:              id,
			Quantity:            qty,
			SpecialInstructions: item.SpecialInstructions,
		})
	}
	return cart, nil
}

func (r createOrderRequest) toInput() (orders.CreateOrderInput, error) {
	cart, err := normalizeCart(r.Items)
	if err != nil {
		return orders.CreateOrderInput{}, err
	}

	ref := strings.TrimSpace(r.PaymentIntentID)
	if ref == "" {
		ref = strings.TrimSpace(r.ExternalPaymentRef)
	}

	return orders.CreateOrderInput{
		Items:               cart,
		OrderType:           models.OrderType(strings.ToLower(strings.TrimSpace(r.OrderType))),
		PaymentMethod:       strings.ToLower(strings.TrimSpace(r.PaymentMethod)),
		DeliveryAddress:     r.DeliveryAddress,
		ContactPhone:        r.ContactPhone,
		SpecialInstructions: r.SpecialInstructions,
		ExternalPaymentRef:  ref,
	}, nil
}
