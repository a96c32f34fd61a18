package orders

import (
	"errors"
	"testing"

	"eatery/internal/models"
)

func TestPriceBurgerPickup(t *testing.T) {
	burger := menuItem("Burger", 10.00, true)
	snap := NewSnapshot([]string{burger.ID.Hex()}, []models.MenuItem{burger})

	quote, err := Price([]CartLine{{ItemID: burger.ID.Hex(), Quantity: 2}}, snap, models.OrderTypePickup, DefaultPricingPolicy())
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	if quote.Subtotal != 20.00 || quote.Tax != 1.65 || quote.DeliveryFee != 0 || quote.Total != 21.65 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if len(quote.Lines) != 1 || quote.Lines[0].UnitPrice != 10.00 || quote.Lines[0].LineTotal != 20.00 {
		t.Fatalf("unexpected lines %+v", quote.Lines)
	}
}

func TestPriceBurgerDelivery(t *testing.T) {
	burger := menuItem("Burger", 10.00, true)
	snap := NewSnapshot([]string{burger.ID.Hex()}, []models.MenuItem{burger})

	quote, err := Price([]CartLine{{ItemID: burger.ID.Hex(), Quantity: 2}}, snap, models.OrderTypeDelivery, DefaultPricingPolicy())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.DeliveryFee != 3.99 || quote.Total != 25.64 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestPriceSumsLinesWithoutFloatDrift(t *testing.T) {
	a := menuItem("Fries", 0.10, true)
	b := menuItem("Soda", 0.20, true)
	snap := NewSnapshot([]string{a.ID.Hex(), b.ID.Hex()}, []models.MenuItem{a, b})

	quote, err := Price([]CartLine{
		{ItemID: a.ID.Hex(), Quantity: 1},
		{ItemID: b.ID.Hex(), Quantity: 1},
	}, snap, models.OrderTypePickup, PricingPolicy{TaxRate: 0})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.Subtotal != 0.30 || quote.Total != 0.30 {
		t.Fatalf("expected 0.30, got %+v", quote)
	}
}

func TestPriceRejectsUnknownAndUnavailableItems(t *testing.T) {
	gone := menuItem("Gone", 5, true)
	off := menuItem("Off", 5, false)
	snap := NewSnapshot([]string{gone.ID.Hex(), off.ID.Hex()}, []models.MenuItem{off})

	_, err := Price([]CartLine{{ItemID: gone.ID.Hex(), Quantity: 1}}, snap, models.OrderTypePickup, DefaultPricingPolicy())
	var notFound ItemNotFoundError
	if !errors.As(err, &notFound) || notFound.Unavailable || notFound.ItemID != gone.ID.Hex() {
		t.Fatalf("expected not found for %s, got %v", gone.ID.Hex(), err)
	}

	_, err = Price([]CartLine{{ItemID: off.ID.Hex(), Quantity: 1}}, snap, models.OrderTypePickup, DefaultPricingPolicy())
	if !errors.As(err, &notFound) || !notFound.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatal("unavailable items must match ErrItemNotFound")
	}
}

func TestPriceRejectsNonPositiveQuantity(t *testing.T) {
	burger := menuItem("Burger", 10, true)
	snap := NewSnapshot([]string{burger.ID.Hex()}, []models.MenuItem{burger})

	for _, qty := range []int{0, -3} {
		_, err := Price([]CartLine{{ItemID: burger.ID.Hex(), Quantity: qty}}, snap, models.OrderTypePickup, DefaultPricingPolicy())
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected invalid quantity, got %v", qty, err)
		}
	}
}

func TestPriceRejectsEmptyCart(t *testing.T) {
	_, err := Price(nil, CatalogSnapshot{}, models.OrderTypePickup, DefaultPricingPolicy())
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "items" {
		t.Fatalf("expected items validation error, got %v", err)
	}
}

func TestUniqueItemIDs(t *testing.T) {
	ids := UniqueItemIDs([]CartLine{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "a"}})
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestNewSnapshotReportsMissing(t *testing.T) {
	item := menuItem("Burger", 1, true)
	snap := NewSnapshot([]string{item.ID.Hex(), "nope"}, []models.MenuItem{item})
	if len(snap.Missing) != 1 || snap.Missing[0] != "nope" {
		t.Fatalf("unexpected missing %v", snap.Missing)
	}
}
