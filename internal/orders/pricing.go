package orders

import (
	"strconv"

	"github.com/shopspring/decimal"

	"eatery/internal/models"
)

const (
	DefaultTaxRate     = 0.0825
	DefaultDeliveryFee = 3.99
)

// PricingPolicy holds the fixed rates applied on top of catalog prices.
type PricingPolicy struct {
	TaxRate     float64
	DeliveryFee float64
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{TaxRate: DefaultTaxRate, DeliveryFee: DefaultDeliveryFee}
}

// CartLine is the canonical cart entry. Request decoding normalises every accepted client
// shape into this one before pricing.
type CartLine struct {
	ItemID              string
	Quantity            int
	SpecialInstructions string
}

type PricedLine struct {
	Item                models.MenuItem
	Quantity            int
	SpecialInstructions string
	UnitPrice           float64
	LineTotal           float64
}

type Quote struct {
	Lines       []PricedLine
	Subtotal    float64
	Tax         float64
	DeliveryFee float64
	Total       float64
}

// UniqueItemIDs returns the cart item ids in first-seen order without repeats.
func UniqueItemIDs(cart []CartLine) []string {
	seen := make(map[string]struct{}, len(cart))
	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}

// Price computes the order totals from catalog prices only. It fails on the first line that
// does not resolve or carries a non-positive quantity, so no partial quote is returned.
func Price(cart []CartLine, snapshot CatalogSnapshot, orderType models.OrderType, policy PricingPolicy) (Quote, error) {
	if len(cart) == 0 {
		return Quote{}, ValidationError{Field: "items", Message: "no items in order"}
	}

	lines := make([]PricedLine, 0, len(cart))
	subtotal := decimal.Zero
	for _, line := range cart {
		if line.Quantity < 1 {
			return Quote{}, InvalidQuantityError{ItemID: line.ItemID, Quantity: strconv.Itoa(line.Quantity)}
		}
		item, err := snapshot.Resolve(line.ItemID)
		if err != nil {
			return Quote{}, err
		}

		unit := decimal.NewFromFloat(item.Price)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		lines = append(lines, PricedLine{
			Item:                item,
			Quantity:            line.Quantity,
			SpecialInstructions: line.SpecialInstructions,
			UnitPrice:           item.Price,
			LineTotal:           lineTotal.Round(2).InexactFloat64(),
		})
	}

	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(decimal.NewFromFloat(policy.TaxRate)).Round(2)
	fee := decimal.Zero
	if orderType == models.OrderTypeDelivery {
		fee = decimal.NewFromFloat(policy.DeliveryFee).Round(2)
	}
	total := subtotal.Add(tax).Add(fee)

	return Quote{
		Lines:       lines,
		Subtotal:    subtotal.InexactFloat64(),
		Tax:         tax.InexactFloat64(),
		DeliveryFee: fee.InexactFloat64(),
		Total:       total.InexactFloat64(),
	}, nil
}

// MinorUnits converts a two-place amount to cents, the unit payment processors report in.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}
