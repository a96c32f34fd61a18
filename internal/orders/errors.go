package orders

import (
	"errors"
	"fmt"

	"eatery/internal/models"
)

var (
	ErrItemNotFound       = errors.New("menu item not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrTransactionFailure = errors.New("order transaction failed")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("not allowed to access this order")
)

// ItemNotFoundError names the cart entry that could not be priced. Unavailable is set when
// the item exists but is switched off in the catalog.
type ItemNotFoundError struct {
	ItemID      string
	Unavailable bool
}

func (e ItemNotFoundError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("menu item with id %s is not available", e.ItemID)
	}
	return fmt.Sprintf("menu item with id %s not found", e.ItemID)
}

func (e ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

type InvalidQuantityError struct {
	ItemID   string
	Quantity string
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %s for menu item %s must be a positive whole number", e.Quantity, e.ItemID)
}

func (e InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// ValidationError names the first request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool { return target == ErrInvalidOrder }

// IllegalTransitionError rejects a lifecycle change. Forbidden marks a capability failure as
// opposed to a change the state graph does not allow.
type IllegalTransitionError struct {
	From      models.OrderStatus
	To        models.OrderStatus
	Reason    string
	Forbidden bool
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q: %s", e.From, e.To, e.Reason)
}

func (e IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

func transactionFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrTransactionFailure, err)
}

// isDomainError reports errors that must reach the caller unchanged instead of being
// folded into a transaction failure.
func isDomainError(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidOrder)
}
