package orders

import (
	"eatery/internal/models"
)

// Actor is the verified identity issuing a request.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func (a Actor) Owns(order models.Order) bool {
	return a.UserID != "" && a.UserID == order.UserID.Hex()
}

var forwardTransitions = map[models.OrderStatus]models.OrderStatus{
	models.OrderStatusPending:   models.OrderStatusPreparing,
	models.OrderStatusPreparing: models.OrderStatusReady,
	models.OrderStatusReady:     models.OrderStatusDelivered,
}

var cancellable = map[models.OrderStatus]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusPreparing: true,
}

// IsTerminal reports states no transition leaves.
func IsTerminal(status models.OrderStatus) bool {
	return status == models.OrderStatusDelivered || status == models.OrderStatusCancelled
}

// CanTransition reports whether the state graph has an edge from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	if to == models.OrderStatusCancelled {
		return cancellable[from]
	}
	next, ok := forwardTransitions[from]
	return ok && next == to
}

// CheckTransition validates both the edge and the actor's authority over it. Forward moves
// need admin capability; cancellation needs admin capability or ownership.
func CheckTransition(order models.Order, actor Actor, to models.OrderStatus) error {
	from := order.Status
	if !to.Valid() {
		return IllegalTransitionError{From: from, To: to, Reason: "unknown status"}
	}

	if to == models.OrderStatusCancelled {
		if !actor.IsAdmin() && !actor.Owns(order) {
			return IllegalTransitionError{From: from, To: to, Reason: "unauthorized to cancel this order", Forbidden: true}
		}
	} else if !actor.IsAdmin() {
		return IllegalTransitionError{From: from, To: to, Reason: "admin access required", Forbidden: true}
	}

	switch {
	case from == to:
		return IllegalTransitionError{From: from, To: to, Reason: "order is already in this status"}
	case IsTerminal(from):
		return IllegalTransitionError{From: from, To: to, Reason: "order is in a final status"}
	case !CanTransition(from, to):
		if to == models.OrderStatusCancelled {
			return IllegalTransitionError{From: from, To: to, Reason: "order can no longer be cancelled"}
		}
		return IllegalTransitionError{From: from, To: to, Reason: "status must advance one step at a time"}
	}
	return nil
}
