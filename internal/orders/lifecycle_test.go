package orders

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"eatery/internal/models"
)

var allStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusPreparing,
	models.OrderStatusReady,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

func TestCanTransitionGraph(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusPreparing}:   true,
		{models.OrderStatusPreparing, models.OrderStatusReady}:     true,
		{models.OrderStatusReady, models.OrderStatusDelivered}:     true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:   true,
		{models.OrderStatusPreparing, models.OrderStatusCancelled}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if got := CanTransition(from, to); got != allowed[[2]models.OrderStatus{from, to}] {
				t.Fatalf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestTerminalStatesNeverMove(t *testing.T) {
	admin := Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
	for _, from := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		order := models.Order{Status: from}
		for _, to := range allStatuses {
			if err := CheckTransition(order, admin, to); !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s -> %s: expected illegal transition, got %v", from, to, err)
			}
		}
	}
}

func TestStrangerCannotTransition(t *testing.T) {
	owner := primitive.NewObjectID()
	stranger := Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleUser}
	order := models.Order{UserID: owner, Status: models.OrderStatusPending}

	for _, to := range []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusCancelled} {
		err := CheckTransition(order, stranger, to)
		var terr IllegalTransitionError
		if !errors.As(err, &terr) || !terr.Forbidden {
			t.Fatalf("%s: expected forbidden, got %v", to, err)
		}
	}
}

func TestOwnerMayCancelButNotAdvance(t *testing.T) {
	owner := primitive.NewObjectID()
	actor := Actor{UserID: owner.Hex(), Role: models.RoleUser}
	order := models.Order{UserID: owner, Status: models.OrderStatusPreparing}

	if err := CheckTransition(order, actor, models.OrderStatusCancelled); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	var terr IllegalTransitionError
	if err := CheckTransition(order, actor, models.OrderStatusReady); !errors.As(err, &terr) || !terr.Forbidden {
		t.Fatalf("owner advance: expected forbidden, got %v", err)
	}
}

func TestStaffIsNotAdmin(t *testing.T) {
	staff := Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleStaff}
	err := CheckTransition(models.Order{Status: models.OrderStatusPending}, staff, models.OrderStatusPreparing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestCheckTransitionRejectsSkipsAndUnknown(t *testing.T) {
	admin := Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
	order := models.Order{Status: models.OrderStatusPending}

	cases := []models.OrderStatus{
		models.OrderStatusReady,
		models.OrderStatusDelivered,
		models.OrderStatusPending,
		"confirmed",
		"completed",
	}
	for _, to := range cases {
		if err := CheckTransition(order, admin, to); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("pending -> %s: expected illegal transition, got %v", to, err)
		}
	}

	if err := CheckTransition(models.Order{Status: models.OrderStatusReady}, admin, models.OrderStatusCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("ready -> cancelled must be rejected, got %v", err)
	}
}
