package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the declared lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeDelivery || t == OrderTypePickup
}

const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// OrderItem is one catalog item, its quantity and the unit price captured at creation.
// Name, image and category are snapshots too, so old orders still render after menu edits.
type OrderItem struct {
	MenuItemID          primitive.ObjectID `bson:"menuItem" json:"menuItem"`
	Name                string             `bson:"name" json:"name"`
	Image               string             `bson:"image,omitempty" json:"image,omitempty"`
	Category            string             `bson:"category,omitempty" json:"category,omitempty"`
	Quantity            int                `bson:"quantity" json:"quantity"`
	SpecialInstructions string             `bson:"specialInstructions,omitempty" json:"specialInstructions,omitempty"`
	Price               float64            `bson:"price" json:"price"`
}

type Address struct {
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
}

// IsZero reports whether no address line was provided.
func (a Address) IsZero() bool {
	return a == Address{}
}

// OrderCustomer is the ordering user as joined in on reads. It is never stored on the order.
type OrderCustomer struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}

// Order defines the persisted order document. Totals are derived once at creation.
type Order struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                primitive.ObjectID `bson:"user" json:"user"`
	Customer              *OrderCustomer     `bson:"customer,omitempty" json:"customer,omitempty"`
	Items                 []OrderItem        `bson:"items" json:"items"`
	Status                OrderStatus        `bson:"status" json:"status"`
	PaymentStatus         PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	PaymentMethod         string             `bson:"paymentMethod" json:"paymentMethod"`
	OrderType             OrderType          `bson:"orderType" json:"orderType"`
	DeliveryAddress       *Address           `bson:"deliveryAddress,omitempty" json:"deliveryAddress,omitempty"`
	ContactPhone          string             `bson:"contactPhone" json:"contactPhone"`
	SpecialInstructions   string             `bson:"specialInstructions,omitempty" json:"specialInstructions,omitempty"`
	EstimatedDeliveryTime *time.Time         `bson:"estimatedDeliveryTime,omitempty" json:"estimatedDeliveryTime,omitempty"`
	Subtotal              float64            `bson:"subtotal" json:"subtotal"`
	Tax                   float64            `bson:"tax" json:"tax"`
	DeliveryFee           float64            `bson:"deliveryFee" json:"deliveryFee"`
	TotalAmount           float64            `bson:"totalAmount" json:"totalAmount"`
	ExternalPaymentRef    string             `bson:"externalPaymentRef,omitempty" json:"externalPaymentRef,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}
