package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ContactStatuses = []string{"new", "read", "replied", "archived"}

func IsContactStatus(value string) bool {
	for _, s := range ContactStatuses {
		if s == value {
			return true
		}
	}
	return false
}

// ContactMessage is a contact form submission. Guests may submit, so UserID is optional.
type ContactMessage struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name      string              `bson:"name" json:"name"`
	Email     string              `bson:"email" json:"email"`
	Phone     string              `bson:"phone" json:"phone"`
	Subject   string              `bson:"subject" json:"subject"`
	Message   string              `bson:"message" json:"message"`
	UserID    *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Status    string              `bson:"status" json:"status"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
