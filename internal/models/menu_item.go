package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MenuCategories lists the accepted menu categories.
var MenuCategories = []string{"main", "appetizer", "dessert", "beverage", "side"}

// NutritionalInfo is embedded in a menu item without its own id.
type NutritionalInfo struct {
	Calories  float64    `bson:"calories,omitempty" json:"calories,omitempty"`
	Protein   float64    `bson:"protein,omitempty" json:"protein,omitempty"`
	Carbs     float64    `bson:"carbs,omitempty" json:"carbs,omitempty"`
	Fat       float64    `bson:"fat,omitempty" json:"fat,omitempty"`
	Allergens StringList `bson:"allergens,omitempty" json:"allergens,omitempty"`
}

// MenuItem is a sellable catalog entry. Price is authoritative and server controlled.
type MenuItem struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description" json:"description"`
	Price           float64            `bson:"price" json:"price"`
	Image           string             `bson:"image" json:"image"`
	Category        string             `bson:"category" json:"category"`
	Vegetarian      bool               `bson:"vegetarian" json:"vegetarian"`
	SpicyLevel      int                `bson:"spicyLevel" json:"spicyLevel"`
	Popular         bool               `bson:"popular" json:"popular"`
	Ingredients     StringList         `bson:"ingredients" json:"ingredients"`
	NutritionalInfo *NutritionalInfo   `bson:"nutritionalInfo,omitempty" json:"nutritionalInfo,omitempty"`
	Available       bool               `bson:"available" json:"available"`
	PreparationTime int                `bson:"preparationTime,omitempty" json:"preparationTime,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func IsMenuCategory(value string) bool {
	for _, c := range MenuCategories {
		if c == value {
			return true
		}
	}
	return false
}
