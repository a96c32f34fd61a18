package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eatery/internal/database"
	"eatery/internal/logging"
	"eatery/internal/models"
)

type menuItemRequest struct {
	Name            string                  `json:"name" binding:"required"`
	Description     string                  `json:"description" binding:"required"`
	Price           *float64                `json:"price" binding:"required,gt=0"`
	Image           string                  `json:"image" binding:"required"`
	Category        string                  `json:"category" binding:"required,oneof=main appetizer dessert beverage side"`
	Vegetarian      bool                    `json:"vegetarian"`
	SpicyLevel      *int                    `json:"spicyLevel" binding:"omitempty,min=1,max=5"`
	Popular         bool                    `json:"popular"`
	Ingredients     models.StringList       `json:"ingredients"`
	NutritionalInfo *models.NutritionalInfo `json:"nutritionalInfo"`
	Available       *bool                   `json:"available"`
	PreparationTime *int                    `json:"preparationTime" binding:"omitempty,min=0"`
}

type menuItemUpdateRequest struct {
	Name            *string                 `json:"name"`
	Description     *string                 `json:"description"`
	Price           *float64                `json:"price" binding:"omitempty,gt=0"`
	Image           *string                 `json:"image"`
	Category        *string                 `json:"category" binding:"omitempty,oneof=main appetizer dessert beverage side"`
	Vegetarian      *bool                   `json:"vegetarian"`
	SpicyLevel      *int                    `json:"spicyLevel" binding:"omitempty,min=1,max=5"`
	Popular         *bool                   `json:"popular"`
	Ingredients     *models.StringList      `json:"ingredients"`
	NutritionalInfo *models.NutritionalInfo `json:"nutritionalInfo"`
	Available       *bool                   `json:"available"`
	PreparationTime *int                    `json:"preparationTime" binding:"omitempty,min=0"`
}

func (r menuItemRequest) toModel(now time.Time) models.MenuItem {
	item := models.MenuItem{
		Name:            strings.TrimSpace(r.Name),
		Description:     strings.TrimSpace(r.Description),
		Price:           *r.Price,
		Image:           strings.TrimSpace(r.Image),
		Category:        r.Category,
		Vegetarian:      r.Vegetarian,
		SpicyLevel:      1,
		Popular:         r.Popular,
		Ingredients:     r.Ingredients,
		NutritionalInfo: r.NutritionalInfo,
		Available:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if item.Ingredients == nil {
		item.Ingredients = models.StringList{}
	}
	if r.SpicyLevel != nil {
		item.SpicyLevel = *r.SpicyLevel
	}
	if r.Available != nil {
		item.Available = *r.Available
	}
	if r.PreparationTime != nil {
		item.PreparationTime = *r.PreparationTime
	}
	return item
}

// updateSet builds the $set document; an empty result means nothing to update.
func (r menuItemUpdateRequest) updateSet() (bson.M, error) {
	set := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	if r.Description != nil {
		set["description"] = strings.TrimSpace(*r.Description)
	}
	if r.Price != nil {
		set["price"] = *r.Price
	}
	if r.Image != nil {
		set["image"] = strings.TrimSpace(*r.Image)
	}
	if r.Category != nil {
		set["category"] = *r.Category
	}
	if r.Vegetarian != nil {
		set["vegetarian"] = *r.Vegetarian
	}
	if r.SpicyLevel != nil {
		set["spicyLevel"] = *r.SpicyLevel
	}
	if r.Popular != nil {
		set["popular"] = *r.Popular
	}
	if r.Ingredients != nil {
		set["ingredients"] = *r.Ingredients
	}
	if r.NutritionalInfo != nil {
		set["nutritionalInfo"] = r.NutritionalInfo
	}
	if r.Available != nil {
		set["available"] = *r.Available
	}
	if r.PreparationTime != nil {
		set["preparationTime"] = *r.PreparationTime
	}
	return set, nil
}

func menuFilter(c *gin.Context) bson.M {
	filter := bson.M{"available": true}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter["category"] = category
	}
	if v, err := strconv.ParseBool(c.Query("vegetarian")); err == nil {
		filter["vegetarian"] = v
	}
	if v, err := strconv.ParseBool(c.Query("popular")); err == nil {
		filter["popular"] = v
	}
	return filter
}

/* =======================
   PUBLIC
======================= */

func GetMenuItems(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/menu-items"

		page, limit, paged, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.CollectionMenuItems)
		filter := menuFilter(c)
		opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})

		var info pageInfo
		if paged {
			total, err := coll.CountDocuments(ctx, filter)
			if err != nil {
				respondInternal(c, route, err, "Server error fetching menu items")
				return
			}
			info = newPageInfo(page, limit, total)
			opts = applyPage(opts, page, limit)
		}

		cursor, err := coll.Find(ctx, filter, opts)
		if err != nil {
			respondInternal(c, route, err, "Server error fetching menu items")
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.MenuItem, 0)
		if err := cursor.All(ctx, &items); err != nil {
			respondInternal(c, route, err, "Server error fetching menu items")
			return
		}

		if paged {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "pagination": info})
			return
		}
		respondData(c, http.StatusOK, items)
	}
}

func GetMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/menu-items/:id"

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var item models.MenuItem
		err = db.Collection(database.CollectionMenuItems).FindOne(ctx, bson.M{"_id": id}).Decode(&item)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error")
			return
		}
		respondData(c, http.StatusOK, item)
	}
}

/* =======================
   ADMIN
======================= */

func CreateMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/menu-items"

		var req menuItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, bindingErrorMessage(err))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		item := req.toModel(time.Now().UTC())
		res, err := db.Collection(database.CollectionMenuItems).InsertOne(ctx, item)
		if err != nil {
			respondInternal(c, route, err, "Server error creating menu item")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			item.ID = id
		}

		logging.From(c).Info("menu item created", zap.String("menuItemId", item.ID.Hex()), zap.String("name", item.Name))
		respondData(c, http.StatusCreated, item)
	}
}

func UpdateMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/menu-items/:id"

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}

		var req menuItemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, bindingErrorMessage(err))
			return
		}
		set, err := req.updateSet()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now().UTC()

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var item models.MenuItem
		err = db.Collection(database.CollectionMenuItems).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&item)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error updating menu item")
			return
		}

		logging.From(c).Info("menu item updated", zap.String("menuItemId", id.Hex()), zap.Strings("fields", mapKeys(set)))
		respondData(c, http.StatusOK, item)
	}
}

// DeleteMenuItem removes the catalog entry and its uploaded image. Existing orders keep their
// own name and price snapshot.
func DeleteMenuItem(db *mongo.Database, images *ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/menu-items/:id"

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var item models.MenuItem
		err = db.Collection(database.CollectionMenuItems).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&item)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Menu item not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error deleting menu item")
			return
		}

		logger := logging.From(c)
		if images != nil && strings.HasPrefix(item.Image, "/uploads/") {
			if err := images.Delete(item.Image); err != nil {
				logger.Warn("menu image cleanup failed", zap.String("image", item.Image), zap.Error(err))
			}
		}

		logger.Info("menu item deleted", zap.String("menuItemId", id.Hex()))
		respondMessage(c, http.StatusOK, "Menu item deleted successfully")
	}
}
