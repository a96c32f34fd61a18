package handlers

import (
	"context"
	"errors"
	"net/http"
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

type profileRequest struct {
	Name    *string         `json:"name"`
	Phone   *string         `json:"phone"`
	Address *models.Address `json:"address"`
}

func (r profileRequest) updateSet() (bson.M, bool) {
	set := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, false
		}
		set["name"] = name
	}
	if r.Phone != nil {
		set["phone"] = strings.TrimSpace(*r.Phone)
	}
	if r.Address != nil {
		set["address"] = r.Address
	}
	return set, true
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func findUser(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := db.Collection(database.CollectionUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, err
}

func GetUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users"

		page, limit, paged, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.CollectionUsers)
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		if paged {
			opts = applyPage(opts, page, limit)
		}

		cursor, err := coll.Find(ctx, bson.M{}, opts)
		if err != nil {
			respondInternal(c, route, err, "Server error fetching users")
			return
		}
		users := []models.User{}
		if err := cursor.All(ctx, &users); err != nil {
			respondInternal(c, route, err, "Server error fetching users")
			return
		}

		resp := gin.H{"success": true, "data": users, "message": "Users retrieved successfully"}
		if paged {
			total, err := coll.CountDocuments(ctx, bson.M{})
			if err != nil {
				respondInternal(c, route, err, "Server error fetching users")
				return
			}
			resp["pagination"] = newPageInfo(page, limit, total)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users/me"

		identity, ok := identityFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}
		oid, err := primitive.ObjectIDFromHex(identity.UserID)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := findUser(ctx, db, oid)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error fetching user profile")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
			"message": "User retrieved successfully",
		})
	}
}

func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/users/profile"

		identity, ok := identityFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}
		oid, err := primitive.ObjectIDFromHex(identity.UserID)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		set, ok := req.updateSet()
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if len(set) == 0 {
			user, err := findUser(ctx, db, oid)
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "User not found")
				return
			}
			if err != nil {
				respondInternal(c, route, err, "Server error updating profile")
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": user, "message": "Profile updated successfully"})
			return
		}

		set["updatedAt"] = time.Now().UTC()
		var user models.User
		err = db.Collection(database.CollectionUsers).FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error updating profile")
			return
		}

		logging.From(c).Info("profile updated", zap.String("userId", identity.UserID), zap.Strings("fields", mapKeys(set)))
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user, "message": "Profile updated successfully"})
	}
}

func GetUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users/:id"

		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := findUser(ctx, db, oid)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error fetching user")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
			"message": "User retrieved successfully",
		})
	}
}

// UpdateUserRole changes a user's role. Admins cannot demote themselves.
func UpdateUserRole(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/users/:id/role"

		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "Invalid role")
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if !models.IsRole(role) {
			respondWithError(c, http.StatusBadRequest, route, "Invalid role")
			return
		}
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if identity, ok := identityFrom(c); ok && identity.UserID == oid.Hex() && role != models.RoleAdmin {
			respondWithError(c, http.StatusBadRequest, route, "You cannot remove your own admin role")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err = db.Collection(database.CollectionUsers).FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Server error updating user role")
			return
		}

		logging.From(c).Info("user role changed", zap.String("userId", user.ID.Hex()), zap.String("role", role))
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
			"message": "User role updated successfully",
		})
	}
}
