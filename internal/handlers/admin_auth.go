package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"eatery/internal/auth"
	"eatery/internal/database"
	"eatery/internal/logging"
	"eatery/internal/models"
)

// AdminCredentials is the single bootstrap admin account configured through the environment.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

func (a AdminCredentials) enabled() bool {
	return a.Email != "" && a.PasswordHash != ""
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func AdminLogin(db *mongo.Database, tokens *auth.Tokens, creds AdminCredentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/admin-login"

		var req AdminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || strings.TrimSpace(req.Password) == "" {
			respondWithError(c, http.StatusBadRequest, route, "email and password are required")
			return
		}

		if !creds.enabled() || email != creds.Email {
			respondWithError(c, http.StatusUnauthorized, route, "Invalid credentials")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "Invalid credentials")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		admin, err := ensureAdminUser(ctx, db, email, time.Now().UTC())
		if err != nil {
			respondInternal(c, route, err, "Internal server error")
			return
		}

		signed, err := tokens.Issue(admin)
		if err != nil {
			respondInternal(c, route, err, "token generation failed")
			return
		}

		logging.From(c).Info("admin logged in", zap.String("userId", admin.ID.Hex()))
		respondData(c, http.StatusOK, gin.H{
			"token": signed,
			"user": gin.H{
				"id":    admin.ID.Hex(),
				"name":  admin.Name,
				"email": admin.Email,
				"role":  admin.Role,
			},
		})
	}
}

// ensureAdminUser finds or creates the account for email and promotes it to admin.
func ensureAdminUser(ctx context.Context, db *mongo.Database, email string, now time.Time) (models.User, error) {
	var user models.User
	err := db.Collection(database.CollectionUsers).FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{
			"$set":         bson.M{"role": models.RoleAdmin, "updatedAt": now},
			"$setOnInsert": bson.M{"name": "Admin User", "email": email, "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&user)
	return user, err
}
