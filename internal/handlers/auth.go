package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eatery/internal/auth"
	"eatery/internal/database"
	"eatery/internal/logging"
	"eatery/internal/models"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// GoogleAuthenticator is the OAuth flow the login handlers drive.
type GoogleAuthenticator interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.GoogleProfile, error)
}

func GoogleLogin(google GoogleAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/google"

		if google == nil || !google.Enabled() {
			respondWithError(c, http.StatusServiceUnavailable, route, "Google login is not configured")
			return
		}

		state := ulid.Make().String()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/api/auth", "", c.Request.TLS != nil, true)
		c.Redirect(http.StatusTemporaryRedirect, google.AuthCodeURL(state))
	}
}

// GoogleCallback completes the OAuth flow and redirects to the client with a session token.
// Every failure lands on the client login page.
func GoogleCallback(db *mongo.Database, google GoogleAuthenticator, tokens *auth.Tokens, clientURL string) gin.HandlerFunc {
	clientURL = strings.TrimRight(clientURL, "/")
	failure := clientURL + "/login?error=auth_failed"

	return func(c *gin.Context) {
		logger := logging.From(c)

		if google == nil || !google.Enabled() {
			c.Redirect(http.StatusFound, failure)
			return
		}

		expected, err := c.Cookie(oauthStateCookie)
		c.SetCookie(oauthStateCookie, "", -1, "/api/auth", "", c.Request.TLS != nil, true)
		if err != nil || expected == "" || expected != c.Query("state") {
			logger.Warn("oauth state mismatch")
			c.Redirect(http.StatusFound, failure)
			return
		}

		code := c.Query("code")
		if code == "" {
			c.Redirect(http.StatusFound, failure)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout*2)
		defer cancel()

		profile, err := google.Exchange(ctx, code)
		if err != nil {
			logger.Warn("google exchange failed", zap.Error(err))
			c.Redirect(http.StatusFound, failure)
			return
		}

		user, err := upsertGoogleUser(ctx, db, profile, time.Now().UTC())
		if err != nil {
			logger.Error("google user upsert failed", zap.Error(err))
			c.Redirect(http.StatusFound, failure)
			return
		}

		signed, err := tokens.Issue(user)
		if err != nil {
			logger.Error("token generation failed", zap.Error(err))
			c.Redirect(http.StatusFound, failure)
			return
		}

		logger.Info("google login", zap.String("userId", user.ID.Hex()))
		c.Redirect(http.StatusFound, clientURL+"/auth/callback?token="+url.QueryEscape(signed))
	}
}

// upsertGoogleUser links the Google profile to the account with the same email, creating it
// with the default role when missing. An existing role is never changed here.
func upsertGoogleUser(ctx context.Context, db *mongo.Database, profile auth.GoogleProfile, now time.Time) (models.User, error) {
	set := bson.M{"googleId": profile.ID, "updatedAt": now}
	if profile.Name != "" {
		set["name"] = profile.Name
	}
	if profile.Picture != "" {
		set["image"] = profile.Picture
	}

	var user models.User
	err := db.Collection(database.CollectionUsers).FindOneAndUpdate(ctx,
		bson.M{"email": profile.Email},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"email": profile.Email, "role": models.RoleUser, "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&user)
	return user, err
}

func AuthMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/me"

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
			respondInternal(c, route, err, "Failed to fetch user profile")
			return
		}
		respondData(c, http.StatusOK, user)
	}
}

// Logout is an acknowledgement only; tokens are stateless and dropped by the client.
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondMessage(c, http.StatusOK, "Logged out successfully")
	}
}
