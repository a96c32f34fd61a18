package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"eatery/internal/auth"
	"eatery/internal/logging"
	"eatery/internal/middleware"
	"eatery/internal/orders"
)

const requestTimeout = 5 * time.Second

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": true, "message": message})
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	logger := logging.From(c).With(zap.String("route", route), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error("returning error", zap.String("error", message))
	} else {
		logger.Info("returning error", zap.String("error", message))
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// respondInternal logs the cause and answers with a generic message.
func respondInternal(c *gin.Context, route string, err error, message string) {
	logging.From(c).Error("request failed", zap.String("route", route), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": message})
}

// bindingErrorMessage turns validator errors into a message naming the first bad field.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte", "min":
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "lte", "max":
			return fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "email":
			return fmt.Sprintf("%s must be a valid email", field)
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return "invalid request body"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func actorFrom(c *gin.Context) (orders.Actor, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return orders.Actor{}, false
	}
	return orders.Actor{UserID: identity.UserID, Role: identity.Role}, true
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	return middleware.IdentityFrom(c)
}

func mapKeys(input map[string]interface{}) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
