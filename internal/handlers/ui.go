package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Home describes the API for anyone opening the server root in a browser.
func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Restaurant API is running",
			"endpoints": gin.H{
				"auth":     "/api/auth",
				"menu":     "/api/menu-items",
				"orders":   "/api/orders",
				"payments": "/api/payments",
				"admin":    "/api/admin",
				"contact":  "/api/contact",
				"users":    "/api/users",
			},
		})
	}
}

func Healthz(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, "GET /healthz", "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
