package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eatery/internal/logging"
	"eatery/internal/models"
	"eatery/internal/orders"
)

// OrderService is the order workflow the HTTP layer drives.
type OrderService interface {
	CreateOrder(ctx context.Context, actor orders.Actor, in orders.CreateOrderInput) (models.Order, error)
	Quote(ctx context.Context, cart []orders.CartLine, orderType models.OrderType) (orders.Quote, error)
	Get(ctx context.Context, actor orders.Actor, id string) (models.Order, error)
	List(ctx context.Context, actor orders.Actor, status models.OrderStatus) ([]models.Order, error)
	UpdateStatus(ctx context.Context, actor orders.Actor, id string, to models.OrderStatus) (models.Order, error)
	Cancel(ctx context.Context, actor orders.Actor, id string) (models.Order, error)
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		in, err := req.toInput()
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := svc.CreateOrder(ctx, actor, in)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data":    order,
			"message": "Order created successfully",
		})
	}
}

/* =========================
   GET ORDERS
========================= */

func GetOrders(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}

		status := models.OrderStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
		if status != "" && !status.Valid() {
			respondWithError(c, http.StatusBadRequest, route, "Invalid status value")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := svc.List(ctx, actor, status)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

func GetOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:id"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := svc.Get(ctx, actor, c.Param("id"))
		if err != nil {
			respondOrderError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

/* =========================
   CANCEL ORDER
========================= */

func CancelOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/:id/cancel"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := svc.Cancel(ctx, actor, c.Param("id"))
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    order,
			"message": "Order cancelled successfully",
		})
	}
}

// respondOrderError maps the order error taxonomy onto status codes. Storage errors are
// logged and never echoed.
func respondOrderError(c *gin.Context, route string, err error) {
	var (
		notFound   orders.ItemNotFoundError
		quantity   orders.InvalidQuantityError
		validation orders.ValidationError
		transition orders.IllegalTransitionError
	)

	switch {
	case errors.As(err, &notFound):
		status := http.StatusNotFound
		if notFound.Unavailable {
			status = http.StatusConflict
		}
		logging.From(c).Info("order rejected", zap.String("route", route), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error(), "itemId": notFound.ItemID})
	case errors.As(err, &quantity):
		logging.From(c).Info("order rejected", zap.String("route", route), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "itemId": quantity.ItemID})
	case errors.As(err, &validation):
		logging.From(c).Info("order rejected", zap.String("route", route), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "field": validation.Field})
	case errors.As(err, &transition):
		status := http.StatusConflict
		if transition.Forbidden {
			status = http.StatusForbidden
		}
		logging.From(c).Info("transition rejected", zap.String("route", route), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{
			"success":         false,
			"error":           err.Error(),
			"currentStatus":   transition.From,
			"requestedStatus": transition.To,
		})
	case errors.Is(err, orders.ErrForbidden):
		respondWithError(c, http.StatusForbidden, route, "Unauthorized to view this order")
	case errors.Is(err, orders.ErrOrderNotFound):
		respondWithError(c, http.StatusNotFound, route, "Order not found")
	case errors.Is(err, orders.ErrTransactionFailure):
		respondInternal(c, route, err, "Failed to create order, please retry")
	default:
		respondInternal(c, route, err, "internal server error")
	}
}
