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
	"eatery/internal/payments"
)

const maxWebhookBody = 512 << 10

type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, userID string, amount float64) (payments.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, userID string, amount float64) (payments.CheckoutSession, error)
}

type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (payments.Result, error)
}

// paymentRequest sizes a charge from the cart. There is no amount field: the charge is
// always the server-side quote, the same total the order will be created with.
type paymentRequest struct {
	Items     []orderItemRequest `json:"items"`
	OrderType string             `json:"orderType"`
}

func resolvePaymentAmount(c *gin.Context, svc OrderService, req paymentRequest) (float64, error) {
	cart, err := normalizeCart(req.Items)
	if err != nil {
		return 0, err
	}
	orderType := models.OrderType(strings.ToLower(strings.TrimSpace(req.OrderType)))
	if orderType == "" {
		orderType = models.OrderTypePickup
	}
	quote, err := svc.Quote(c.Request.Context(), cart, orderType)
	if err != nil {
		return 0, err
	}
	return quote.Total, nil
}

func CreatePaymentIntent(provider PaymentProvider, svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/create-payment-intent"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}
		if provider == nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "payments are not configured")
			return
		}

		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		amount, err := resolvePaymentAmount(c, svc, req)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout*2)
		defer cancel()

		intent, err := provider.CreatePaymentIntent(ctx, actor.UserID, amount)
		if err != nil {
			if errors.Is(err, payments.ErrInvalidAmount) {
				respondWithError(c, http.StatusBadRequest, route, "Invalid amount for payment intent.")
				return
			}
			respondInternal(c, route, err, "Failed to create payment intent")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"clientSecret":    intent.ClientSecret,
			"paymentIntentId": intent.ID,
			"data":            intent,
		})
	}
}

func CreateCheckoutSession(provider PaymentProvider, svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/create-checkout-session"

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "Authentication required.")
			return
		}
		if provider == nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "payments are not configured")
			return
		}

		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		amount, err := resolvePaymentAmount(c, svc, req)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout*2)
		defer cancel()

		session, err := provider.CreateCheckoutSession(ctx, actor.UserID, amount)
		if err != nil {
			if errors.Is(err, payments.ErrInvalidAmount) {
				respondWithError(c, http.StatusBadRequest, route, "Invalid amount for checkout.")
				return
			}
			respondInternal(c, route, err, "Error creating payment session")
			return
		}
		respondData(c, http.StatusOK, session)
	}
}

// PaymentWebhook reads the body as raw bytes and hands them to the processor unparsed.
func PaymentWebhook(processor WebhookProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/webhook"

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
		payload, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logging.From(c).Error("webhook body over limit", zap.Int64("limit", tooLarge.Limit))
				respondWithError(c, http.StatusRequestEntityTooLarge, route, "Webhook Error: body too large")
				return
			}
			respondWithError(c, http.StatusBadRequest, route, "Webhook Error: unreadable body")
			return
		}

		result, err := processor.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			logging.From(c).Warn("webhook signature rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Webhook Error: invalid signature"})
			return
		case errors.Is(err, payments.ErrWebhookNotConfigured):
			respondInternal(c, route, err, "Webhook configuration error.")
			return
		case err != nil:
			respondInternal(c, route, err, "webhook processing failed")
			return
		}

		logging.From(c).Info("webhook processed",
			zap.String("eventId", result.EventID),
			zap.String("type", result.EventType),
			zap.String("outcome", string(result.Outcome)),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
