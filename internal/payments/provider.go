package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

const (
	MinIntentAmount   = 0.50
	MinCheckoutAmount = 1.00

	metadataUserID = "userId"
)

var ErrInvalidAmount = errors.New("invalid payment amount")

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type ProviderConfig struct {
	APIKey    string
	Currency  string
	ClientURL string
	Backends  *stripe.Backends
}

// PaymentIntent is the processor-agnostic handle returned to the client. ID becomes the
// order's externalPaymentRef.
type PaymentIntent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// StripeProvider creates charges. Every charge carries the user id in its metadata so the
// webhook can correlate it back to an order.
type StripeProvider struct {
	intents   intentAPI
	sessions  sessionAPI
	currency  string
	clientURL string
	logger    *zap.Logger
}

func NewStripeProvider(cfg ProviderConfig, logger *zap.Logger) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, cfg.Backends)
	return newStripeProvider(sc.PaymentIntents, sc.CheckoutSessions, cfg, logger), nil
}

func newStripeProvider(intents intentAPI, sessions sessionAPI, cfg ProviderConfig, logger *zap.Logger) *StripeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeProvider{
		intents:   intents,
		sessions:  sessions,
		currency:  currency,
		clientURL: strings.TrimRight(cfg.ClientURL, "/"),
		logger:    logger.Named("payments"),
	}
}

// CreatePaymentIntent charges amount, given in major currency units.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, userID string, amount float64) (PaymentIntent, error) {
	if amount < MinIntentAmount {
		return PaymentIntent{}, fmt.Errorf("%w: minimum is %.2f", ErrInvalidAmount, MinIntentAmount)
	}
	minor := toMinorUnits(amount)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(p.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{metadataUserID: userID},
	}
	params.Context = ctx

	intent, err := p.intents.New(params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger.Info("payment intent created",
		zap.String("paymentIntentId", intent.ID),
		zap.String("userId", userID),
		zap.Int64("amount", minor),
	)
	return PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       minor,
		Currency:     p.currency,
	}, nil
}

// CreateCheckoutSession opens a hosted checkout for amount. The metadata is copied onto the
// session's payment intent so both the session and the intent events correlate.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, userID string, amount float64) (CheckoutSession, error) {
	if amount < MinCheckoutAmount {
		return CheckoutSession{}, fmt.Errorf("%w: minimum is %.2f", ErrInvalidAmount, MinCheckoutAmount)
	}
	minor := toMinorUnits(amount)
	metadata := map[string]string{metadataUserID: userID}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.clientURL + "/checkout?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(p.clientURL + "/checkout?canceled=true"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.currency),
				UnitAmount: stripe.Int64(minor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Your Food Order"),
				},
			},
		}},
		Metadata: metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataUserID: userID},
		},
	}
	params.Context = ctx

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger.Info("checkout session created",
		zap.String("sessionId", session.ID),
		zap.String("userId", userID),
		zap.Int64("amount", minor),
	)
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func toMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}
