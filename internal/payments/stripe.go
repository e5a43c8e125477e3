package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/store"
)

// Stripe creates hosted checkout sessions via the official SDK.
type Stripe struct {
	webhookSecret string
	frontendURL   string
	logger        *zap.Logger
}

func NewStripe(cfg config.PaymentsConfig, logger *zap.Logger) *Stripe {
	stripe.Key = cfg.StripeSecretKey
	return &Stripe{
		webhookSecret: cfg.StripeWebhookSecret,
		frontendURL:   cfg.FrontendURL,
		logger:        logger,
	}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreateCheckout(ctx context.Context, impl *store.Implementation, title string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(impl.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(title),
				},
				// Stripe amounts are in the currency's minor unit.
				UnitAmount: stripe.Int64(int64(impl.Budget * 100)),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.frontendURL + "/payments/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.frontendURL + "/payments/failure"),
		ClientReferenceID: stripe.String(fmt.Sprintf("%d", impl.ID)),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		observability.PaymentOperationsTotal.WithLabelValues(s.Name(), "create_checkout", "error").Inc()
		s.logger.Error("stripe checkout creation failed",
			zap.Uint("implementation_id", impl.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("creating stripe checkout: %w", err)
	}

	observability.PaymentOperationsTotal.WithLabelValues(s.Name(), "create_checkout", "success").Inc()

	return &CheckoutSession{
		ID:               sess.ID,
		Provider:         s.Name(),
		URL:              sess.URL,
		Amount:           impl.Budget,
		Currency:         impl.Currency,
		ImplementationID: impl.ID,
	}, nil
}

// VerifyWebhook validates a Stripe webhook delivery against its
// signature header and returns the parsed event.
func (s *Stripe) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues(s.Name(), "rejected").Inc()
		return stripe.Event{}, fmt.Errorf("verifying stripe webhook: %w", err)
	}
	observability.WebhookEventsTotal.WithLabelValues(s.Name(), "accepted").Inc()
	return event, nil
}
