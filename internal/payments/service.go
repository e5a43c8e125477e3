package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/store"
)

// PaymentStore is the slice of the store the payment service needs.
type PaymentStore interface {
	GetImplementationByID(ctx context.Context, id uint) (*store.Implementation, error)
	GetTemplateByID(ctx context.Context, id uint) (*store.Template, error)
	MarkImplementationPaid(ctx context.Context, id uint, transactionID string, commission float64) error
	MarkImplementationPaymentFailed(ctx context.Context, id uint, transactionID string) error
	MarkImplementationRefunded(ctx context.Context, id uint) error
}

// Service routes checkout creation to a per-request provider and
// settles payment outcomes delivered by webhooks.
type Service struct {
	store       PaymentStore
	mercadopago *MercadoPago
	stripe      *Stripe
	providers   map[string]Provider
	logger      *zap.Logger
}

func NewService(st PaymentStore, cfg config.PaymentsConfig, logger *zap.Logger) *Service {
	mp := NewMercadoPago(cfg, logger)
	sp := NewStripe(cfg, logger)
	return &Service{
		store:       st,
		mercadopago: mp,
		stripe:      sp,
		providers: map[string]Provider{
			mp.Name(): mp,
			sp.Name(): sp,
		},
		logger: logger,
	}
}

// Stripe exposes the Stripe provider for webhook verification.
func (s *Service) Stripe() *Stripe { return s.stripe }

// CreateCheckout builds a checkout session for an implementation with
// the named provider. Only implementations awaiting payment qualify.
func (s *Service) CreateCheckout(ctx context.Context, implementationID uint, providerName string) (*CheckoutSession, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", providerName)
	}

	impl, err := s.store.GetImplementationByID(ctx, implementationID)
	if err != nil {
		return nil, err
	}
	if impl.PaymentStatus != store.PaymentPending {
		return nil, fmt.Errorf("implementation %d payment already %s", impl.ID, impl.PaymentStatus)
	}

	title := fmt.Sprintf("Implementation #%d", impl.ID)
	if tmpl, err := s.store.GetTemplateByID(ctx, impl.TemplateID); err == nil {
		title = "Implementation: " + tmpl.Title
	}

	return provider.CreateCheckout(ctx, impl, title)
}

// SettlePayment transitions an implementation to paid and records the
// 15% commission. Safe under duplicate webhook deliveries: the
// conditional update only succeeds once, and a repeat settles as a
// no-op instead of an error.
func (s *Service) SettlePayment(ctx context.Context, implementationID uint, transactionID string) error {
	impl, err := s.store.GetImplementationByID(ctx, implementationID)
	if err != nil {
		return err
	}

	commission := Commission(impl.Budget)
	err = s.store.MarkImplementationPaid(ctx, implementationID, transactionID, commission)
	if errors.Is(err, store.ErrConflict) {
		s.logger.Info("duplicate payment settlement ignored",
			zap.Uint("implementation_id", implementationID),
			zap.String("transaction_id", transactionID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("payment settled",
		zap.Uint("implementation_id", implementationID),
		zap.String("transaction_id", transactionID),
		zap.Float64("commission", commission),
	)
	return nil
}

// FailPayment records a failed payment attempt.
func (s *Service) FailPayment(ctx context.Context, implementationID uint, transactionID string) error {
	err := s.store.MarkImplementationPaymentFailed(ctx, implementationID, transactionID)
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}

// RefundPayment records a refund for a previously paid implementation.
func (s *Service) RefundPayment(ctx context.Context, implementationID uint) error {
	return s.store.MarkImplementationRefunded(ctx, implementationID)
}

// HandleMercadoPagoNotification processes a payment notification. The
// delivery only names the payment; the authoritative status comes from
// a lookup against the provider API.
func (s *Service) HandleMercadoPagoNotification(ctx context.Context, paymentID string) error {
	status, externalRef, err := s.mercadopago.LookupPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	implementationID, err := strconv.ParseUint(externalRef, 10, 32)
	if err != nil {
		return fmt.Errorf("malformed external reference %q: %w", externalRef, err)
	}
	id := uint(implementationID)

	switch status {
	case "approved":
		return s.SettlePayment(ctx, id, paymentID)
	case "rejected", "cancelled":
		return s.FailPayment(ctx, id, paymentID)
	case "refunded", "charged_back":
		return s.RefundPayment(ctx, id)
	default:
		s.logger.Debug("ignoring mercadopago payment status",
			zap.String("payment_id", paymentID),
			zap.String("status", status),
		)
		return nil
	}
}

// HandleStripeEvent processes a verified Stripe event.
func (s *Service) HandleStripeEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		implementationID, err := strconv.ParseUint(sess.ClientReferenceID, 10, 32)
		if err != nil {
			return fmt.Errorf("malformed client reference %q: %w", sess.ClientReferenceID, err)
		}
		return s.SettlePayment(ctx, uint(implementationID), sess.ID)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		implementationID, err := strconv.ParseUint(sess.ClientReferenceID, 10, 32)
		if err != nil {
			return fmt.Errorf("malformed client reference %q: %w", sess.ClientReferenceID, err)
		}
		return s.FailPayment(ctx, uint(implementationID), sess.ID)

	default:
		s.logger.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil
	}
}
