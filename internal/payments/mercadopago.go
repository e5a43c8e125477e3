package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/store"
)

const mercadoPagoAPI = "https://api.mercadopago.com"

// MercadoPago creates checkout preferences via the REST API. There is
// no maintained Go SDK, so this speaks HTTP directly.
type MercadoPago struct {
	accessToken string
	frontendURL string
	httpClient  *http.Client
	baseURL     string
	logger      *zap.Logger
}

func NewMercadoPago(cfg config.PaymentsConfig, logger *zap.Logger) *MercadoPago {
	return &MercadoPago{
		accessToken: cfg.MercadoPagoAccessToken,
		frontendURL: cfg.FrontendURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:     mercadoPagoAPI,
		logger:      logger,
	}
}

func (mp *MercadoPago) Name() string { return "mercadopago" }

type mpPreferenceRequest struct {
	Items             []mpItem          `json:"items"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          map[string]string `json:"back_urls"`
	AutoReturn        string            `json:"auto_return"`
	NotificationURL   string            `json:"notification_url,omitempty"`
}

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (mp *MercadoPago) CreateCheckout(ctx context.Context, impl *store.Implementation, title string) (*CheckoutSession, error) {
	reqBody := mpPreferenceRequest{
		Items: []mpItem{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  impl.Budget,
			CurrencyID: impl.Currency,
		}},
		ExternalReference: fmt.Sprintf("%d", impl.ID),
		BackURLs: map[string]string{
			"success": mp.frontendURL + "/payments/success",
			"failure": mp.frontendURL + "/payments/failure",
			"pending": mp.frontendURL + "/payments/pending",
		},
		AutoReturn: "approved",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding preference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mp.baseURL+"/checkout/preferences", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building preference request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+mp.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := mp.httpClient.Do(req)
	if err != nil {
		observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "create_checkout", "error").Inc()
		return nil, fmt.Errorf("calling mercadopago: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading mercadopago response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "create_checkout", "error").Inc()
		mp.logger.Error("mercadopago rejected checkout",
			zap.Int("status", resp.StatusCode),
			zap.Uint("implementation_id", impl.ID),
		)
		return nil, fmt.Errorf("mercadopago returned status %d", resp.StatusCode)
	}

	var pref mpPreferenceResponse
	if err := json.Unmarshal(body, &pref); err != nil {
		return nil, fmt.Errorf("decoding mercadopago response: %w", err)
	}

	observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "create_checkout", "success").Inc()

	return &CheckoutSession{
		ID:               pref.ID,
		Provider:         mp.Name(),
		URL:              pref.InitPoint,
		Amount:           impl.Budget,
		Currency:         impl.Currency,
		ImplementationID: impl.ID,
	}, nil
}

type mpPayment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// LookupPayment fetches the current state of a payment. Webhook
// deliveries only carry the payment ID; the status must be confirmed
// against the API rather than trusted from the notification body.
func (mp *MercadoPago) LookupPayment(ctx context.Context, paymentID string) (status, externalRef string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		mp.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return "", "", fmt.Errorf("building payment lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+mp.accessToken)

	resp, err := mp.httpClient.Do(req)
	if err != nil {
		observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "lookup_payment", "error").Inc()
		return "", "", fmt.Errorf("calling mercadopago: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "lookup_payment", "error").Inc()
		return "", "", fmt.Errorf("mercadopago payment lookup returned status %d", resp.StatusCode)
	}

	var payment mpPayment
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payment); err != nil {
		return "", "", fmt.Errorf("decoding payment: %w", err)
	}

	observability.PaymentOperationsTotal.WithLabelValues(mp.Name(), "lookup_payment", "success").Inc()
	return payment.Status, payment.ExternalReference, nil
}
