package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/store"
)

type fakePaymentStore struct {
	impls      map[uint]*store.Implementation
	templates  map[uint]*store.Template
	paidCalls  []string
	failCalls  []string
	refundIDs  []uint
	commission float64
}

func (f *fakePaymentStore) GetImplementationByID(ctx context.Context, id uint) (*store.Implementation, error) {
	impl, ok := f.impls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return impl, nil
}

func (f *fakePaymentStore) GetTemplateByID(ctx context.Context, id uint) (*store.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakePaymentStore) MarkImplementationPaid(ctx context.Context, id uint, transactionID string, commission float64) error {
	impl, ok := f.impls[id]
	if !ok {
		return store.ErrNotFound
	}
	if impl.PaymentStatus != store.PaymentPending {
		return store.ErrConflict
	}
	impl.PaymentStatus = store.PaymentPaid
	impl.TransactionID = transactionID
	impl.Commission = commission
	f.paidCalls = append(f.paidCalls, transactionID)
	f.commission = commission
	return nil
}

func (f *fakePaymentStore) MarkImplementationPaymentFailed(ctx context.Context, id uint, transactionID string) error {
	impl, ok := f.impls[id]
	if !ok {
		return store.ErrNotFound
	}
	if impl.PaymentStatus != store.PaymentPending {
		return store.ErrConflict
	}
	impl.PaymentStatus = store.PaymentFailed
	f.failCalls = append(f.failCalls, transactionID)
	return nil
}

func (f *fakePaymentStore) MarkImplementationRefunded(ctx context.Context, id uint) error {
	impl, ok := f.impls[id]
	if !ok {
		return store.ErrNotFound
	}
	if impl.PaymentStatus != store.PaymentPaid {
		return store.ErrConflict
	}
	impl.PaymentStatus = store.PaymentRefunded
	f.refundIDs = append(f.refundIDs, id)
	return nil
}

func newTestService(st *fakePaymentStore) *Service {
	cfg := config.PaymentsConfig{
		FrontendURL:    "https://marketplace.test",
		RequestTimeout: 5 * time.Second,
	}
	return NewService(st, cfg, zap.NewNop())
}

func pendingImpl(id uint, budget float64) *store.Implementation {
	return &store.Implementation{
		ID:            id,
		TemplateID:    1,
		Budget:        budget,
		Currency:      "BRL",
		Status:        store.StatusPending,
		PaymentStatus: store.PaymentPending,
	}
}

func TestService_SettlePayment(t *testing.T) {
	st := &fakePaymentStore{impls: map[uint]*store.Implementation{
		10: pendingImpl(10, 200),
	}}
	svc := newTestService(st)

	if err := svc.SettlePayment(context.Background(), 10, "txn-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	impl := st.impls[10]
	if impl.PaymentStatus != store.PaymentPaid {
		t.Errorf("expected paid status, got %q", impl.PaymentStatus)
	}
	if st.commission != 30 {
		t.Errorf("expected commission 30 (15%% of 200), got %v", st.commission)
	}
}

func TestService_SettlePayment_DuplicateDelivery(t *testing.T) {
	st := &fakePaymentStore{impls: map[uint]*store.Implementation{
		10: pendingImpl(10, 200),
	}}
	svc := newTestService(st)

	if err := svc.SettlePayment(context.Background(), 10, "txn-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second delivery of the same webhook settles as a no-op.
	if err := svc.SettlePayment(context.Background(), 10, "txn-1"); err != nil {
		t.Fatalf("duplicate settlement should not error: %v", err)
	}

	if len(st.paidCalls) != 1 {
		t.Errorf("expected exactly one paid transition, got %d", len(st.paidCalls))
	}
}

func TestService_SettlePayment_NeverOverwritesTerminalState(t *testing.T) {
	impl := pendingImpl(10, 200)
	impl.PaymentStatus = store.PaymentRefunded
	st := &fakePaymentStore{impls: map[uint]*store.Implementation{10: impl}}
	svc := newTestService(st)

	if err := svc.SettlePayment(context.Background(), 10, "txn-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if impl.PaymentStatus != store.PaymentRefunded {
		t.Errorf("terminal state overwritten: %q", impl.PaymentStatus)
	}
}

func TestService_SettlePayment_UnknownImplementation(t *testing.T) {
	svc := newTestService(&fakePaymentStore{impls: map[uint]*store.Implementation{}})

	if err := svc.SettlePayment(context.Background(), 99, "txn"); err == nil {
		t.Error("expected error for unknown implementation")
	}
}

func TestService_CreateCheckout_UnknownProvider(t *testing.T) {
	svc := newTestService(&fakePaymentStore{impls: map[uint]*store.Implementation{}})

	if _, err := svc.CreateCheckout(context.Background(), 1, "paypal"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestService_CreateCheckout_AlreadyPaid(t *testing.T) {
	impl := pendingImpl(10, 200)
	impl.PaymentStatus = store.PaymentPaid
	st := &fakePaymentStore{impls: map[uint]*store.Implementation{10: impl}}
	svc := newTestService(st)

	if _, err := svc.CreateCheckout(context.Background(), 10, "mercadopago"); err == nil {
		t.Error("expected error for already-paid implementation")
	}
}

func TestMercadoPago_CreateCheckout(t *testing.T) {
	var gotPath string
	var gotReq mpPreferenceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(mpPreferenceResponse{
			ID:        "pref-123",
			InitPoint: "https://mp.test/checkout/pref-123",
		})
	}))
	defer server.Close()

	mp := NewMercadoPago(config.PaymentsConfig{
		MercadoPagoAccessToken: "token",
		FrontendURL:            "https://marketplace.test",
		RequestTimeout:         5 * time.Second,
	}, zap.NewNop())
	mp.baseURL = server.URL

	sess, err := mp.CreateCheckout(context.Background(), pendingImpl(7, 350), "Implementation: CRM Sync")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/checkout/preferences" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotReq.ExternalReference != "7" {
		t.Errorf("expected external reference 7, got %q", gotReq.ExternalReference)
	}
	if len(gotReq.Items) != 1 || gotReq.Items[0].UnitPrice != 350 {
		t.Errorf("unexpected items: %+v", gotReq.Items)
	}
	if sess.ID != "pref-123" || sess.URL != "https://mp.test/checkout/pref-123" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.Provider != "mercadopago" {
		t.Errorf("unexpected provider %q", sess.Provider)
	}
}

func TestMercadoPago_CreateCheckout_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	mp := NewMercadoPago(config.PaymentsConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
	mp.baseURL = server.URL

	if _, err := mp.CreateCheckout(context.Background(), pendingImpl(7, 350), "title"); err == nil {
		t.Error("expected error when provider rejects the checkout")
	}
}

func TestMercadoPago_LookupPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay-55" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(mpPayment{
			ID:                55,
			Status:            "approved",
			ExternalReference: "12",
		})
	}))
	defer server.Close()

	mp := NewMercadoPago(config.PaymentsConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
	mp.baseURL = server.URL

	status, ref, err := mp.LookupPayment(context.Background(), "pay-55")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "approved" || ref != "12" {
		t.Errorf("got status=%q ref=%q", status, ref)
	}
}
