package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/database"
	"github.com/evorto/evorto-api/internal/esncard"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/payments"
	"github.com/evorto/evorto-api/internal/pricing"
	"github.com/evorto/evorto-api/internal/rpcerr"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	rpcerr.Install()
	os.Exit(m.Run())
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type refundCall struct {
	Account         string
	PaymentIntentID string
	Amount          int64
}

type fakeProvider struct {
	taxRates    []payments.TaxRate
	checkouts   []payments.CheckoutRequest
	expired     []string
	refunds     []refundCall
	refundKeys  map[string]string
	fee         int64
	checkoutErr error
	webhook     *payments.WebhookEvent
}

func (f *fakeProvider) ListTaxRates(ctx context.Context, account string) ([]payments.TaxRate, error) {
	return f.taxRates, nil
}

func (f *fakeProvider) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	f.checkouts = append(f.checkouts, req)
	n := len(f.checkouts)
	return &payments.Checkout{
		SessionID: fmt.Sprintf("cs_test_%d", n),
		URL:       fmt.Sprintf("https://checkout.stripe.test/%d", n),
	}, nil
}

func (f *fakeProvider) ExpireCheckout(ctx context.Context, account, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

// Refund replays the earlier refund for a repeated key like Stripe does.
func (f *fakeProvider) Refund(ctx context.Context, account, paymentIntentID string, amount int64, idempotencyKey string) (string, error) {
	if id, ok := f.refundKeys[idempotencyKey]; ok {
		return id, nil
	}
	f.refunds = append(f.refunds, refundCall{account, paymentIntentID, amount})
	id := fmt.Sprintf("re_%d", len(f.refunds))
	if idempotencyKey != "" {
		if f.refundKeys == nil {
			f.refundKeys = map[string]string{}
		}
		f.refundKeys[idempotencyKey] = id
	}
	return id, nil
}

func (f *fakeProvider) PaymentFee(ctx context.Context, account, paymentIntentID string) (int64, error) {
	return f.fee, nil
}

func (f *fakeProvider) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	if signature != "valid" || f.webhook == nil {
		return nil, errors.New("bad signature")
	}
	return f.webhook, nil
}

type fakeVerifier struct {
	results map[string]esncard.Result
	err     error
	calls   int
}

func (f *fakeVerifier) Check(ctx context.Context, identifier string) (*esncard.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[identifier]; ok {
		return &r, nil
	}
	return &esncard.Result{Identifier: identifier, Status: pricing.CardInvalid}, nil
}

type recordingNotifier struct {
	registrations []models.EventRegistration
	receipts      []models.FinanceReceipt
	refunds       []int64
}

func (n *recordingNotifier) NotifyRegistration(user models.User, event models.Event, reg models.EventRegistration) error {
	n.registrations = append(n.registrations, reg)
	return nil
}

func (n *recordingNotifier) NotifyReceiptSubmitted(user models.User, event models.Event, receipt models.FinanceReceipt, currency string) error {
	n.receipts = append(n.receipts, receipt)
	return nil
}

func (n *recordingNotifier) NotifyRefund(recipient models.User, total int64, currency string, count int) error {
	n.refunds = append(n.refunds, total)
	return nil
}

type fixture struct {
	db     *gorm.DB
	tenant models.Tenant
	other  models.Tenant
	user   models.User
	admin  models.User
	event  models.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	f := &fixture{db: db}

	f.tenant = models.Tenant{Name: "ESN Munich", Domain: "munich.test", Currency: "EUR", StripeAccountID: "acct_munich", ESNCardEnabled: true}
	f.other = models.Tenant{Name: "ESN Vienna", Domain: "vienna.test", Currency: "EUR"}
	f.user = models.User{Auth0ID: "auth0|user", Email: "user@example.com", FirstName: "Uma", Iban: "DE89370400440532013000"}
	f.admin = models.User{Auth0ID: "auth0|admin", Email: "admin@example.com", FirstName: "Ada"}
	for _, v := range []any{&f.tenant, &f.other, &f.user, &f.admin} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	f.event = models.Event{TenantID: f.tenant.ID, Title: "Neuschwanstein Trip", Start: time.Now().Add(7 * 24 * time.Hour), End: time.Now().Add(7*24*time.Hour + 10*time.Hour)}
	if err := db.Create(&f.event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return f
}

func (f *fixture) ctx(u models.User, perms ...auth.Permission) context.Context {
	set := auth.PermissionSet{}
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return auth.WithSession(context.Background(), &auth.Session{TenantID: f.tenant.ID, UserID: u.ID, Permissions: set})
}

func (f *fixture) taxRate(t *testing.T, stripeID string, active, inclusive bool) models.TenantStripeTaxRate {
	t.Helper()
	r := models.TenantStripeTaxRate{
		TenantID:        f.tenant.ID,
		StripeTaxRateID: stripeID,
		DisplayName:     "VAT",
		Percentage:      decimal.NewFromInt(19),
		Active:          active,
		Inclusive:       inclusive,
	}
	if err := f.db.Create(&r).Error; err != nil {
		t.Fatalf("seed tax rate: %v", err)
	}
	return r
}

func (f *fixture) option(t *testing.T, o models.RegistrationOption) models.RegistrationOption {
	t.Helper()
	o.TenantID = f.tenant.ID
	if o.EventID == 0 {
		o.EventID = f.event.ID
	}
	if o.Title == "" {
		o.Title = "Participant"
	}
	if err := f.db.Create(&o).Error; err != nil {
		t.Fatalf("seed option: %v", err)
	}
	return o
}

func (f *fixture) card(t *testing.T, u models.User, status pricing.CardStatus, validTo *time.Time) {
	t.Helper()
	c := models.DiscountCard{TenantID: f.tenant.ID, UserID: u.ID, Type: pricing.DiscountESNCard, Identifier: fmt.Sprintf("CARD%d", u.ID), Status: status, ValidTo: validTo}
	if err := f.db.Create(&c).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected huma.StatusError, got %T: %v", err, err)
	}
	if se.GetStatus() != status {
		t.Fatalf("expected status %d, got %d (%v)", status, se.GetStatus(), err)
	}
}
