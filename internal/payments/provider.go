// Package payments is the boundary to the payment and tax-rate provider.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotConfigured = errors.New("payment provider is not configured")

type TaxRate struct {
	ID          string
	DisplayName string
	Description string
	Percentage  decimal.Decimal
	Inclusive   bool
	Active      bool
	Country     string
	State       string
}

type CheckoutRequest struct {
	Account       string
	Currency      string
	ProductName   string
	Amount        int64
	TaxRateID     string
	AppFee        int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Checkout struct {
	SessionID string
	URL       string
}

type WebhookEventType string

const (
	CheckoutCompleted WebhookEventType = "checkout.session.completed"
	CheckoutExpired   WebhookEventType = "checkout.session.expired"
)

// WebhookEvent is the provider-neutral subset of a payment webhook.
type WebhookEvent struct {
	Type            WebhookEventType
	Account         string
	SessionID       string
	PaymentIntentID string
}

// Provider is implemented by StripeProvider. Every call takes the tenant's
// connected account id; an empty account acts on the platform account.
type Provider interface {
	ListTaxRates(ctx context.Context, account string) ([]TaxRate, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	ExpireCheckout(ctx context.Context, account, sessionID string) error
	Refund(ctx context.Context, account, paymentIntentID string, amount int64, idempotencyKey string) (string, error)
	PaymentFee(ctx context.Context, account, paymentIntentID string) (int64, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// AppFee computes the platform fee for an amount in basis points.
func AppFee(amount, basisPoints int64) int64 {
	if amount <= 0 || basisPoints <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(basisPoints)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}
