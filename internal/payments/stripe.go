package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	if secretKey == "" {
		return &StripeProvider{webhookSecret: webhookSecret}
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func withAccount(ctx context.Context, p *stripe.Params, account string) {
	p.Context = ctx
	if account != "" {
		p.SetStripeAccount(account)
	}
}

func (s *StripeProvider) ListTaxRates(ctx context.Context, account string) ([]TaxRate, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.TaxRateListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	if account != "" {
		params.SetStripeAccount(account)
	}

	var rates []TaxRate
	iter := s.api.TaxRates.List(params)
	for iter.Next() {
		r := iter.TaxRate()
		rates = append(rates, TaxRate{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			Description: r.Description,
			Percentage:  decimal.NewFromFloat(r.Percentage),
			Inclusive:   r.Inclusive,
			Active:      r.Active,
			Country:     r.Country,
			State:       r.State,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe tax rates: %w", err)
	}
	return rates, nil
}

func (s *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}

	item := &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(strings.ToLower(req.Currency)),
			UnitAmount: stripe.Int64(req.Amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(req.ProductName),
			},
		},
	}
	if req.TaxRateID != "" {
		item.TaxRates = []*string{stripe.String(req.TaxRateID)}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{item},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   req.Metadata,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.AppFee > 0 && req.Account != "" {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(req.AppFee),
		}
	}
	withAccount(ctx, &params.Params, req.Account)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeProvider) ExpireCheckout(ctx context.Context, account, sessionID string) error {
	if s.api == nil {
		return ErrNotConfigured
	}
	params := &stripe.CheckoutSessionExpireParams{}
	withAccount(ctx, &params.Params, account)
	if _, err := s.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire stripe checkout session %s: %w", sessionID, err)
	}
	return nil
}

// Refund returns the money to the payer. Stripe answers a repeated
// idempotencyKey with the original refund.
func (s *StripeProvider) Refund(ctx context.Context, account, paymentIntentID string, amount int64, idempotencyKey string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount),
	}
	if account != "" {
		params.RefundApplicationFee = stripe.Bool(true)
	}
	withAccount(ctx, &params.Params, account)
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("refund payment intent %s: %w", paymentIntentID, err)
	}
	return r.ID, nil
}

// PaymentFee returns the processing fee Stripe charged for a payment intent.
func (s *StripeProvider) PaymentFee(ctx context.Context, account, paymentIntentID string) (int64, error) {
	if s.api == nil {
		return 0, ErrNotConfigured
	}
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge.balance_transaction")
	withAccount(ctx, &params.Params, account)

	pi, err := s.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return 0, fmt.Errorf("get payment intent %s: %w", paymentIntentID, err)
	}
	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return 0, nil
	}
	return pi.LatestCharge.BalanceTransaction.Fee, nil
}

func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}

	out := &WebhookEvent{Type: WebhookEventType(event.Type), Account: event.Account}
	switch out.Type {
	case CheckoutCompleted, CheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = sess.ID
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
	}
	return out, nil
}
