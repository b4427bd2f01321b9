package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/payments"
	"gorm.io/gorm"
)

type WebhookHandler struct {
	db       *gorm.DB
	provider payments.Provider
	now      func() time.Time
}

func NewWebhookHandler(db *gorm.DB, provider payments.Provider) *WebhookHandler {
	return &WebhookHandler{db: db, provider: provider, now: time.Now}
}

type StripeWebhookInput struct {
	Signature string `header:"Stripe-Signature"`
	RawBody   []byte
}

type WebhookOutput struct {
	Body struct {
		Received bool `json:"received"`
	}
}

func received() *WebhookOutput {
	out := &WebhookOutput{}
	out.Body.Received = true
	return out
}

// HandleStripeWebhook settles checkout sessions. Unknown sessions and
// repeated deliveries are acknowledged without changes.
func (h *WebhookHandler) HandleStripeWebhook(ctx context.Context, input *StripeWebhookInput) (*WebhookOutput, error) {
	event, err := h.provider.ParseWebhook(input.RawBody, input.Signature)
	if err != nil {
		log.Printf("Rejected Stripe webhook: %v", err)
		return nil, huma.Error400BadRequest("Invalid webhook")
	}
	if event.SessionID == "" {
		return received(), nil
	}

	var txn models.Transaction
	err = h.db.Where("stripe_checkout_session_id = ?", event.SessionID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Stripe webhook for unknown checkout session %s", event.SessionID)
		return received(), nil
	}
	if err != nil {
		return nil, dbError(err)
	}

	tenant, err := loadTenant(h.db, txn.TenantID)
	if err != nil {
		return nil, err
	}
	if event.Account != tenant.StripeAccountID {
		log.Printf("Stripe webhook account %q does not match tenant %d", event.Account, tenant.ID)
		return received(), nil
	}

	switch event.Type {
	case payments.CheckoutCompleted:
		err = h.completeCheckout(ctx, tenant, &txn, event.PaymentIntentID)
	case payments.CheckoutExpired:
		err = h.expireCheckout(&txn)
	}
	if err != nil {
		return nil, dbError(err)
	}
	return received(), nil
}

func (h *WebhookHandler) completeCheckout(ctx context.Context, tenant *models.Tenant, txn *models.Transaction, paymentIntentID string) error {
	if txn.Status != models.TransactionPending {
		return nil
	}

	updates := map[string]any{"status": models.TransactionSuccessful}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
		fee, err := h.provider.PaymentFee(ctx, tenant.StripeAccountID, paymentIntentID)
		if err != nil {
			log.Printf("Fee lookup for %s failed: %v", paymentIntentID, err)
		} else {
			updates["stripe_fee"] = fee
		}
	}

	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(txn).Updates(updates).Error; err != nil {
			return err
		}
		if txn.EventRegistrationID == nil {
			return nil
		}
		res := tx.Model(&models.EventRegistration{}).
			Where("tenant_id = ? AND id = ? AND status = ?", txn.TenantID, *txn.EventRegistrationID, models.RegistrationPending).
			Update("status", models.RegistrationConfirmed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			log.Printf("Payment completed for registration %d which is no longer pending", *txn.EventRegistrationID)
			return tx.Model(txn).Updates(map[string]any{
				"needs_reconciliation": true,
				"comment":              "Payment captured after the registration left the pending state",
			}).Error
		}
		return nil
	})
}

func (h *WebhookHandler) expireCheckout(txn *models.Transaction) error {
	if txn.Status != models.TransactionPending {
		return nil
	}
	now := h.now()
	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(txn).Update("status", models.TransactionCancelled).Error; err != nil {
			return err
		}
		if txn.EventRegistrationID == nil {
			return nil
		}
		return tx.Model(&models.EventRegistration{}).
			Where("tenant_id = ? AND id = ? AND status = ?", txn.TenantID, *txn.EventRegistrationID, models.RegistrationPending).
			Updates(map[string]any{"status": models.RegistrationCancelled, "cancelled_at": now}).Error
	})
}
