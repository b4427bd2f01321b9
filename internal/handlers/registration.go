package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/cancellation"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/notifier"
	"github.com/evorto/evorto-api/internal/payments"
	"github.com/evorto/evorto-api/internal/pricing"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RegistrationHandler struct {
	db                *gorm.DB
	provider          payments.Provider
	notifier          notifier.Notifier
	idem              Idempotency
	appFeeBasisPoints int64
	frontendURL       string
	now               func() time.Time
}

func NewRegistrationHandler(db *gorm.DB, provider payments.Provider, n notifier.Notifier, idem Idempotency, appFeeBasisPoints int64, frontendURL string) *RegistrationHandler {
	return &RegistrationHandler{
		db:                db,
		provider:          provider,
		notifier:          n,
		idem:              idem,
		appFeeBasisPoints: appFeeBasisPoints,
		frontendURL:       strings.TrimRight(frontendURL, "/"),
		now:               time.Now,
	}
}

type RegisterInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"UUID; retries with the same key replay the first response"`
	Body           struct {
		EventID              uint `json:"eventId"`
		RegistrationOptionID uint `json:"registrationOptionId"`
	}
}

type RegisterResponse struct {
	RegistrationID uint                      `json:"registrationId"`
	Status         models.RegistrationStatus `json:"status"`
	EffectivePrice int64                     `json:"effectivePrice"`
	CheckoutURL    string                    `json:"checkoutUrl,omitempty"`
	Warning        string                    `json:"warning,omitempty"`
}

type RegisterOutput struct {
	Body RegisterResponse
}

func newReference() string {
	return uuid.NewString()
}

// refundKey is the provider idempotency key for a registration refund. A
// registration is refunded at most once, so its id is enough.
func refundKey(registrationID uint) string {
	return fmt.Sprintf("refund-registration-%d", registrationID)
}

func (h *RegistrationHandler) HandleRegisterForEvent(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	return withIdempotency(ctx, h.idem, s, "events.registerForEvent", input.IdempotencyKey, func() (*RegisterOutput, error) {
		return h.register(ctx, s, input.Body.EventID, input.Body.RegistrationOptionID)
	})
}

func (h *RegistrationHandler) register(ctx context.Context, s *auth.Session, eventID, optionID uint) (*RegisterOutput, error) {
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(h.db, s.TenantID, eventID)
	if err != nil {
		return nil, err
	}

	var option models.RegistrationOption
	err = h.db.Where("tenant_id = ? AND event_id = ? AND id = ?", s.TenantID, event.ID, optionID).First(&option).Error
	if err != nil {
		return nil, notFoundOr500(err, "Registration option not found")
	}

	now := h.now()
	if !option.RegistrationOpen(now) {
		return nil, huma.Error400BadRequest("Registration is not open for this option")
	}

	var user models.User
	if err := h.db.First(&user, s.UserID).Error; err != nil {
		return nil, notFoundOr500(err, "User not found")
	}

	var cards []models.DiscountCard
	if err := h.db.Where("tenant_id = ? AND user_id = ?", s.TenantID, s.UserID).Find(&cards).Error; err != nil {
		return nil, dbError(err)
	}

	quote := pricing.Resolve(option.PricingOption(), models.PricingCards(cards), event.Start)
	policy := cancellation.Resolve(tenant.Policies(), option.IsPaid, option.OrganizingRegistration, option.PolicyOverride())

	registration := models.EventRegistration{
		TenantID:                    s.TenantID,
		EventID:                     event.ID,
		UserID:                      s.UserID,
		RegistrationOptionID:        option.ID,
		EffectiveCancellationPolicy: datatypes.NewJSONType(policy),
		BasePriceAtRegistration:     quote.BasePrice,
	}
	if quote.AppliedDiscount != nil {
		registration.AppliedDiscountType = ptr(quote.AppliedDiscount.DiscountType)
		registration.AppliedDiscountedPrice = ptr(quote.EffectivePrice)
	}

	var checkoutURL string
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.EventRegistration{}).
			Where("tenant_id = ? AND event_id = ? AND user_id = ? AND status IN ?", s.TenantID, event.ID, s.UserID, models.ActiveRegistrationStatuses).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return huma.Error409Conflict("Already registered for this event")
		}

		full := false
		if option.Spaces > 0 {
			var taken int64
			err := tx.Model(&models.EventRegistration{}).
				Where("tenant_id = ? AND registration_option_id = ? AND status IN ?", s.TenantID, option.ID,
					[]models.RegistrationStatus{models.RegistrationPending, models.RegistrationConfirmed}).
				Count(&taken).Error
			if err != nil {
				return err
			}
			full = taken >= int64(option.Spaces)
		}

		switch {
		case full:
			registration.Status = models.RegistrationWaitlist
		case quote.Free():
			registration.Status = models.RegistrationConfirmed
		default:
			registration.Status = models.RegistrationPending
			registration.StripeTaxRateID = option.StripeTaxRateID
		}

		if err := tx.Create(&registration).Error; err != nil {
			return err
		}
		if registration.Status != models.RegistrationPending {
			return nil
		}

		appFee := payments.AppFee(quote.EffectivePrice, h.appFeeBasisPoints)
		txn := models.Transaction{
			TenantID:            s.TenantID,
			Reference:           newReference(),
			Amount:              quote.EffectivePrice,
			Currency:            tenant.Currency,
			Type:                models.TransactionRegistration,
			Method:              models.MethodStripe,
			Status:              models.TransactionPending,
			Comment:             fmt.Sprintf("Registration for %s", event.Title),
			EventID:             ptr(event.ID),
			EventRegistrationID: ptr(registration.ID),
			TargetUserID:        ptr(s.UserID),
			AppFee:              ptr(appFee),
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		taxRate := ""
		if option.StripeTaxRateID != nil {
			taxRate = *option.StripeTaxRateID
		}
		checkout, err := h.provider.CreateCheckout(ctx, payments.CheckoutRequest{
			Account:       tenant.StripeAccountID,
			Currency:      tenant.Currency,
			ProductName:   fmt.Sprintf("%s (%s)", event.Title, option.Title),
			Amount:        quote.EffectivePrice,
			TaxRateID:     taxRate,
			AppFee:        appFee,
			CustomerEmail: user.Email,
			SuccessURL:    fmt.Sprintf("%s/events/%d?registration=success", h.frontendURL, event.ID),
			CancelURL:     fmt.Sprintf("%s/events/%d?registration=cancelled", h.frontendURL, event.ID),
			Metadata: map[string]string{
				"tenantId":       fmt.Sprint(s.TenantID),
				"registrationId": fmt.Sprint(registration.ID),
				"transactionId":  txn.Reference,
			},
		})
		if err != nil {
			log.Printf("Creating checkout for registration %d failed: %v", registration.ID, err)
			return huma.Error500InternalServerError("Failed to create checkout session")
		}
		checkoutURL = checkout.URL

		return tx.Model(&txn).Updates(map[string]any{
			"stripe_checkout_session_id": checkout.SessionID,
			"stripe_checkout_url":        checkout.URL,
		}).Error
	})
	if err != nil {
		return nil, passthrough(err)
	}

	if err := h.notifier.NotifyRegistration(user, *event, registration); err != nil {
		log.Printf("Registration notification failed: %v", err)
	}

	return &RegisterOutput{Body: RegisterResponse{
		RegistrationID: registration.ID,
		Status:         registration.Status,
		EffectivePrice: quote.EffectivePrice,
		CheckoutURL:    checkoutURL,
		Warning:        quote.Warning,
	}}, nil
}

type RegistrationIDInput struct {
	Body struct {
		RegistrationID uint `json:"registrationId"`
	}
}

type CancelResponse struct {
	RegistrationID uint                      `json:"registrationId"`
	Status         models.RegistrationStatus `json:"status"`
	RefundAmount   int64                     `json:"refundAmount"`
}

type CancelOutput struct {
	Body CancelResponse
}

func pendingTransaction(tx *gorm.DB, tenantID, registrationID uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("tenant_id = ? AND event_registration_id = ? AND type = ? AND status = ?",
		tenantID, registrationID, models.TransactionRegistration, models.TransactionPending).
		Order("id DESC").First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// HandleCancelPendingRegistration abandons an unpaid checkout.
func (h *RegistrationHandler) HandleCancelPendingRegistration(ctx context.Context, input *RegistrationIDInput) (*CancelOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	var reg models.EventRegistration
	err = h.db.Where("tenant_id = ? AND user_id = ? AND id = ?", s.TenantID, s.UserID, input.Body.RegistrationID).First(&reg).Error
	if err != nil {
		return nil, notFoundOr500(err, "Registration not found")
	}
	if reg.Status != models.RegistrationPending {
		return nil, huma.Error400BadRequest("Registration is not pending")
	}

	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}

	txn, err := pendingTransaction(h.db, s.TenantID, reg.ID)
	if err != nil {
		return nil, dbError(err)
	}
	if txn != nil && txn.StripeCheckoutSessionID != nil {
		if err := h.provider.ExpireCheckout(ctx, tenant.StripeAccountID, *txn.StripeCheckoutSessionID); err != nil {
			log.Printf("Expiring checkout for registration %d failed: %v", reg.ID, err)
			return nil, huma.Error500InternalServerError("Failed to expire checkout session")
		}
	}

	now := h.now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EventRegistration{}).
			Where("id = ? AND status = ?", reg.ID, models.RegistrationPending).
			Updates(map[string]any{"status": models.RegistrationCancelled, "cancelled_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return huma.Error409Conflict("Registration changed while cancelling")
		}
		if txn == nil {
			return nil
		}
		return tx.Model(txn).Update("status", models.TransactionCancelled).Error
	})
	if err != nil {
		return nil, passthrough(err)
	}

	return &CancelOutput{Body: CancelResponse{RegistrationID: reg.ID, Status: models.RegistrationCancelled}}, nil
}

type CancelRegistrationInput struct {
	Body struct {
		RegistrationID uint   `json:"registrationId"`
		WithoutRefund  bool   `json:"withoutRefund,omitempty"`
		Reason         string `json:"reason,omitempty"`
		Notes          string `json:"notes,omitempty"`
	}
}

func (h *RegistrationHandler) HandleCancelRegistration(ctx context.Context, input *CancelRegistrationInput) (*CancelOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	in := input.Body

	if in.WithoutRefund {
		if !s.Can(auth.PermCancelWithoutRefund) {
			return nil, huma.Error403Forbidden("Missing permission " + string(auth.PermCancelWithoutRefund))
		}
		if strings.TrimSpace(in.Reason) == "" {
			return nil, huma.Error400BadRequest("A reason is required when cancelling without refund")
		}
	}

	var reg models.EventRegistration
	err = h.db.Preload("Event").Where("tenant_id = ? AND id = ?", s.TenantID, in.RegistrationID).First(&reg).Error
	if err != nil {
		return nil, notFoundOr500(err, "Registration not found")
	}

	own := reg.UserID == s.UserID
	if !own && !s.Can(auth.PermCancelAnyRegistration) {
		return nil, huma.Error403Forbidden("Missing permission " + string(auth.PermCancelAnyRegistration))
	}

	switch reg.Status {
	case models.RegistrationCancelled:
		return nil, huma.Error400BadRequest("Registration is already cancelled")
	case models.RegistrationPending:
		return nil, huma.Error400BadRequest("Pending registrations are cancelled through cancelPendingRegistration")
	}

	now := h.now()
	policy := reg.Policy()
	if own {
		if err := cancellation.Check(policy, reg.Event.Start, now); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}

	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}

	var refund int64
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EventRegistration{}).
			Where("id = ? AND status = ?", reg.ID, reg.Status).
			Updates(map[string]any{
				"status":              models.RegistrationCancelled,
				"cancelled_at":        now,
				"cancellation_reason": strings.TrimSpace(in.Reason),
				"cancellation_notes":  strings.TrimSpace(in.Notes),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return huma.Error409Conflict("Registration changed while cancelling")
		}

		if in.WithoutRefund || reg.Status != models.RegistrationConfirmed {
			return nil
		}

		var paid models.Transaction
		err := tx.Where("tenant_id = ? AND event_registration_id = ? AND type = ? AND status = ?",
			s.TenantID, reg.ID, models.TransactionRegistration, models.TransactionSuccessful).
			First(&paid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var stripeFee, appFee int64
		if paid.StripeFee != nil {
			stripeFee = *paid.StripeFee
		}
		if paid.AppFee != nil {
			appFee = *paid.AppFee
		}
		refund = cancellation.RefundAmount(policy, paid.Amount, stripeFee, appFee)
		if refund <= 0 {
			refund = 0
			return nil
		}

		comment := "Registration refund"
		if paid.StripePaymentIntentID != nil {
			comment = "Stripe refund of " + *paid.StripePaymentIntentID
		}
		err = tx.Create(&models.Transaction{
			TenantID:            s.TenantID,
			Reference:           newReference(),
			Amount:              -refund,
			Currency:            paid.Currency,
			Type:                models.TransactionRegistrationRefund,
			Method:              models.MethodStripe,
			Status:              models.TransactionSuccessful,
			Comment:             comment,
			EventID:             ptr(reg.EventID),
			EventRegistrationID: ptr(reg.ID),
			TargetUserID:        ptr(reg.UserID),
			ExecutiveUserID:     ptr(s.UserID),
		}).Error
		if err != nil || paid.StripePaymentIntentID == nil {
			return err
		}

		// The provider call goes last so a failed ledger write never moves
		// money. The key makes a retry after a failed commit a no-op at Stripe.
		refundID, err := h.provider.Refund(ctx, tenant.StripeAccountID, *paid.StripePaymentIntentID, refund, refundKey(reg.ID))
		if err != nil {
			log.Printf("Refund for registration %d failed: %v", reg.ID, err)
			return huma.Error500InternalServerError("Failed to refund payment")
		}
		log.Printf("Stripe refund %s issued for registration %d", refundID, reg.ID)
		return nil
	})
	if err != nil {
		return nil, passthrough(err)
	}

	reg.Status = models.RegistrationCancelled
	var user models.User
	if err := h.db.First(&user, reg.UserID).Error; err == nil {
		if err := h.notifier.NotifyRegistration(user, reg.Event, reg); err != nil {
			log.Printf("Cancellation notification failed: %v", err)
		}
	}

	return &CancelOutput{Body: CancelResponse{RegistrationID: reg.ID, Status: models.RegistrationCancelled, RefundAmount: refund}}, nil
}

type RegistrationStatusItem struct {
	RegistrationID       uint                      `json:"registrationId"`
	RegistrationOptionID uint                      `json:"registrationOptionId"`
	OptionTitle          string                    `json:"optionTitle"`
	Status               models.RegistrationStatus `json:"status"`
	BasePrice            int64                     `json:"basePrice"`
	EffectivePrice       int64                     `json:"effectivePrice"`
	AppliedDiscountType  *pricing.DiscountType     `json:"appliedDiscountType,omitempty"`
	CanCancel            bool                      `json:"canCancel"`
	CancelBlockedReason  string                    `json:"cancelBlockedReason,omitempty"`
	CancellationDeadline *time.Time                `json:"cancellationDeadline,omitempty"`
	CheckoutURL          string                    `json:"checkoutUrl,omitempty"`
}

type RegistrationStatusOutput struct {
	Body []RegistrationStatusItem
}

// HandleGetRegistrationStatus reports the caller's registrations for an
// event. Cancellation availability uses the frozen policy and the event's
// current start.
func (h *RegistrationHandler) HandleGetRegistrationStatus(ctx context.Context, input *EventInput) (*RegistrationStatusOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(h.db, s.TenantID, input.Body.EventID)
	if err != nil {
		return nil, err
	}

	var regs []models.EventRegistration
	err = h.db.Preload("RegistrationOption").
		Where("tenant_id = ? AND event_id = ? AND user_id = ?", s.TenantID, event.ID, s.UserID).
		Order("created_at DESC, id DESC").
		Find(&regs).Error
	if err != nil {
		return nil, dbError(err)
	}

	now := h.now()
	resp := &RegistrationStatusOutput{Body: make([]RegistrationStatusItem, 0, len(regs))}
	for _, r := range regs {
		item := RegistrationStatusItem{
			RegistrationID:       r.ID,
			RegistrationOptionID: r.RegistrationOptionID,
			OptionTitle:          r.RegistrationOption.Title,
			Status:               r.Status,
			BasePrice:            r.BasePriceAtRegistration,
			EffectivePrice:       r.BasePriceAtRegistration,
			AppliedDiscountType:  r.AppliedDiscountType,
		}
		if r.AppliedDiscountedPrice != nil {
			item.EffectivePrice = *r.AppliedDiscountedPrice
		}

		switch r.Status {
		case models.RegistrationConfirmed, models.RegistrationWaitlist:
			policy := r.Policy()
			if policy.AllowCancellation {
				item.CancellationDeadline = ptr(policy.Deadline(event.Start))
			}
			if err := cancellation.Check(policy, event.Start, now); err != nil {
				item.CancelBlockedReason = err.Error()
			} else {
				item.CanCancel = true
			}
		case models.RegistrationPending:
			txn, err := pendingTransaction(h.db, s.TenantID, r.ID)
			if err != nil {
				return nil, dbError(err)
			}
			if txn != nil && txn.StripeCheckoutURL != nil {
				item.CheckoutURL = *txn.StripeCheckoutURL
			}
		}
		resp.Body = append(resp.Body, item)
	}
	return resp, nil
}
