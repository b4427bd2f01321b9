package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/finance"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/notifier"
	"gorm.io/gorm"
)

type ReceiptHandler struct {
	db       *gorm.DB
	notifier notifier.Notifier
	idem     Idempotency
	now      func() time.Time
}

func NewReceiptHandler(db *gorm.DB, n notifier.Notifier, idem Idempotency) *ReceiptHandler {
	return &ReceiptHandler{db: db, notifier: n, idem: idem, now: time.Now}
}

type ReceiptResponse struct {
	ID              uint                 `json:"id"`
	EventID         uint                 `json:"eventId"`
	EventTitle      string               `json:"eventTitle,omitempty"`
	SubmittedBy     uint                 `json:"submittedByUserId"`
	SubmitterName   string               `json:"submitterName,omitempty"`
	TotalAmount     int64                `json:"totalAmount"`
	TaxAmount       int64                `json:"taxAmount"`
	DepositAmount   int64                `json:"depositAmount"`
	AlcoholAmount   int64                `json:"alcoholAmount"`
	PurchaseCountry string               `json:"purchaseCountry"`
	ReceiptDate     time.Time            `json:"receiptDate"`
	AttachmentName  string               `json:"attachmentName,omitempty"`
	Status          models.ReceiptStatus `json:"status"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	RefundedAt      *time.Time           `json:"refundedAt,omitempty"`
}

func receiptResponse(r models.FinanceReceipt) ReceiptResponse {
	return ReceiptResponse{
		ID:              r.ID,
		EventID:         r.EventID,
		EventTitle:      r.Event.Title,
		SubmittedBy:     r.SubmittedByUserID,
		SubmitterName:   r.SubmittedBy.DisplayName(),
		TotalAmount:     r.TotalAmount,
		TaxAmount:       r.TaxAmount,
		DepositAmount:   r.DepositAmount,
		AlcoholAmount:   r.AlcoholAmount,
		PurchaseCountry: r.PurchaseCountry,
		ReceiptDate:     r.ReceiptDate,
		AttachmentName:  r.AttachmentName,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		RefundedAt:      r.RefundedAt,
	}
}

func receiptResponses(receipts []models.FinanceReceipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, receiptResponse(r))
	}
	return out
}

type ReceiptOutput struct {
	Body ReceiptResponse
}

type ReceiptsOutput struct {
	Body []ReceiptResponse
}

// isOrganizer reports whether the user holds a confirmed organizer
// registration for the event.
func (h *ReceiptHandler) isOrganizer(tenantID, userID, eventID uint) (bool, error) {
	var n int64
	err := h.db.Model(&models.EventRegistration{}).
		Joins("JOIN registration_options ON registration_options.id = event_registrations.registration_option_id").
		Where("event_registrations.tenant_id = ? AND event_registrations.event_id = ? AND event_registrations.user_id = ?", tenantID, eventID, userID).
		Where("event_registrations.status = ? AND registration_options.organizing_registration = ?", models.RegistrationConfirmed, true).
		Count(&n).Error
	return n > 0, err
}

type SubmitReceiptInput struct {
	Body struct {
		EventID         uint      `json:"eventId"`
		TotalAmount     int64     `json:"totalAmount" minimum:"1"`
		TaxAmount       int64     `json:"taxAmount" minimum:"0"`
		DepositAmount   int64     `json:"depositAmount" minimum:"0"`
		AlcoholAmount   int64     `json:"alcoholAmount" minimum:"0"`
		PurchaseCountry string    `json:"purchaseCountry" minLength:"2" maxLength:"2"`
		ReceiptDate     time.Time `json:"receiptDate"`
		AttachmentName  string    `json:"attachmentName,omitempty"`
	}
}

func (h *ReceiptHandler) HandleSubmit(ctx context.Context, input *SubmitReceiptInput) (*ReceiptOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	in := input.Body

	event, err := loadEvent(h.db, s.TenantID, in.EventID)
	if err != nil {
		return nil, err
	}
	if !s.Can(auth.PermEventsOrganizeAll) {
		ok, err := h.isOrganizer(s.TenantID, s.UserID, event.ID)
		if err != nil {
			return nil, dbError(err)
		}
		if !ok {
			return nil, huma.Error403Forbidden("Only organizers of this event can submit receipts")
		}
	}

	if err := finance.ValidateAmounts(in.TotalAmount, in.TaxAmount, in.DepositAmount, in.AlcoholAmount); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	receipt := models.FinanceReceipt{
		TenantID:          s.TenantID,
		EventID:           event.ID,
		SubmittedByUserID: s.UserID,
		TotalAmount:       in.TotalAmount,
		TaxAmount:         in.TaxAmount,
		DepositAmount:     in.DepositAmount,
		AlcoholAmount:     in.AlcoholAmount,
		PurchaseCountry:   strings.ToUpper(in.PurchaseCountry),
		ReceiptDate:       in.ReceiptDate,
		AttachmentName:    in.AttachmentName,
		Status:            models.ReceiptSubmitted,
	}
	if err := h.db.Create(&receipt).Error; err != nil {
		return nil, dbError(err)
	}
	receipt.Event = *event

	if tenant, err := loadTenant(h.db, s.TenantID); err == nil {
		var user models.User
		if err := h.db.First(&user, s.UserID).Error; err == nil {
			receipt.SubmittedBy = user
			if err := h.notifier.NotifyReceiptSubmitted(user, *event, receipt, tenant.Currency); err != nil {
				log.Printf("Receipt notification failed: %v", err)
			}
		}
	}

	return &ReceiptOutput{Body: receiptResponse(receipt)}, nil
}

type ReviewReceiptInput struct {
	Body struct {
		ReceiptID       uint   `json:"receiptId"`
		Approved        bool   `json:"approved"`
		RejectionReason string `json:"rejectionReason,omitempty"`
	}
}

func (h *ReceiptHandler) HandleReview(ctx context.Context, input *ReviewReceiptInput) (*ReceiptOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermFinanceApproveReceipts)
	if err != nil {
		return nil, err
	}
	in := input.Body

	var receipt models.FinanceReceipt
	err = h.db.Preload("Event").Preload("SubmittedBy").
		Where("tenant_id = ? AND id = ?", s.TenantID, in.ReceiptID).First(&receipt).Error
	if err != nil {
		return nil, notFoundOr500(err, "Receipt not found")
	}
	if !finance.CanReview(receipt.Status) {
		return nil, huma.Error400BadRequest("Receipt has already been reviewed")
	}

	reason := strings.TrimSpace(in.RejectionReason)
	status := models.ReceiptApproved
	if !in.Approved {
		if reason == "" {
			return nil, huma.Error400BadRequest("A rejection reason is required")
		}
		status = models.ReceiptRejected
	} else {
		reason = ""
	}

	now := h.now()
	res := h.db.Model(&models.FinanceReceipt{}).
		Where("tenant_id = ? AND id = ? AND status = ?", s.TenantID, receipt.ID, models.ReceiptSubmitted).
		Updates(map[string]any{
			"status":              status,
			"reviewed_by_user_id": s.UserID,
			"reviewed_at":         now,
			"rejection_reason":    reason,
		})
	if res.Error != nil {
		return nil, dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error409Conflict("Receipt was reviewed concurrently")
	}

	receipt.Status = status
	receipt.RejectionReason = reason
	receipt.ReviewedByUserID = ptr(s.UserID)
	receipt.ReviewedAt = &now
	return &ReceiptOutput{Body: receiptResponse(receipt)}, nil
}

func (h *ReceiptHandler) HandleByEvent(ctx context.Context, input *EventInput) (*ReceiptsOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(h.db, s.TenantID, input.Body.EventID)
	if err != nil {
		return nil, err
	}
	if !s.Can(auth.PermFinanceViewReceipts) {
		ok, err := h.isOrganizer(s.TenantID, s.UserID, event.ID)
		if err != nil {
			return nil, dbError(err)
		}
		if !ok {
			return nil, huma.Error403Forbidden("Missing permission " + string(auth.PermFinanceViewReceipts))
		}
	}

	var receipts []models.FinanceReceipt
	err = h.db.Preload("Event").Preload("SubmittedBy").
		Where("tenant_id = ? AND event_id = ?", s.TenantID, event.ID).
		Order("created_at DESC, id DESC").Find(&receipts).Error
	if err != nil {
		return nil, dbError(err)
	}
	return &ReceiptsOutput{Body: receiptResponses(receipts)}, nil
}

func (h *ReceiptHandler) HandleMy(ctx context.Context, input *struct{}) (*ReceiptsOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	var receipts []models.FinanceReceipt
	err = h.db.Preload("Event").
		Where("tenant_id = ? AND submitted_by_user_id = ?", s.TenantID, s.UserID).
		Order("created_at DESC, id DESC").Find(&receipts).Error
	if err != nil {
		return nil, dbError(err)
	}
	return &ReceiptsOutput{Body: receiptResponses(receipts)}, nil
}

type EventReceiptGroup struct {
	EventID     uint              `json:"eventId"`
	EventTitle  string            `json:"eventTitle"`
	EventStart  time.Time         `json:"eventStart"`
	TotalAmount int64             `json:"totalAmount"`
	Receipts    []ReceiptResponse `json:"receipts"`
}

type PendingGroupedOutput struct {
	Body []EventReceiptGroup
}

func (h *ReceiptHandler) HandlePendingApprovalGrouped(ctx context.Context, input *struct{}) (*PendingGroupedOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermFinanceApproveReceipts)
	if err != nil {
		return nil, err
	}

	var receipts []models.FinanceReceipt
	err = h.db.Preload("Event").Preload("SubmittedBy").
		Where("tenant_id = ? AND status = ?", s.TenantID, models.ReceiptSubmitted).
		Find(&receipts).Error
	if err != nil {
		return nil, dbError(err)
	}

	groups := finance.GroupPendingByEvent(receipts)
	resp := &PendingGroupedOutput{Body: make([]EventReceiptGroup, 0, len(groups))}
	for _, g := range groups {
		resp.Body = append(resp.Body, EventReceiptGroup{
			EventID:     g.EventID,
			EventTitle:  g.EventTitle,
			EventStart:  g.EventStart,
			TotalAmount: g.TotalAmount,
			Receipts:    receiptResponses(g.Receipts),
		})
	}
	return resp, nil
}

type RecipientReceiptGroup struct {
	UserID      uint              `json:"userId"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Iban        string            `json:"iban,omitempty"`
	PaypalEmail string            `json:"paypalEmail,omitempty"`
	TotalAmount int64             `json:"totalAmount"`
	Receipts    []ReceiptResponse `json:"receipts"`
}

type RefundableGroupedOutput struct {
	Body []RecipientReceiptGroup
}

func (h *ReceiptHandler) HandleRefundableGroupedByRecipient(ctx context.Context, input *struct{}) (*RefundableGroupedOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermFinanceRefundReceipts)
	if err != nil {
		return nil, err
	}

	var receipts []models.FinanceReceipt
	err = h.db.Preload("Event").Preload("SubmittedBy").
		Where("tenant_id = ? AND status = ?", s.TenantID, models.ReceiptApproved).
		Find(&receipts).Error
	if err != nil {
		return nil, dbError(err)
	}

	groups := finance.GroupRefundableByRecipient(receipts)
	resp := &RefundableGroupedOutput{Body: make([]RecipientReceiptGroup, 0, len(groups))}
	for _, g := range groups {
		resp.Body = append(resp.Body, RecipientReceiptGroup{
			UserID:      g.UserID,
			Name:        g.Name,
			Email:       g.Email,
			Iban:        g.Iban,
			PaypalEmail: g.PaypalEmail,
			TotalAmount: g.TotalAmount,
			Receipts:    receiptResponses(g.Receipts),
		})
	}
	return resp, nil
}

type CreateRefundInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"UUID; retries with the same key replay the first response"`
	Body           struct {
		ReceiptIDs      []uint             `json:"receiptIds" minItems:"1"`
		PayoutType      finance.PayoutType `json:"payoutType" enum:"iban,paypal"`
		PayoutReference string             `json:"payoutReference"`
	}
}

type RefundResponse struct {
	TransactionID uint   `json:"transactionId"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	ReceiptIDs    []uint `json:"receiptIds"`
}

type RefundOutput struct {
	Body RefundResponse
}

// HandleCreateRefund pays out a batch of approved receipts to one recipient.
// Either every receipt flips to refunded together with the new transaction,
// or nothing changes.
func (h *ReceiptHandler) HandleCreateRefund(ctx context.Context, input *CreateRefundInput) (*RefundOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermFinanceRefundReceipts)
	if err != nil {
		return nil, err
	}
	return withIdempotency(ctx, h.idem, s, "finance.receipts.createRefund", input.IdempotencyKey, func() (*RefundOutput, error) {
		return h.createRefund(s, input.Body.ReceiptIDs, input.Body.PayoutType, input.Body.PayoutReference)
	})
}

func (h *ReceiptHandler) createRefund(s *auth.Session, ids []uint, payoutType finance.PayoutType, reference string) (*RefundOutput, error) {
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}

	var (
		plan      finance.RefundPlan
		txn       models.Transaction
		recipient models.User
	)
	now := h.now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var receipts []models.FinanceReceipt
		if err := tx.Preload("SubmittedBy").Where("tenant_id = ? AND id IN ?", s.TenantID, ids).Find(&receipts).Error; err != nil {
			return err
		}

		var err error
		plan, err = finance.ValidateRefundBatch(s.TenantID, ids, receipts, payoutType, reference)
		if err != nil {
			return huma.Error400BadRequest(err.Error())
		}
		for _, r := range receipts {
			if r.SubmittedByUserID == plan.RecipientID {
				recipient = r.SubmittedBy
				break
			}
		}

		txn = models.Transaction{
			TenantID:        s.TenantID,
			Reference:       newReference(),
			Amount:          plan.TransactionAmount(),
			Currency:        tenant.Currency,
			Type:            models.TransactionReceiptRefund,
			Method:          plan.Method(),
			Status:          models.TransactionSuccessful,
			Comment:         "Receipt refund to " + strings.TrimSpace(reference),
			TargetUserID:    ptr(plan.RecipientID),
			ExecutiveUserID: ptr(s.UserID),
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		res := tx.Model(&models.FinanceReceipt{}).
			Where("tenant_id = ? AND id IN ? AND status = ?", s.TenantID, plan.ReceiptIDs, models.ReceiptApproved).
			Updates(map[string]any{
				"status":                models.ReceiptRefunded,
				"refund_transaction_id": txn.ID,
				"refunded_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(plan.ReceiptIDs)) {
			return huma.Error409Conflict("Receipts changed while refunding")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Receipt not found")
		}
		return nil, passthrough(err)
	}

	if err := h.notifier.NotifyRefund(recipient, plan.Total, tenant.Currency, len(plan.ReceiptIDs)); err != nil {
		log.Printf("Refund notification failed: %v", err)
	}

	return &RefundOutput{Body: RefundResponse{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Amount:        plan.Total,
		ReceiptIDs:    plan.ReceiptIDs,
	}}, nil
}
