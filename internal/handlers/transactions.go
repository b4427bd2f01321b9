package handlers

import (
	"context"
	"time"

	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/models"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

type TransactionHandler struct {
	db *gorm.DB
}

func NewTransactionHandler(db *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: db}
}

type FindTransactionsInput struct {
	Body struct {
		Limit               int  `json:"limit,omitempty" minimum:"0" maximum:"100" doc:"Defaults to 25"`
		Offset              int  `json:"offset,omitempty" minimum:"0"`
		NeedsReconciliation bool `json:"needsReconciliation,omitempty" doc:"Only entries finance has to reconcile by hand"`
	}
}

type TransactionResponse struct {
	ID                  uint                     `json:"id"`
	Reference           string                   `json:"reference"`
	Amount              int64                    `json:"amount"`
	Currency            string                   `json:"currency"`
	Type                models.TransactionType   `json:"type"`
	Method              models.TransactionMethod `json:"method"`
	Status              models.TransactionStatus `json:"status"`
	Comment             string                   `json:"comment,omitempty"`
	EventID             *uint                    `json:"eventId,omitempty"`
	EventRegistrationID *uint                    `json:"eventRegistrationId,omitempty"`
	TargetUserID        *uint                    `json:"targetUserId,omitempty"`
	StripeFee           *int64                   `json:"stripeFee,omitempty"`
	AppFee              *int64                   `json:"appFee,omitempty"`
	NeedsReconciliation bool                     `json:"needsReconciliation,omitempty"`
	CreatedAt           time.Time                `json:"createdAt"`
}

type TransactionsOutput struct {
	Body struct {
		Data  []TransactionResponse `json:"data"`
		Total int64                 `json:"total"`
	}
}

// HandleFindMany pages through the tenant ledger, newest first. Cancelled
// entries never left the checkout and are hidden.
func (h *TransactionHandler) HandleFindMany(ctx context.Context, input *FindTransactionsInput) (*TransactionsOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermFinanceViewTransactions)
	if err != nil {
		return nil, err
	}

	limit := input.Body.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := input.Body.Offset
	if offset < 0 {
		offset = 0
	}

	q := h.db.Model(&models.Transaction{}).
		Where("tenant_id = ? AND status <> ?", s.TenantID, models.TransactionCancelled)
	if input.Body.NeedsReconciliation {
		q = q.Where("needs_reconciliation = ?", true)
	}
	q = q.Session(&gorm.Session{})

	resp := &TransactionsOutput{}
	if err := q.Count(&resp.Body.Total).Error; err != nil {
		return nil, dbError(err)
	}

	var rows []models.Transaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}

	resp.Body.Data = make([]TransactionResponse, 0, len(rows))
	for _, t := range rows {
		resp.Body.Data = append(resp.Body.Data, TransactionResponse{
			ID:                  t.ID,
			Reference:           t.Reference,
			Amount:              t.Amount,
			Currency:            t.Currency,
			Type:                t.Type,
			Method:              t.Method,
			Status:              t.Status,
			Comment:             t.Comment,
			EventID:             t.EventID,
			EventRegistrationID: t.EventRegistrationID,
			TargetUserID:        t.TargetUserID,
			StripeFee:           t.StripeFee,
			AppFee:              t.AppFee,
			NeedsReconciliation: t.NeedsReconciliation,
			CreatedAt:           t.CreatedAt,
		})
	}
	return resp, nil
}
