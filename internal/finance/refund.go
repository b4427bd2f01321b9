package finance

import (
	"errors"
	"fmt"

	"github.com/evorto/evorto-api/internal/models"
)

type PayoutType string

const (
	PayoutIBAN   PayoutType = "iban"
	PayoutPaypal PayoutType = "paypal"
)

var (
	ErrEmptyBatch              = errors.New("no receipts selected")
	ErrDuplicateReceipt        = errors.New("receipt selected twice")
	ErrReceiptNotFound         = errors.New("receipt not found")
	ErrReceiptNotApproved      = errors.New("receipt is not approved")
	ErrMixedRecipients         = errors.New("receipts belong to different recipients")
	ErrUnknownPayoutType       = errors.New("unknown payout type")
	ErrPayoutDetailsMissing    = errors.New("recipient has no payout details for this payout type")
	ErrPayoutReferenceMismatch = errors.New("payout reference does not match the recipient's payout details")
)

// RefundPlan is a validated refund batch, ready to be written.
type RefundPlan struct {
	RecipientID uint
	PayoutType  PayoutType
	Total       int64
	ReceiptIDs  []uint
}

// TransactionAmount is negative: money leaves the tenant.
func (p RefundPlan) TransactionAmount() int64 {
	return -p.Total
}

func (p RefundPlan) Method() models.TransactionMethod {
	if p.PayoutType == PayoutPaypal {
		return models.MethodPaypal
	}
	return models.MethodTransfer
}

// PayoutReference returns the stored identifier for a payout type.
func PayoutReference(u models.User, t PayoutType) string {
	switch t {
	case PayoutIBAN:
		return u.Iban
	case PayoutPaypal:
		return u.PaypalEmail
	}
	return ""
}

// ValidateRefundBatch checks that every selected receipt can be refunded in a
// single payout. receipts must be the rows loaded for ids with SubmittedBy
// preloaded. reference must equal the stored payout detail byte for byte.
func ValidateRefundBatch(tenantID uint, ids []uint, receipts []models.FinanceReceipt, payoutType PayoutType, reference string) (RefundPlan, error) {
	if len(ids) == 0 {
		return RefundPlan{}, ErrEmptyBatch
	}
	if payoutType != PayoutIBAN && payoutType != PayoutPaypal {
		return RefundPlan{}, ErrUnknownPayoutType
	}

	byID := make(map[uint]models.FinanceReceipt, len(receipts))
	for _, r := range receipts {
		if r.TenantID == tenantID {
			byID[r.ID] = r
		}
	}

	plan := RefundPlan{PayoutType: payoutType}
	seen := make(map[uint]bool, len(ids))
	var recipient *models.User
	for _, id := range ids {
		if seen[id] {
			return RefundPlan{}, fmt.Errorf("%w: %d", ErrDuplicateReceipt, id)
		}
		seen[id] = true

		r, ok := byID[id]
		if !ok {
			return RefundPlan{}, fmt.Errorf("%w: %d", ErrReceiptNotFound, id)
		}
		if r.Status != models.ReceiptApproved {
			return RefundPlan{}, fmt.Errorf("%w: %d", ErrReceiptNotApproved, id)
		}
		if recipient == nil {
			submitter := r.SubmittedBy
			recipient = &submitter
			plan.RecipientID = r.SubmittedByUserID
		} else if r.SubmittedByUserID != plan.RecipientID {
			return RefundPlan{}, ErrMixedRecipients
		}
		plan.Total += r.TotalAmount
		plan.ReceiptIDs = append(plan.ReceiptIDs, id)
	}

	stored := PayoutReference(*recipient, payoutType)
	if stored == "" {
		return RefundPlan{}, ErrPayoutDetailsMissing
	}
	if reference != stored {
		return RefundPlan{}, ErrPayoutReferenceMismatch
	}
	return plan, nil
}
