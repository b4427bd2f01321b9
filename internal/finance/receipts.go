// Package finance holds the rules for expense receipts: amount validation,
// review transitions, grouping for review and payout, and refund batches.
package finance

import (
	"errors"
	"sort"
	"time"

	"github.com/evorto/evorto-api/internal/models"
)

var (
	ErrNegativeAmount   = errors.New("amounts cannot be negative")
	ErrTaxExceedsTotal  = errors.New("tax amount cannot exceed the total amount")
	ErrPartsExceedTotal = errors.New("deposit and alcohol amounts cannot exceed the total amount")
)

// ValidateAmounts enforces deposit + alcohol <= total on a receipt.
func ValidateAmounts(total, tax, deposit, alcohol int64) error {
	if total < 0 || tax < 0 || deposit < 0 || alcohol < 0 {
		return ErrNegativeAmount
	}
	if tax > total {
		return ErrTaxExceedsTotal
	}
	if deposit+alcohol > total {
		return ErrPartsExceedTotal
	}
	return nil
}

// CanReview reports whether a receipt may receive a review decision. Once
// approved or rejected a receipt only moves forward.
func CanReview(status models.ReceiptStatus) bool {
	return status == models.ReceiptSubmitted
}

type EventGroup struct {
	EventID     uint
	EventTitle  string
	EventStart  time.Time
	TotalAmount int64
	Receipts    []models.FinanceReceipt
}

// GroupPendingByEvent groups submitted receipts by event. Receipts must have
// Event preloaded. Newest events come first, and inside a group the newest
// receipts come first.
func GroupPendingByEvent(receipts []models.FinanceReceipt) []EventGroup {
	index := make(map[uint]int)
	var groups []EventGroup
	for _, r := range receipts {
		if r.Status != models.ReceiptSubmitted {
			continue
		}
		i, ok := index[r.EventID]
		if !ok {
			i = len(groups)
			index[r.EventID] = i
			groups = append(groups, EventGroup{
				EventID:    r.EventID,
				EventTitle: r.Event.Title,
				EventStart: r.Event.Start,
			})
		}
		groups[i].Receipts = append(groups[i].Receipts, r)
		groups[i].TotalAmount += r.TotalAmount
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].EventStart.Equal(groups[j].EventStart) {
			return groups[i].EventStart.After(groups[j].EventStart)
		}
		return groups[i].EventID > groups[j].EventID
	})
	for _, g := range groups {
		sort.SliceStable(g.Receipts, func(i, j int) bool {
			return g.Receipts[i].CreatedAt.After(g.Receipts[j].CreatedAt)
		})
	}
	return groups
}

type RecipientGroup struct {
	UserID      uint
	Name        string
	Email       string
	Iban        string
	PaypalEmail string
	TotalAmount int64
	Receipts    []models.FinanceReceipt
}

// GroupRefundableByRecipient groups approved receipts by submitter with
// SubmittedBy preloaded, ordered by recipient id.
func GroupRefundableByRecipient(receipts []models.FinanceReceipt) []RecipientGroup {
	index := make(map[uint]int)
	var groups []RecipientGroup
	for _, r := range receipts {
		if r.Status != models.ReceiptApproved {
			continue
		}
		i, ok := index[r.SubmittedByUserID]
		if !ok {
			i = len(groups)
			index[r.SubmittedByUserID] = i
			groups = append(groups, RecipientGroup{
				UserID:      r.SubmittedByUserID,
				Name:        r.SubmittedBy.DisplayName(),
				Email:       r.SubmittedBy.Email,
				Iban:        r.SubmittedBy.Iban,
				PaypalEmail: r.SubmittedBy.PaypalEmail,
			})
		}
		groups[i].Receipts = append(groups[i].Receipts, r)
		groups[i].TotalAmount += r.TotalAmount
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].UserID < groups[j].UserID
	})
	return groups
}
