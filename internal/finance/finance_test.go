package finance

import (
	"testing"
	"time"

	"github.com/evorto/evorto-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func receipt(id, event, user uint, status models.ReceiptStatus, total int64, created time.Time) models.FinanceReceipt {
	return models.FinanceReceipt{
		Model:             gorm.Model{ID: id, CreatedAt: created},
		TenantID:          1,
		EventID:           event,
		SubmittedByUserID: user,
		Status:            status,
		TotalAmount:       total,
	}
}

func TestValidateAmounts(t *testing.T) {
	assert.NoError(t, ValidateAmounts(1000, 190, 300, 700))
	assert.ErrorIs(t, ValidateAmounts(1000, 0, 600, 500), ErrPartsExceedTotal)
	assert.ErrorIs(t, ValidateAmounts(1000, 1001, 0, 0), ErrTaxExceedsTotal)
	assert.ErrorIs(t, ValidateAmounts(-1, 0, 0, 0), ErrNegativeAmount)
}

func TestCanReview(t *testing.T) {
	assert.True(t, CanReview(models.ReceiptSubmitted))
	assert.False(t, CanReview(models.ReceiptApproved))
	assert.False(t, CanReview(models.ReceiptRejected))
	assert.False(t, CanReview(models.ReceiptRefunded))
}

func TestGroupPendingByEvent(t *testing.T) {
	base := time.Now()
	early := models.Event{Model: gorm.Model{ID: 1}, Title: "Early", Start: base.Add(24 * time.Hour)}
	late := models.Event{Model: gorm.Model{ID: 2}, Title: "Late", Start: base.Add(72 * time.Hour)}

	r1 := receipt(1, 1, 10, models.ReceiptSubmitted, 500, base)
	r1.Event = early
	r2 := receipt(2, 2, 10, models.ReceiptSubmitted, 700, base)
	r2.Event = late
	r3 := receipt(3, 1, 11, models.ReceiptSubmitted, 300, base.Add(time.Minute))
	r3.Event = early
	r4 := receipt(4, 1, 11, models.ReceiptApproved, 900, base)
	r4.Event = early

	groups := GroupPendingByEvent([]models.FinanceReceipt{r1, r2, r3, r4})
	require.Len(t, groups, 2)

	assert.Equal(t, uint(2), groups[0].EventID)
	assert.Equal(t, "Late", groups[0].EventTitle)
	assert.Equal(t, int64(700), groups[0].TotalAmount)

	assert.Equal(t, uint(1), groups[1].EventID)
	assert.Equal(t, int64(800), groups[1].TotalAmount)
	require.Len(t, groups[1].Receipts, 2)
	assert.Equal(t, uint(3), groups[1].Receipts[0].ID, "newest receipt first")
}

func TestGroupRefundableByRecipient(t *testing.T) {
	base := time.Now()
	alice := models.User{Model: gorm.Model{ID: 10}, FirstName: "Alice", Iban: "DE89370400440532013000"}
	bob := models.User{Model: gorm.Model{ID: 11}, FirstName: "Bob", PaypalEmail: "bob@example.com"}

	r1 := receipt(1, 1, 11, models.ReceiptApproved, 500, base)
	r1.SubmittedBy = bob
	r2 := receipt(2, 1, 10, models.ReceiptApproved, 700, base)
	r2.SubmittedBy = alice
	r3 := receipt(3, 2, 10, models.ReceiptApproved, 300, base)
	r3.SubmittedBy = alice
	r4 := receipt(4, 2, 10, models.ReceiptSubmitted, 900, base)
	r4.SubmittedBy = alice

	groups := GroupRefundableByRecipient([]models.FinanceReceipt{r1, r2, r3, r4})
	require.Len(t, groups, 2)

	assert.Equal(t, uint(10), groups[0].UserID)
	assert.Equal(t, int64(1000), groups[0].TotalAmount)
	assert.Equal(t, "DE89370400440532013000", groups[0].Iban)
	assert.Len(t, groups[0].Receipts, 2)

	assert.Equal(t, uint(11), groups[1].UserID)
	assert.Equal(t, "bob@example.com", groups[1].PaypalEmail)
}

func TestValidateRefundBatch(t *testing.T) {
	base := time.Now()
	alice := models.User{Model: gorm.Model{ID: 10}, Iban: "DE89370400440532013000", PaypalEmail: "alice@example.com"}
	bob := models.User{Model: gorm.Model{ID: 11}, Iban: "FR1420041010050500013M02606"}

	a1 := receipt(1, 1, 10, models.ReceiptApproved, 500, base)
	a1.SubmittedBy = alice
	a2 := receipt(2, 1, 10, models.ReceiptApproved, 250, base)
	a2.SubmittedBy = alice
	b1 := receipt(3, 1, 11, models.ReceiptApproved, 100, base)
	b1.SubmittedBy = bob
	pending := receipt(4, 1, 10, models.ReceiptSubmitted, 100, base)
	pending.SubmittedBy = alice
	foreign := receipt(5, 1, 10, models.ReceiptApproved, 100, base)
	foreign.TenantID = 2
	foreign.SubmittedBy = alice

	all := []models.FinanceReceipt{a1, a2, b1, pending, foreign}

	t.Run("Valid", func(t *testing.T) {
		plan, err := ValidateRefundBatch(1, []uint{1, 2}, all, PayoutIBAN, "DE89370400440532013000")
		require.NoError(t, err)
		assert.Equal(t, uint(10), plan.RecipientID)
		assert.Equal(t, int64(750), plan.Total)
		assert.Equal(t, int64(-750), plan.TransactionAmount())
		assert.Equal(t, models.MethodTransfer, plan.Method())
	})

	t.Run("Paypal", func(t *testing.T) {
		plan, err := ValidateRefundBatch(1, []uint{1}, all, PayoutPaypal, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.MethodPaypal, plan.Method())
	})

	cases := []struct {
		name    string
		ids     []uint
		payout  PayoutType
		ref     string
		wantErr error
	}{
		{"Empty", nil, PayoutIBAN, "x", ErrEmptyBatch},
		{"Duplicate", []uint{1, 1}, PayoutIBAN, "DE89370400440532013000", ErrDuplicateReceipt},
		{"MixedRecipients", []uint{1, 3}, PayoutIBAN, "DE89370400440532013000", ErrMixedRecipients},
		{"NotApproved", []uint{1, 4}, PayoutIBAN, "DE89370400440532013000", ErrReceiptNotApproved},
		{"OtherTenant", []uint{1, 5}, PayoutIBAN, "DE89370400440532013000", ErrReceiptNotFound},
		{"Missing", []uint{99}, PayoutIBAN, "DE89370400440532013000", ErrReceiptNotFound},
		{"Typo", []uint{1}, PayoutIBAN, "DE89370400440532013001", ErrPayoutReferenceMismatch},
		{"SurroundingWhitespace", []uint{1}, PayoutIBAN, " DE89370400440532013000 ", ErrPayoutReferenceMismatch},
		{"NoPaypal", []uint{3}, PayoutPaypal, "bob@example.com", ErrPayoutDetailsMissing},
		{"UnknownType", []uint{1}, PayoutType("cash"), "x", ErrUnknownPayoutType},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRefundBatch(1, tt.ids, all, tt.payout, tt.ref)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
