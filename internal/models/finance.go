package models

import (
	"time"

	"gorm.io/gorm"
)

type ReceiptStatus string

const (
	ReceiptSubmitted ReceiptStatus = "submitted"
	ReceiptApproved  ReceiptStatus = "approved"
	ReceiptRejected  ReceiptStatus = "rejected"
	ReceiptRefunded  ReceiptStatus = "refunded"
)

type FinanceReceipt struct {
	gorm.Model
	TenantID            uint          `gorm:"index" json:"tenant_id"`
	EventID             uint          `gorm:"index" json:"event_id"`
	Event               Event         `json:"-"`
	SubmittedByUserID   uint          `gorm:"index" json:"submitted_by_user_id"`
	SubmittedBy         User          `gorm:"foreignKey:SubmittedByUserID" json:"-"`
	TotalAmount         int64         `json:"total_amount"`
	TaxAmount           int64         `json:"tax_amount"`
	DepositAmount       int64         `json:"deposit_amount"`
	AlcoholAmount       int64         `json:"alcohol_amount"`
	PurchaseCountry     string        `json:"purchase_country"`
	ReceiptDate         time.Time     `json:"receipt_date"`
	AttachmentName      string        `json:"attachment_name"`
	Status              ReceiptStatus `gorm:"index" json:"status"`
	ReviewedByUserID    *uint         `json:"reviewed_by_user_id"`
	ReviewedAt          *time.Time    `json:"reviewed_at"`
	RejectionReason     string        `json:"rejection_reason"`
	RefundTransactionID *uint         `json:"refund_transaction_id"`
	RefundedAt          *time.Time    `json:"refunded_at"`
}

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionSuccessful TransactionStatus = "successful"
	TransactionCancelled  TransactionStatus = "cancelled"
)

type TransactionType string

const (
	TransactionRegistration       TransactionType = "registration"
	TransactionRegistrationRefund TransactionType = "registration-refund"
	TransactionReceiptRefund      TransactionType = "receipt-refund"
)

type TransactionMethod string

const (
	MethodStripe   TransactionMethod = "stripe"
	MethodTransfer TransactionMethod = "transfer"
	MethodPaypal   TransactionMethod = "paypal"
)

// Transaction is a ledger entry. Refunds carry a negative amount.
// NeedsReconciliation marks money captured without a matching registration
// change, such as a checkout completing after cancellation.
type Transaction struct {
	gorm.Model
	TenantID                uint              `gorm:"index" json:"tenant_id"`
	Reference               string            `gorm:"uniqueIndex" json:"reference"`
	Amount                  int64             `json:"amount"`
	Currency                string            `json:"currency"`
	Type                    TransactionType   `json:"type"`
	Method                  TransactionMethod `json:"method"`
	Status                  TransactionStatus `gorm:"index" json:"status"`
	Comment                 string            `json:"comment"`
	EventID                 *uint             `json:"event_id"`
	EventRegistrationID     *uint             `gorm:"index" json:"event_registration_id"`
	TargetUserID            *uint             `json:"target_user_id"`
	ExecutiveUserID         *uint             `json:"executive_user_id"`
	StripeCheckoutSessionID *string           `gorm:"index" json:"-"`
	StripeCheckoutURL       *string           `json:"-"`
	StripePaymentIntentID   *string           `json:"-"`
	StripeFee               *int64            `json:"stripe_fee"`
	AppFee                  *int64            `json:"app_fee"`
	NeedsReconciliation     bool              `gorm:"index" json:"needs_reconciliation"`
}
