package models

import (
	"time"

	"github.com/evorto/evorto-api/internal/cancellation"
	"github.com/evorto/evorto-api/internal/pricing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
	RegistrationWaitlist  RegistrationStatus = "WAITLIST"
)

// ActiveRegistrationStatuses are the statuses that occupy a spot or block a
// second registration for the same event.
var ActiveRegistrationStatuses = []RegistrationStatus{RegistrationPending, RegistrationConfirmed, RegistrationWaitlist}

// EventRegistration is never deleted. The cancellation policy, discount and
// base price are snapshots taken at registration time.
type EventRegistration struct {
	gorm.Model
	TenantID                    uint                                    `gorm:"index" json:"tenant_id"`
	EventID                     uint                                    `gorm:"index" json:"event_id"`
	Event                       Event                                   `json:"-"`
	UserID                      uint                                    `gorm:"index" json:"user_id"`
	User                        User                                    `json:"-"`
	RegistrationOptionID        uint                                    `json:"registration_option_id"`
	RegistrationOption          RegistrationOption                      `json:"-"`
	Status                      RegistrationStatus                      `json:"status"`
	EffectiveCancellationPolicy datatypes.JSONType[cancellation.Policy] `json:"effective_cancellation_policy"`
	AppliedDiscountType         *pricing.DiscountType                   `json:"applied_discount_type"`
	AppliedDiscountedPrice      *int64                                  `json:"applied_discounted_price"`
	BasePriceAtRegistration     int64                                   `json:"base_price_at_registration"`
	StripeTaxRateID             *string                                 `json:"stripe_tax_rate_id"`
	CancelledAt                 *time.Time                              `json:"cancelled_at"`
	CancellationReason          string                                  `json:"cancellation_reason"`
	CancellationNotes           string                                  `json:"cancellation_notes"`
}

func (r EventRegistration) Policy() cancellation.Policy {
	return r.EffectiveCancellationPolicy.Data()
}
