package models

import (
	"time"

	"github.com/evorto/evorto-api/internal/cancellation"
	"github.com/evorto/evorto-api/internal/pricing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Event struct {
	gorm.Model
	TenantID            uint                 `gorm:"index" json:"tenant_id"`
	Title               string               `json:"title"`
	Start               time.Time            `json:"start"`
	End                 time.Time            `json:"end"`
	CreatorID           uint                 `json:"creator_id"`
	RegistrationOptions []RegistrationOption `gorm:"foreignKey:EventID" json:"registration_options,omitempty"`
}

type RegistrationOption struct {
	gorm.Model
	TenantID                 uint                                   `gorm:"index" json:"tenant_id"`
	EventID                  uint                                   `gorm:"index" json:"event_id"`
	Title                    string                                 `json:"title"`
	IsPaid                   bool                                   `json:"is_paid"`
	Price                    int64                                  `json:"price"`
	OrganizingRegistration   bool                                   `json:"organizing_registration"`
	Spaces                   int                                    `json:"spaces"`
	OpenRegistrationTime     *time.Time                             `json:"open_registration_time"`
	CloseRegistrationTime    *time.Time                             `json:"close_registration_time"`
	Discounts                datatypes.JSONSlice[pricing.Discount]  `json:"discounts"`
	StripeTaxRateID          *string                                `json:"stripe_tax_rate_id"`
	CancellationPolicySource cancellation.Source                    `gorm:"default:tenant-default" json:"cancellation_policy_source"`
	CancellationPolicy       datatypes.JSONType[cancellation.Rules] `json:"cancellation_policy"`
}

func (o RegistrationOption) PricingOption() pricing.Option {
	return pricing.Option{IsPaid: o.IsPaid, Price: o.Price, Discounts: o.Discounts}
}

// PolicyOverride is nil when the option inherits the tenant default.
func (o RegistrationOption) PolicyOverride() *cancellation.Rules {
	if o.CancellationPolicySource != cancellation.SourceOptionOverride {
		return nil
	}
	r := o.CancellationPolicy.Data()
	return &r
}

// RegistrationOpen reports whether now falls inside the option's window.
// A missing bound leaves that side open.
func (o RegistrationOption) RegistrationOpen(now time.Time) bool {
	if o.OpenRegistrationTime != nil && now.Before(*o.OpenRegistrationTime) {
		return false
	}
	if o.CloseRegistrationTime != nil && now.After(*o.CloseRegistrationTime) {
		return false
	}
	return true
}
