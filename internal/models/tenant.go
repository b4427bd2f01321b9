package models

import (
	"github.com/evorto/evorto-api/internal/cancellation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Tenant struct {
	gorm.Model
	Name                 string                                          `json:"name"`
	Domain               string                                          `gorm:"uniqueIndex" json:"domain"`
	Currency             string                                          `gorm:"default:EUR" json:"currency"`
	StripeAccountID      string                                          `json:"-"`
	ESNCardEnabled       bool                                            `json:"esn_card_enabled"`
	CancellationPolicies datatypes.JSONType[cancellation.TenantPolicies] `json:"cancellation_policies"`
}

// Policies returns the tenant's configured policies; an unset column yields
// an empty set, which resolves every variant to the built-in defaults.
func (t Tenant) Policies() cancellation.TenantPolicies {
	p := t.CancellationPolicies.Data()
	if p == nil {
		return cancellation.TenantPolicies{}
	}
	return p
}
