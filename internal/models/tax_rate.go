package models

import (
	"github.com/evorto/evorto-api/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TenantStripeTaxRate is a Stripe tax rate imported into a tenant's catalog.
type TenantStripeTaxRate struct {
	gorm.Model
	TenantID        uint            `gorm:"uniqueIndex:idx_tenant_tax_rate" json:"tenant_id"`
	StripeTaxRateID string          `gorm:"uniqueIndex:idx_tenant_tax_rate" json:"stripe_tax_rate_id"`
	DisplayName     string          `json:"display_name"`
	Description     string          `json:"description"`
	Percentage      decimal.Decimal `json:"percentage"`
	Inclusive       bool            `json:"inclusive"`
	Active          bool            `json:"active"`
	Country         string          `json:"country"`
	State           string          `json:"state"`
}

func (r TenantStripeTaxRate) PricingTaxRate() *pricing.TaxRate {
	return &pricing.TaxRate{
		DisplayName: r.DisplayName,
		Percentage:  r.Percentage,
		Active:      r.Active,
		Inclusive:   r.Inclusive,
	}
}
