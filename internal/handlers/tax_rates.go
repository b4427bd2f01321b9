package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/payments"
	"gorm.io/gorm"
)

type TaxRateHandler struct {
	db       *gorm.DB
	provider payments.Provider
}

func NewTaxRateHandler(db *gorm.DB, provider payments.Provider) *TaxRateHandler {
	return &TaxRateHandler{db: db, provider: provider}
}

type TaxRateResponse struct {
	ID              uint   `json:"id,omitempty"`
	StripeTaxRateID string `json:"stripeTaxRateId"`
	DisplayName     string `json:"displayName"`
	Description     string `json:"description,omitempty"`
	Percentage      string `json:"percentage"`
	Inclusive       bool   `json:"inclusive"`
	Active          bool   `json:"active"`
	Country         string `json:"country,omitempty"`
	State           string `json:"state,omitempty"`
	Imported        bool   `json:"imported"`
}

func importedTaxRateResponse(r models.TenantStripeTaxRate) TaxRateResponse {
	return TaxRateResponse{
		ID:              r.ID,
		StripeTaxRateID: r.StripeTaxRateID,
		DisplayName:     r.DisplayName,
		Description:     r.Description,
		Percentage:      r.Percentage.String(),
		Inclusive:       r.Inclusive,
		Active:          r.Active,
		Country:         r.Country,
		State:           r.State,
		Imported:        true,
	}
}

type TaxRatesOutput struct {
	Body []TaxRateResponse
}

type ImportTaxRatesInput struct {
	Body struct {
		IDs []string `json:"ids" minItems:"1"`
	}
}

func (h *TaxRateHandler) listImported(tenantID uint, activeInclusiveOnly bool) ([]models.TenantStripeTaxRate, error) {
	q := h.db.Where("tenant_id = ?", tenantID)
	if activeInclusiveOnly {
		q = q.Where("active = ? AND inclusive = ?", true, true)
	}
	var rates []models.TenantStripeTaxRate
	err := q.Order("display_name, id").Find(&rates).Error
	return rates, err
}

func (h *TaxRateHandler) HandleListStripeTaxRates(ctx context.Context, input *struct{}) (*TaxRatesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermAdminManageTaxes)
	if err != nil {
		return nil, err
	}
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}

	rates, err := h.provider.ListTaxRates(ctx, tenant.StripeAccountID)
	if err != nil {
		log.Printf("Listing Stripe tax rates for tenant %d failed: %v", tenant.ID, err)
		return nil, huma.Error500InternalServerError("Failed to list Stripe tax rates")
	}

	imported, err := h.listImported(tenant.ID, false)
	if err != nil {
		return nil, dbError(err)
	}
	known := make(map[string]bool, len(imported))
	for _, r := range imported {
		known[r.StripeTaxRateID] = true
	}

	resp := &TaxRatesOutput{Body: make([]TaxRateResponse, 0, len(rates))}
	for _, r := range rates {
		resp.Body = append(resp.Body, TaxRateResponse{
			StripeTaxRateID: r.ID,
			DisplayName:     r.DisplayName,
			Description:     r.Description,
			Percentage:      r.Percentage.String(),
			Inclusive:       r.Inclusive,
			Active:          r.Active,
			Country:         r.Country,
			State:           r.State,
			Imported:        known[r.ID],
		})
	}
	return resp, nil
}

// HandleImportStripeTaxRates copies the selected Stripe rates into the
// tenant catalog. Re-importing refreshes the stored fields.
func (h *TaxRateHandler) HandleImportStripeTaxRates(ctx context.Context, input *ImportTaxRatesInput) (*TaxRatesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermAdminManageTaxes)
	if err != nil {
		return nil, err
	}
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}

	remote, err := h.provider.ListTaxRates(ctx, tenant.StripeAccountID)
	if err != nil {
		log.Printf("Listing Stripe tax rates for tenant %d failed: %v", tenant.ID, err)
		return nil, huma.Error500InternalServerError("Failed to list Stripe tax rates")
	}
	byID := make(map[string]payments.TaxRate, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
	}

	selected := make([]payments.TaxRate, 0, len(input.Body.IDs))
	for _, id := range input.Body.IDs {
		r, ok := byID[id]
		if !ok {
			return nil, huma.Error400BadRequest("Unknown Stripe tax rate " + id)
		}
		selected = append(selected, r)
	}

	var stored []models.TenantStripeTaxRate
	err = h.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range selected {
			var row models.TenantStripeTaxRate
			err := tx.Where("tenant_id = ? AND stripe_tax_rate_id = ?", tenant.ID, r.ID).First(&row).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			row.TenantID = tenant.ID
			row.StripeTaxRateID = r.ID
			row.DisplayName = r.DisplayName
			row.Description = r.Description
			row.Percentage = r.Percentage
			row.Inclusive = r.Inclusive
			row.Active = r.Active
			row.Country = r.Country
			row.State = r.State
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
			stored = append(stored, row)
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	resp := &TaxRatesOutput{Body: make([]TaxRateResponse, 0, len(stored))}
	for _, r := range stored {
		resp.Body = append(resp.Body, importedTaxRateResponse(r))
	}
	return resp, nil
}

func (h *TaxRateHandler) HandleListImportedTaxRates(ctx context.Context, input *struct{}) (*TaxRatesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermAdminManageTaxes)
	if err != nil {
		return nil, err
	}
	return h.respond(s.TenantID, false)
}

// HandleListActiveTaxRates is what option editors pick from: only rates that
// are active and price-inclusive.
func (h *TaxRateHandler) HandleListActiveTaxRates(ctx context.Context, input *struct{}) (*TaxRatesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermTemplatesView)
	if err != nil {
		return nil, err
	}
	return h.respond(s.TenantID, true)
}

func (h *TaxRateHandler) respond(tenantID uint, activeInclusiveOnly bool) (*TaxRatesOutput, error) {
	rates, err := h.listImported(tenantID, activeInclusiveOnly)
	if err != nil {
		return nil, dbError(err)
	}
	resp := &TaxRatesOutput{Body: make([]TaxRateResponse, 0, len(rates))}
	for _, r := range rates {
		resp.Body = append(resp.Body, importedTaxRateResponse(r))
	}
	return resp, nil
}
