package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/cancellation"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/pricing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OptionHandler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOptionHandler(db *gorm.DB) *OptionHandler {
	return &OptionHandler{db: db, now: time.Now}
}

type UpsertOptionInput struct {
	Body struct {
		ID                       uint                `json:"id,omitempty" doc:"Omit to create a new option"`
		EventID                  uint                `json:"eventId"`
		Title                    string              `json:"title" minLength:"1"`
		IsPaid                   bool                `json:"isPaid"`
		Price                    int64               `json:"price" minimum:"0"`
		OrganizingRegistration   bool                `json:"organizingRegistration"`
		Spaces                   int                 `json:"spaces" minimum:"0" doc:"0 means unlimited"`
		OpenRegistrationTime     *time.Time          `json:"openRegistrationTime,omitempty"`
		CloseRegistrationTime    *time.Time          `json:"closeRegistrationTime,omitempty"`
		Discounts                []pricing.Discount  `json:"discounts,omitempty"`
		StripeTaxRateID          *string             `json:"stripeTaxRateId,omitempty"`
		CancellationPolicySource cancellation.Source `json:"cancellationPolicySource,omitempty" enum:"tenant-default,option-override"`
		CancellationPolicy       *cancellation.Rules `json:"cancellationPolicy,omitempty"`
	}
}

type OptionResponse struct {
	ID                       uint                `json:"id"`
	EventID                  uint                `json:"eventId"`
	Title                    string              `json:"title"`
	IsPaid                   bool                `json:"isPaid"`
	Price                    int64               `json:"price"`
	OrganizingRegistration   bool                `json:"organizingRegistration"`
	Spaces                   int                 `json:"spaces"`
	Discounts                []pricing.Discount  `json:"discounts"`
	StripeTaxRateID          *string             `json:"stripeTaxRateId,omitempty"`
	CancellationPolicySource cancellation.Source `json:"cancellationPolicySource"`
	CancellationPolicy       *cancellation.Rules `json:"cancellationPolicy,omitempty"`
}

type OptionOutput struct {
	Body OptionResponse
}

func optionResponse(o models.RegistrationOption) OptionResponse {
	discounts := []pricing.Discount(o.Discounts)
	if discounts == nil {
		discounts = []pricing.Discount{}
	}
	return OptionResponse{
		ID:                       o.ID,
		EventID:                  o.EventID,
		Title:                    o.Title,
		IsPaid:                   o.IsPaid,
		Price:                    o.Price,
		OrganizingRegistration:   o.OrganizingRegistration,
		Spaces:                   o.Spaces,
		Discounts:                discounts,
		StripeTaxRateID:          o.StripeTaxRateID,
		CancellationPolicySource: o.CancellationPolicySource,
		CancellationPolicy:       o.PolicyOverride(),
	}
}

// HandleUpsertRegistrationOption validates the whole option before writing
// anything.
func (h *OptionHandler) HandleUpsertRegistrationOption(ctx context.Context, input *UpsertOptionInput) (*OptionOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermEventsEdit)
	if err != nil {
		return nil, err
	}
	in := input.Body

	if _, err := loadEvent(h.db, s.TenantID, in.EventID); err != nil {
		return nil, err
	}

	var taxRateID *string
	if in.StripeTaxRateID != nil && strings.TrimSpace(*in.StripeTaxRateID) != "" {
		taxRateID = ptr(strings.TrimSpace(*in.StripeTaxRateID))
	}

	opt := pricing.Option{IsPaid: in.IsPaid, Price: in.Price, Discounts: in.Discounts}
	if err := pricing.ValidateOption(opt, taxRateID); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if in.OpenRegistrationTime != nil && in.CloseRegistrationTime != nil && in.CloseRegistrationTime.Before(*in.OpenRegistrationTime) {
		return nil, huma.Error400BadRequest("Registration closes before it opens")
	}

	source := in.CancellationPolicySource
	if source == "" {
		source = cancellation.SourceTenantDefault
	}
	var override cancellation.Rules
	if source == cancellation.SourceOptionOverride {
		if in.CancellationPolicy == nil {
			return nil, huma.Error400BadRequest("An overriding option needs a cancellation policy")
		}
		if err := in.CancellationPolicy.Validate(); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		override = *in.CancellationPolicy
	}

	if taxRateID != nil {
		var rate models.TenantStripeTaxRate
		err := h.db.Where("tenant_id = ? AND stripe_tax_rate_id = ?", s.TenantID, *taxRateID).First(&rate).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dbError(err)
		}
		if err != nil || !rate.Active || !rate.Inclusive {
			return nil, huma.Error400BadRequest("Tax rate must be an imported, active and inclusive rate of this tenant")
		}
	}

	var option models.RegistrationOption
	if in.ID != 0 {
		err := h.db.Where("tenant_id = ? AND event_id = ? AND id = ?", s.TenantID, in.EventID, in.ID).First(&option).Error
		if err != nil {
			return nil, notFoundOr500(err, "Registration option not found")
		}
	}

	option.TenantID = s.TenantID
	option.EventID = in.EventID
	option.Title = in.Title
	option.IsPaid = in.IsPaid
	option.Price = in.Price
	option.OrganizingRegistration = in.OrganizingRegistration
	option.Spaces = in.Spaces
	option.OpenRegistrationTime = in.OpenRegistrationTime
	option.CloseRegistrationTime = in.CloseRegistrationTime
	option.Discounts = datatypes.NewJSONSlice(in.Discounts)
	option.StripeTaxRateID = taxRateID
	option.CancellationPolicySource = source
	option.CancellationPolicy = datatypes.NewJSONType(override)

	if err := h.db.Save(&option).Error; err != nil {
		return nil, dbError(err)
	}
	return &OptionOutput{Body: optionResponse(option)}, nil
}

type EventInput struct {
	Body struct {
		EventID uint `json:"eventId"`
	}
}

type OptionQuote struct {
	ID                     uint              `json:"id"`
	Title                  string            `json:"title"`
	IsPaid                 bool              `json:"isPaid"`
	OrganizingRegistration bool              `json:"organizingRegistration"`
	Spaces                 int               `json:"spaces"`
	RegistrationOpen       bool              `json:"registrationOpen"`
	BasePrice              int64             `json:"basePrice"`
	EffectivePrice         int64             `json:"effectivePrice"`
	DisplayPrice           string            `json:"displayPrice"`
	TaxLabel               string            `json:"taxLabel,omitempty"`
	AppliedDiscount        *pricing.Discount `json:"appliedDiscount,omitempty"`
	Warning                string            `json:"warning,omitempty"`
}

type OptionQuotesOutput struct {
	Body []OptionQuote
}

// HandleGetRegistrationOptions prices every option of an event for the
// caller's discount cards.
func (h *OptionHandler) HandleGetRegistrationOptions(ctx context.Context, input *EventInput) (*OptionQuotesOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(h.db, s.TenantID, input.Body.EventID)
	if err != nil {
		return nil, err
	}

	var options []models.RegistrationOption
	if err := h.db.Where("tenant_id = ? AND event_id = ?", s.TenantID, event.ID).Order("id").Find(&options).Error; err != nil {
		return nil, dbError(err)
	}

	var cards []models.DiscountCard
	if err := h.db.Where("tenant_id = ? AND user_id = ?", s.TenantID, s.UserID).Find(&cards).Error; err != nil {
		return nil, dbError(err)
	}

	var rates []models.TenantStripeTaxRate
	if err := h.db.Where("tenant_id = ?", s.TenantID).Find(&rates).Error; err != nil {
		return nil, dbError(err)
	}
	rateByID := make(map[string]models.TenantStripeTaxRate, len(rates))
	for _, r := range rates {
		rateByID[r.StripeTaxRateID] = r
	}

	now := h.now()
	pricingCards := models.PricingCards(cards)
	resp := &OptionQuotesOutput{Body: make([]OptionQuote, 0, len(options))}
	for _, o := range options {
		q := pricing.Resolve(o.PricingOption(), pricingCards, event.Start)
		quote := OptionQuote{
			ID:                     o.ID,
			Title:                  o.Title,
			IsPaid:                 o.IsPaid,
			OrganizingRegistration: o.OrganizingRegistration,
			Spaces:                 o.Spaces,
			RegistrationOpen:       o.RegistrationOpen(now),
			BasePrice:              q.BasePrice,
			EffectivePrice:         q.EffectivePrice,
			DisplayPrice:           pricing.FormatAmount(q.EffectivePrice, tenant.Currency),
			AppliedDiscount:        q.AppliedDiscount,
			Warning:                q.Warning,
		}
		if !q.Free() {
			var rate *pricing.TaxRate
			if o.StripeTaxRateID != nil {
				if r, ok := rateByID[*o.StripeTaxRateID]; ok {
					rate = r.PricingTaxRate()
				}
			}
			quote.TaxLabel = pricing.TaxLabel(rate)
		}
		resp.Body = append(resp.Body, quote)
	}
	return resp, nil
}
