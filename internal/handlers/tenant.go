package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/cancellation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TenantHandler struct {
	db *gorm.DB
}

func NewTenantHandler(db *gorm.DB) *TenantHandler {
	return &TenantHandler{db: db}
}

type PolicySetting struct {
	Variant    cancellation.Variant `json:"variant"`
	Rules      cancellation.Rules   `json:"rules"`
	Configured bool                 `json:"configured" doc:"False when the built-in default applies"`
}

type CancellationPoliciesOutput struct {
	Body []PolicySetting
}

type UpdateCancellationPoliciesInput struct {
	Body struct {
		Policies map[cancellation.Variant]cancellation.Rules `json:"policies"`
	}
}

func policySettings(tp cancellation.TenantPolicies) []PolicySetting {
	out := make([]PolicySetting, 0, len(cancellation.Variants))
	for _, v := range cancellation.Variants {
		_, configured := tp[v]
		out = append(out, PolicySetting{Variant: v, Rules: tp.For(v), Configured: configured})
	}
	return out
}

func (h *TenantHandler) HandleGetCancellationPolicies(ctx context.Context, input *struct{}) (*CancellationPoliciesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermAdminChangeSettings)
	if err != nil {
		return nil, err
	}
	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}
	return &CancellationPoliciesOutput{Body: policySettings(tenant.Policies())}, nil
}

// HandleUpdateCancellationPolicies replaces the tenant defaults. Existing
// registrations keep their snapshot.
func (h *TenantHandler) HandleUpdateCancellationPolicies(ctx context.Context, input *UpdateCancellationPoliciesInput) (*CancellationPoliciesOutput, error) {
	s, err := auth.EnsurePermission(ctx, auth.PermAdminChangeSettings)
	if err != nil {
		return nil, err
	}

	policies := cancellation.TenantPolicies(input.Body.Policies)
	if policies == nil {
		policies = cancellation.TenantPolicies{}
	}
	if err := policies.Validate(); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	tenant, err := loadTenant(h.db, s.TenantID)
	if err != nil {
		return nil, err
	}
	tenant.CancellationPolicies = datatypes.NewJSONType(policies)
	if err := h.db.Model(tenant).Update("cancellation_policies", tenant.CancellationPolicies).Error; err != nil {
		return nil, dbError(err)
	}
	return &CancellationPoliciesOutput{Body: policySettings(policies)}, nil
}
