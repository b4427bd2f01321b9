package handlers

import (
	"net/http"
	"testing"

	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/cancellation"
)

func TestCancellationPolicies(t *testing.T) {
	f := newFixture(t)
	h := NewTenantHandler(f.db)
	ctx := f.ctx(f.admin, auth.PermAdminChangeSettings)

	_, err := h.HandleGetCancellationPolicies(f.ctx(f.user), &struct{}{})
	expectStatus(t, err, http.StatusForbidden)

	out, err := h.HandleGetCancellationPolicies(ctx, &struct{}{})
	if err != nil {
		t.Fatalf("HandleGetCancellationPolicies returned error: %v", err)
	}
	if len(out.Body) != len(cancellation.Variants) {
		t.Fatalf("expected %d variants, got %d", len(cancellation.Variants), len(out.Body))
	}
	for _, s := range out.Body {
		if s.Configured {
			t.Errorf("expected %s to use the default", s.Variant)
		}
		if s.Rules != cancellation.DefaultTenantPolicies()[s.Variant] {
			t.Errorf("unexpected default for %s: %+v", s.Variant, s.Rules)
		}
	}

	in := &UpdateCancellationPoliciesInput{}
	in.Body.Policies = map[cancellation.Variant]cancellation.Rules{
		cancellation.PaidRegular: {AllowCancellation: true, IncludeTransactionFees: true, IncludeAppFees: true, CutoffDays: 7},
	}
	if _, err := h.HandleUpdateCancellationPolicies(ctx, in); err != nil {
		t.Fatalf("HandleUpdateCancellationPolicies returned error: %v", err)
	}

	out, err = h.HandleGetCancellationPolicies(ctx, &struct{}{})
	if err != nil {
		t.Fatalf("HandleGetCancellationPolicies returned error: %v", err)
	}
	for _, s := range out.Body {
		if s.Variant == cancellation.PaidRegular {
			if !s.Configured || s.Rules.CutoffDays != 7 {
				t.Errorf("expected stored paid-regular rules, got %+v", s)
			}
		} else if s.Configured {
			t.Errorf("expected %s to stay on the default", s.Variant)
		}
	}

	in.Body.Policies = map[cancellation.Variant]cancellation.Rules{"paid-vip": {}}
	_, err = h.HandleUpdateCancellationPolicies(ctx, in)
	expectStatus(t, err, http.StatusBadRequest)

	in.Body.Policies = map[cancellation.Variant]cancellation.Rules{cancellation.FreeRegular: {CutoffHours: -1}}
	_, err = h.HandleUpdateCancellationPolicies(ctx, in)
	expectStatus(t, err, http.StatusBadRequest)
}
