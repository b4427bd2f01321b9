package cancellation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVariantFor(t *testing.T) {
	assert.Equal(t, PaidRegular, VariantFor(true, false))
	assert.Equal(t, PaidOrganizer, VariantFor(true, true))
	assert.Equal(t, FreeRegular, VariantFor(false, false))
	assert.Equal(t, FreeOrganizer, VariantFor(false, true))
}

func TestResolve(t *testing.T) {
	tenant := TenantPolicies{
		PaidRegular: {AllowCancellation: true, CutoffDays: 2},
	}

	t.Run("TenantDefault", func(t *testing.T) {
		p := Resolve(tenant, true, false, nil)
		assert.Equal(t, SourceTenantDefault, p.Source)
		assert.Equal(t, PaidRegular, p.Variant)
		assert.Equal(t, 2, p.CutoffDays)
	})

	t.Run("MissingVariantFallsBack", func(t *testing.T) {
		p := Resolve(tenant, false, true, nil)
		assert.Equal(t, FreeOrganizer, p.Variant)
		assert.Equal(t, DefaultTenantPolicies()[FreeOrganizer], p.Rules)
	})

	t.Run("OptionOverride", func(t *testing.T) {
		override := &Rules{AllowCancellation: false}
		p := Resolve(tenant, true, false, override)
		assert.Equal(t, SourceOptionOverride, p.Source)
		assert.Equal(t, PaidRegular, p.Variant)
		assert.False(t, p.AllowCancellation)
	})

	t.Run("SnapshotIsDetached", func(t *testing.T) {
		p := Resolve(tenant, true, false, nil)
		tenant[PaidRegular] = Rules{AllowCancellation: false}
		assert.True(t, p.AllowCancellation)
		assert.Equal(t, 2, p.CutoffDays)
	})
}

func TestCheck(t *testing.T) {
	now := time.Now()

	t.Run("CutoffPassed", func(t *testing.T) {
		p := Policy{Rules: Rules{AllowCancellation: true, CutoffDays: 1}}
		err := Check(p, now.Add(12*time.Hour), now)
		assert.ErrorIs(t, err, ErrCutoffPassed)
		assert.Equal(t, "Cancellation cutoff has passed", err.Error())
	})

	t.Run("BeforeCutoff", func(t *testing.T) {
		p := Policy{Rules: Rules{AllowCancellation: true, CutoffDays: 1, CutoffHours: 6}}
		assert.NoError(t, Check(p, now.Add(31*time.Hour), now))
	})

	t.Run("ExactlyAtDeadline", func(t *testing.T) {
		p := Policy{Rules: Rules{AllowCancellation: true, CutoffHours: 2}}
		assert.NoError(t, Check(p, now.Add(2*time.Hour), now))
	})

	t.Run("Disallowed", func(t *testing.T) {
		p := Policy{Rules: Rules{AllowCancellation: false}}
		err := Check(p, now.Add(30*24*time.Hour), now)
		assert.ErrorIs(t, err, ErrPolicyDisallowsCancellation)
		assert.Equal(t, "Cancellation not allowed for this registration", err.Error())
	})

	t.Run("RescheduledEventUsesLiveStart", func(t *testing.T) {
		p := Policy{Rules: Rules{AllowCancellation: true, CutoffDays: 1}}
		assert.ErrorIs(t, Check(p, now.Add(20*time.Hour), now), ErrCutoffPassed)
		assert.NoError(t, Check(p, now.Add(48*time.Hour), now))
	})
}

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
		want  int64
	}{
		{"AllFeesIncluded", Rules{IncludeTransactionFees: true, IncludeAppFees: true}, 2500},
		{"TransactionFeeWithheld", Rules{IncludeTransactionFees: false, IncludeAppFees: true}, 2400},
		{"AppFeeWithheld", Rules{IncludeTransactionFees: true, IncludeAppFees: false}, 2450},
		{"BothWithheld", Rules{}, 2350},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefundAmount(Policy{Rules: tt.rules}, 2500, 100, 50))
		})
	}

	assert.Equal(t, int64(0), RefundAmount(Policy{}, 100, 80, 80))
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, Rules{CutoffDays: 3, CutoffHours: 23}.Validate())
	assert.ErrorIs(t, Rules{CutoffDays: -1}.Validate(), ErrInvalidRules)
	assert.ErrorIs(t, Rules{CutoffHours: 24}.Validate(), ErrInvalidRules)
	assert.ErrorIs(t, TenantPolicies{"paid-vip": {}}.Validate(), ErrUnknownVariant)
	assert.NoError(t, DefaultTenantPolicies().Validate())
}
