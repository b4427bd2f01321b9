// Package cancellation resolves the cancellation policy that applies to a
// registration and decides whether a cancellation is currently allowed.
//
// A resolved Policy is a snapshot: it is stored on the registration when the
// user registers and is never recomputed, so later changes to tenant defaults
// or option overrides only affect new registrations.
package cancellation

import (
	"errors"
	"time"
)

type Variant string

const (
	PaidRegular   Variant = "paid-regular"
	PaidOrganizer Variant = "paid-organizer"
	FreeRegular   Variant = "free-regular"
	FreeOrganizer Variant = "free-organizer"
)

// Variants lists every variant key in display order.
var Variants = []Variant{PaidRegular, PaidOrganizer, FreeRegular, FreeOrganizer}

type Source string

const (
	SourceTenantDefault  Source = "tenant-default"
	SourceOptionOverride Source = "option-override"
)

var (
	ErrPolicyDisallowsCancellation = errors.New("Cancellation not allowed for this registration")
	ErrCutoffPassed                = errors.New("Cancellation cutoff has passed")
	ErrInvalidRules                = errors.New("invalid cancellation rules")
	ErrUnknownVariant              = errors.New("unknown cancellation policy variant")
)

type Rules struct {
	AllowCancellation      bool `json:"allowCancellation"`
	IncludeTransactionFees bool `json:"includeTransactionFees"`
	IncludeAppFees         bool `json:"includeAppFees"`
	CutoffDays             int  `json:"cutoffDays"`
	CutoffHours            int  `json:"cutoffHours"`
}

type Policy struct {
	Rules
	Source  Source  `json:"source"`
	Variant Variant `json:"variant"`
}

// TenantPolicies holds a tenant's default rules per variant.
type TenantPolicies map[Variant]Rules

func DefaultTenantPolicies() TenantPolicies {
	return TenantPolicies{
		PaidRegular:   {AllowCancellation: true, IncludeTransactionFees: false, IncludeAppFees: true, CutoffDays: 1},
		PaidOrganizer: {AllowCancellation: true, IncludeTransactionFees: false, IncludeAppFees: true, CutoffDays: 3},
		FreeRegular:   {AllowCancellation: true, CutoffHours: 2},
		FreeOrganizer: {AllowCancellation: true, CutoffDays: 1},
	}
}

func VariantFor(isPaid, organizing bool) Variant {
	switch {
	case isPaid && organizing:
		return PaidOrganizer
	case isPaid:
		return PaidRegular
	case organizing:
		return FreeOrganizer
	default:
		return FreeRegular
	}
}

func (v Variant) Valid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

// Validate rejects negative cutoffs and hour values that belong in days.
func (r Rules) Validate() error {
	if r.CutoffDays < 0 || r.CutoffHours < 0 {
		return ErrInvalidRules
	}
	if r.CutoffHours > 23 {
		return ErrInvalidRules
	}
	return nil
}

// Validate checks every configured variant of a tenant policy set.
func (tp TenantPolicies) Validate() error {
	for v, r := range tp {
		if !v.Valid() {
			return ErrUnknownVariant
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// For returns the tenant rules for v, falling back to the built-in default
// when the tenant never configured that variant.
func (tp TenantPolicies) For(v Variant) Rules {
	if r, ok := tp[v]; ok {
		return r
	}
	return DefaultTenantPolicies()[v]
}

// Resolve picks the policy for an option. A non-nil override wins over the
// tenant default for the option's variant.
func Resolve(tenant TenantPolicies, isPaid, organizing bool, override *Rules) Policy {
	variant := VariantFor(isPaid, organizing)
	if override != nil {
		return Policy{Rules: *override, Source: SourceOptionOverride, Variant: variant}
	}
	return Policy{Rules: tenant.For(variant), Source: SourceTenantDefault, Variant: variant}
}

func (p Policy) Cutoff() time.Duration {
	return time.Duration(p.CutoffDays*24+p.CutoffHours) * time.Hour
}

// Deadline is the last moment a cancellation is accepted for an event that
// starts at eventStart.
func (p Policy) Deadline(eventStart time.Time) time.Time {
	return eventStart.Add(-p.Cutoff())
}

// Check evaluates the frozen policy against the live event start.
func Check(p Policy, eventStart, now time.Time) error {
	if !p.AllowCancellation {
		return ErrPolicyDisallowsCancellation
	}
	if now.After(p.Deadline(eventStart)) {
		return ErrCutoffPassed
	}
	return nil
}

// RefundAmount is what goes back to the participant. Fees the policy does not
// include are withheld.
func RefundAmount(p Policy, paid, transactionFee, appFee int64) int64 {
	refund := paid
	if !p.IncludeTransactionFees {
		refund -= transactionFee
	}
	if !p.IncludeAppFees {
		refund -= appFee
	}
	if refund < 0 {
		return 0
	}
	return refund
}
