package pricing

import (
	"errors"
	"fmt"
)

var (
	ErrFreeOptionDiscounts = errors.New("free options cannot have discounts")
	ErrFreeOptionTaxRate   = errors.New("free options cannot have a tax rate")
	ErrPaidOptionPrice     = errors.New("paid options need a price above zero")
	ErrPaidOptionTaxRate   = errors.New("paid options need a tax rate")
	ErrInvalidDiscount     = errors.New("invalid discount")
)

// ValidateOption checks an option's discount configuration before it is
// saved. Resolve assumes its input passed this check.
func ValidateOption(opt Option, taxRateID *string) error {
	hasTax := taxRateID != nil && *taxRateID != ""

	if !opt.IsPaid {
		if len(opt.Discounts) > 0 {
			return ErrFreeOptionDiscounts
		}
		if hasTax {
			return ErrFreeOptionTaxRate
		}
		return nil
	}

	if opt.Price <= 0 {
		return ErrPaidOptionPrice
	}
	if !hasTax {
		return ErrPaidOptionTaxRate
	}

	seen := make(map[DiscountType]bool, len(opt.Discounts))
	for _, d := range opt.Discounts {
		if d.DiscountType != DiscountESNCard {
			return fmt.Errorf("%w: unknown discount type %q", ErrInvalidDiscount, d.DiscountType)
		}
		if seen[d.DiscountType] {
			return fmt.Errorf("%w: duplicate discount type %q", ErrInvalidDiscount, d.DiscountType)
		}
		seen[d.DiscountType] = true
		if d.DiscountedPrice < 0 {
			return fmt.Errorf("%w: discounted price cannot be negative", ErrInvalidDiscount)
		}
		if d.DiscountedPrice >= opt.Price {
			return fmt.Errorf("%w: discounted price must be lower than the price", ErrInvalidDiscount)
		}
	}
	return nil
}
