// Package pricing resolves what a user pays for a registration option and how
// that amount is labelled.
package pricing

import (
	"sort"
	"time"
)

type DiscountType string

const DiscountESNCard DiscountType = "esnCard"

type CardStatus string

const (
	CardUnverified CardStatus = "unverified"
	CardVerified   CardStatus = "verified"
	CardInvalid    CardStatus = "invalid"
	CardExpired    CardStatus = "expired"
)

// WarningCardExpiresBeforeEvent is surfaced when the only matching card cannot
// be used because it is not valid through the event start.
const WarningCardExpiresBeforeEvent = "discount card expires before the event starts"

// Discount is one entry of an option's discount list. DiscountedPrice is the
// absolute price charged to holders of the card, not an amount off.
type Discount struct {
	DiscountType    DiscountType `json:"discountType"`
	DiscountedPrice int64        `json:"discountedPrice"`
}

type Card struct {
	Type      DiscountType
	Status    CardStatus
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// Option is the pricing-relevant part of a registration option.
type Option struct {
	IsPaid    bool
	Price     int64
	Discounts []Discount
}

type Quote struct {
	BasePrice       int64     `json:"basePrice"`
	EffectivePrice  int64     `json:"effectivePrice"`
	AppliedDiscount *Discount `json:"appliedDiscount,omitempty"`
	Warning         string    `json:"warning,omitempty"`
}

// Free reports whether no payment flow should be created.
func (q Quote) Free() bool {
	return q.EffectivePrice <= 0
}

// validThrough reports whether the card can be used for an event starting at t.
func (c Card) validThrough(t time.Time) bool {
	if c.Status != CardVerified {
		return false
	}
	return c.ValidTo == nil || !c.ValidTo.Before(t)
}

func (c Card) expiredBy(t time.Time) bool {
	if c.Status == CardExpired {
		return true
	}
	return c.Status == CardVerified && c.ValidTo != nil && c.ValidTo.Before(t)
}

// Resolve computes the effective price of opt for a user holding cards.
// Card validity is judged against eventStart, not the current time: the card
// must remain valid through the event.
func Resolve(opt Option, cards []Card, eventStart time.Time) Quote {
	if !opt.IsPaid {
		return Quote{}
	}

	q := Quote{BasePrice: opt.Price, EffectivePrice: opt.Price}

	byType := make(map[DiscountType][]Card, len(cards))
	for _, c := range cards {
		byType[c.Type] = append(byType[c.Type], c)
	}

	var eligible []Discount
	expiredMatch := false
	for _, d := range opt.Discounts {
		held, ok := byType[d.DiscountType]
		if !ok {
			continue
		}
		usable := false
		for _, c := range held {
			if c.validThrough(eventStart) {
				usable = true
				break
			}
			if c.expiredBy(eventStart) {
				expiredMatch = true
			}
		}
		if usable {
			eligible = append(eligible, d)
		}
	}

	if len(eligible) == 0 {
		if expiredMatch {
			q.Warning = WarningCardExpiresBeforeEvent
		}
		return q
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].DiscountedPrice != eligible[j].DiscountedPrice {
			return eligible[i].DiscountedPrice < eligible[j].DiscountedPrice
		}
		return eligible[i].DiscountType < eligible[j].DiscountType
	})

	best := eligible[0]
	q.EffectivePrice = clamp(best.DiscountedPrice, opt.Price)
	q.AppliedDiscount = &best
	return q
}

func clamp(discounted, price int64) int64 {
	if discounted < 0 {
		return 0
	}
	if discounted > price {
		return price
	}
	return discounted
}
