package models

import (
	"time"

	"github.com/evorto/evorto-api/internal/pricing"
	"gorm.io/gorm"
)

// DiscountCard is unique per tenant, user and card type.
type DiscountCard struct {
	gorm.Model
	TenantID   uint                 `gorm:"uniqueIndex:idx_card_owner;uniqueIndex:idx_card_identifier" json:"tenant_id"`
	UserID     uint                 `gorm:"uniqueIndex:idx_card_owner" json:"user_id"`
	Type       pricing.DiscountType `gorm:"uniqueIndex:idx_card_owner;uniqueIndex:idx_card_identifier" json:"type"`
	Identifier string               `gorm:"uniqueIndex:idx_card_identifier" json:"identifier"`
	Status     pricing.CardStatus   `gorm:"default:unverified" json:"status"`
	ValidFrom  *time.Time           `json:"valid_from"`
	ValidTo    *time.Time           `json:"valid_to"`
	CheckedAt  *time.Time           `json:"checked_at"`
}

func (c DiscountCard) PricingCard() pricing.Card {
	return pricing.Card{Type: c.Type, Status: c.Status, ValidFrom: c.ValidFrom, ValidTo: c.ValidTo}
}

func PricingCards(cards []DiscountCard) []pricing.Card {
	out := make([]pricing.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.PricingCard())
	}
	return out
}
