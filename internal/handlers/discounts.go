package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/esncard"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/pricing"
	"gorm.io/gorm"
)

type DiscountHandler struct {
	db       *gorm.DB
	verifier esncard.Verifier
	now      func() time.Time
}

func NewDiscountHandler(db *gorm.DB, verifier esncard.Verifier) *DiscountHandler {
	return &DiscountHandler{db: db, verifier: verifier, now: time.Now}
}

type CardResponse struct {
	ID         uint                 `json:"id"`
	Type       pricing.DiscountType `json:"type"`
	Identifier string               `json:"identifier"`
	Status     pricing.CardStatus   `json:"status"`
	ValidFrom  *time.Time           `json:"validFrom,omitempty"`
	ValidTo    *time.Time           `json:"validTo,omitempty"`
	CheckedAt  *time.Time           `json:"checkedAt,omitempty"`
}

func cardResponse(c models.DiscountCard) CardResponse {
	return CardResponse{
		ID:         c.ID,
		Type:       c.Type,
		Identifier: c.Identifier,
		Status:     c.Status,
		ValidFrom:  c.ValidFrom,
		ValidTo:    c.ValidTo,
		CheckedAt:  c.CheckedAt,
	}
}

type CardsOutput struct {
	Body []CardResponse
}

type CardOutput struct {
	Body CardResponse
}

type UpsertCardInput struct {
	Body struct {
		Type       pricing.DiscountType `json:"type" enum:"esnCard"`
		Identifier string               `json:"identifier" minLength:"1"`
	}
}

type CardTypeInput struct {
	Body struct {
		Type pricing.DiscountType `json:"type" enum:"esnCard"`
	}
}

func (h *DiscountHandler) HandleGetMyCards(ctx context.Context, input *struct{}) (*CardsOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	var cards []models.DiscountCard
	if err := h.db.Where("tenant_id = ? AND user_id = ?", s.TenantID, s.UserID).Order("type").Find(&cards).Error; err != nil {
		return nil, dbError(err)
	}

	resp := &CardsOutput{Body: make([]CardResponse, 0, len(cards))}
	for _, c := range cards {
		resp.Body = append(resp.Body, cardResponse(c))
	}
	return resp, nil
}

// providerEnabled rejects card types the tenant has not switched on.
func (h *DiscountHandler) providerEnabled(tenantID uint, t pricing.DiscountType) error {
	tenant, err := loadTenant(h.db, tenantID)
	if err != nil {
		return err
	}
	if t != pricing.DiscountESNCard || !tenant.ESNCardEnabled {
		return huma.Error400BadRequest("Discount provider is not enabled for this tenant")
	}
	return nil
}

// verify stamps the verification result onto the card. A failed lookup
// leaves the card unverified.
func (h *DiscountHandler) verify(ctx context.Context, card *models.DiscountCard) {
	now := h.now()
	card.CheckedAt = &now

	res, err := h.verifier.Check(ctx, card.Identifier)
	if err != nil {
		log.Printf("Card verification for %s failed: %v", card.Identifier, err)
		card.Status = pricing.CardUnverified
		return
	}
	card.Status = res.Status
	card.ValidTo = res.ValidTo
	if res.Status == pricing.CardVerified && card.ValidFrom == nil {
		card.ValidFrom = &now
	}
}

func (h *DiscountHandler) HandleUpsertMyCard(ctx context.Context, input *UpsertCardInput) (*CardOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	identifier := strings.ToUpper(strings.TrimSpace(input.Body.Identifier))
	if identifier == "" {
		return nil, huma.Error400BadRequest("Card identifier is required")
	}
	if err := h.providerEnabled(s.TenantID, input.Body.Type); err != nil {
		return nil, err
	}

	var taken int64
	err = h.db.Model(&models.DiscountCard{}).
		Where("tenant_id = ? AND type = ? AND identifier = ? AND user_id <> ?", s.TenantID, input.Body.Type, identifier, s.UserID).
		Count(&taken).Error
	if err != nil {
		return nil, dbError(err)
	}
	if taken > 0 {
		return nil, huma.Error409Conflict("Card is already registered to another user")
	}

	var card models.DiscountCard
	err = h.db.Where("tenant_id = ? AND user_id = ? AND type = ?", s.TenantID, s.UserID, input.Body.Type).First(&card).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbError(err)
	}

	if card.Identifier != identifier {
		card.ValidFrom = nil
		card.ValidTo = nil
	}
	card.TenantID = s.TenantID
	card.UserID = s.UserID
	card.Type = input.Body.Type
	card.Identifier = identifier
	h.verify(ctx, &card)

	if err := h.db.Save(&card).Error; err != nil {
		return nil, dbError(err)
	}
	return &CardOutput{Body: cardResponse(card)}, nil
}

func (h *DiscountHandler) HandleRefreshMyCard(ctx context.Context, input *CardTypeInput) (*CardOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	var card models.DiscountCard
	err = h.db.Where("tenant_id = ? AND user_id = ? AND type = ?", s.TenantID, s.UserID, input.Body.Type).First(&card).Error
	if err != nil {
		return nil, notFoundOr500(err, "Card not found")
	}
	if err := h.providerEnabled(s.TenantID, card.Type); err != nil {
		return nil, err
	}

	h.verify(ctx, &card)
	if err := h.db.Save(&card).Error; err != nil {
		return nil, dbError(err)
	}
	return &CardOutput{Body: cardResponse(card)}, nil
}

type DeleteCardOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

func (h *DiscountHandler) HandleDeleteMyCard(ctx context.Context, input *CardTypeInput) (*DeleteCardOutput, error) {
	s, err := auth.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	// Hard delete so the identifier can be registered again.
	res := h.db.Unscoped().
		Where("tenant_id = ? AND user_id = ? AND type = ?", s.TenantID, s.UserID, input.Body.Type).
		Delete(&models.DiscountCard{})
	if res.Error != nil {
		return nil, dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error404NotFound("Card not found")
	}

	resp := &DeleteCardOutput{}
	resp.Body.Deleted = true
	return resp, nil
}
