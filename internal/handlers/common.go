package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/idempotency"
	"github.com/evorto/evorto-api/internal/models"
	"gorm.io/gorm"
)

// Idempotency wires an idempotency store into the mutating handlers.
type Idempotency struct {
	Store idempotency.Store
	TTL   time.Duration
}

// withIdempotency runs fn once per client key. A replay decodes the stored
// output instead of calling fn. Only successful outputs are remembered.
func withIdempotency[O any](ctx context.Context, idem Idempotency, s *auth.Session, operation, clientKey string, fn func() (*O, error)) (*O, error) {
	if clientKey == "" || idem.Store == nil {
		return fn()
	}

	key, err := idempotency.Key(s.TenantID, s.UserID, operation, clientKey)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	raw, ok, err := idem.Store.Load(ctx, key)
	if err != nil {
		log.Printf("Idempotency lookup for %s failed: %v", operation, err)
	} else if ok {
		var out O
		if err := json.Unmarshal(raw, &out); err == nil {
			return &out, nil
		}
		log.Printf("Discarding unreadable idempotency entry %s", key)
	}

	out, err := fn()
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(out); err == nil {
		if err := idem.Store.Save(ctx, key, raw, idem.TTL); err != nil {
			log.Printf("Failed to store idempotency entry for %s: %v", operation, err)
		}
	}
	return out, nil
}

func loadTenant(db *gorm.DB, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := db.First(&tenant, id).Error; err != nil {
		return nil, notFoundOr500(err, "Tenant not found")
	}
	return &tenant, nil
}

func loadEvent(db *gorm.DB, tenantID, eventID uint) (*models.Event, error) {
	var event models.Event
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, eventID).First(&event).Error; err != nil {
		return nil, notFoundOr500(err, "Event not found")
	}
	return &event, nil
}

func notFoundOr500(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return huma.Error404NotFound(msg)
	}
	return dbError(err)
}

func dbError(err error) error {
	log.Printf("Database error: %v", err)
	return huma.Error500InternalServerError("Database error")
}

// passthrough returns err unchanged when it already is an API error, which
// lets db.Transaction callbacks abort with a specific status.
func passthrough(err error) error {
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}
	return dbError(err)
}

func ptr[T any](v T) *T { return &v }
