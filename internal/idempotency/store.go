// Package idempotency stores the first response of a client operation under
// its idempotency key so retries replay it instead of running twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("idempotency key must be a UUID")

type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key scopes a client key to the tenant, user, and operation so the same
// UUID can never replay a response across those boundaries.
func Key(tenantID, userID uint, operation, clientKey string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(clientKey))
	if err != nil {
		return "", ErrInvalidKey
	}
	return fmt.Sprintf("idem:%d:%d:%s:%s", tenantID, userID, operation, id.String()), nil
}

// NopStore never remembers anything.
type NopStore struct{}

func (NopStore) Load(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopStore) Save(context.Context, string, []byte, time.Duration) error { return nil }
