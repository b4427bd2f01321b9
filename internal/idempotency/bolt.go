package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
)

var bucketName = []byte("idempotency")

type boltRecord struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Body      json.RawMessage `json:"body"`
}

// BoltStore keeps responses in a local bolt file. Expired entries are
// dropped lazily on lookup.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	var rec *boltRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}
		rec = &boltRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil || rec == nil {
		return nil, false, err
	}

	if !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt) {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketName).Delete([]byte(key))
		})
		return nil, false, err
	}
	return rec.Body, true, nil
}

func (s *BoltStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	rec := boltRecord{Body: value}
	if ttl > 0 {
		rec.ExpiresAt = s.now().Add(ttl)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}
