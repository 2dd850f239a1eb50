package credential

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means no live credential exists under the key. Absence and
	// expiry both surface as ErrNotFound; an expired record is deleted on the
	// way out.
	ErrNotFound = errors.New("credential not found")
	// ErrMismatch means a live credential exists but the presented payload
	// does not match it. The stored record is left untouched.
	ErrMismatch = errors.New("credential payload mismatch")
	// ErrUnavailable means the backing store could not answer. It is never
	// conflated with ErrNotFound so callers can tell "deny" from "unknown".
	ErrUnavailable = errors.New("credential store unavailable")
)

// Store persists one-time credentials in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore wraps an existing Redis client. The client is shared, never owned.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// Save writes a credential record under key with the given TTL. Any existing
// record under the key is replaced, keeping at most one live credential per
// key.
func (s *Store) Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("credential ttl must be positive")
	}

	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads a record without consuming it. Expired records are deleted as a
// side effect and reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > rec.ExpiresAt {
		_, _ = s.redis.Del(ctx, key).Result()
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete removes a record. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume atomically compares the presented payload against the stored record
// and deletes the record on match. Concurrent Consume calls on the same key
// observe exactly one success. A payload mismatch leaves the record in place;
// a wrong guess must not burn the real credential.
func (s *Store) Consume(ctx context.Context, key, payload string) (*Record, error) {
	const maxRetries = 4

	for i := 0; i < maxRetries; i++ {
		var matched *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > rec.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrNotFound
			}

			if subtle.ConstantTimeCompare([]byte(rec.Payload), []byte(payload)) != 1 {
				return ErrMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = rec
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrMismatch):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrNotFound
}

// ConsumeAny atomically takes whatever record lives under the key. Used for
// magic links, where the key is the token and possession is the proof.
func (s *Store) ConsumeAny(ctx context.Context, key string) (*Record, error) {
	const maxRetries = 4

	for i := 0; i < maxRetries; i++ {
		var taken *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			if time.Now().Unix() > rec.ExpiresAt {
				return ErrNotFound
			}

			taken = rec
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}

		return taken, nil
	}

	return nil, ErrNotFound
}
