package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no live session exists under the id.
var ErrSessionNotFound = errors.New("session not found")

// ErrRedisUnavailable is returned when the backing store could not answer.
// Distinct from ErrSessionNotFound so callers can tell "deny" from "unknown".
var ErrRedisUnavailable = errors.New("session redis unavailable")

const minRemainingTTL = time.Second

// Store persists sessions and the device-conflict journal in Redis.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore wraps an existing Redis client. prefix namespaces every key this
// store writes.
func NewStore(redisClient *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "sess"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) conflictKey(userID string) string {
	return s.prefix + ":dc:" + userID
}

// Save writes the session with a TTL equal to its remaining absolute
// lifetime.
func (s *Store) Save(ctx context.Context, sess *Session, absoluteLifetime time.Duration) error {
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := s.remainingTTL(sess, absoluteLifetime, time.Now())
	if ttl <= 0 {
		return errors.New("session already past absolute lifetime")
	}

	if err := s.redis.Set(ctx, s.key(sess.SessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get reads a session. Sessions past the absolute lifetime are deleted on the
// way out and reported as ErrSessionNotFound; Redis TTL normally gets there
// first, this is the lazy backstop.
func (s *Store) Get(ctx context.Context, sessionID string, absoluteLifetime time.Duration) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if s.remainingTTL(sess, absoluteLifetime, time.Now()) <= 0 {
		_, _ = s.redis.Del(ctx, s.key(sessionID)).Result()
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Touch advances LastValidatedAt and rewrites the record. The TTL is clamped
// to the remaining absolute lifetime: revalidation never extends a session
// past its age limit. The write is set-if-exists: a session deleted between
// the caller's read and this write stays deleted, invalidation is terminal.
func (s *Store) Touch(ctx context.Context, sess *Session, absoluteLifetime time.Duration) error {
	now := time.Now()
	sess.LastValidatedAt = now.Unix()

	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := s.remainingTTL(sess, absoluteLifetime, now)
	if ttl <= 0 {
		_, _ = s.redis.Del(ctx, s.key(sess.SessionID)).Result()
		return ErrSessionNotFound
	}
	if ttl < minRemainingTTL {
		ttl = minRemainingTTL
	}

	wrote, err := s.redis.SetXX(ctx, s.key(sess.SessionID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !wrote {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session. Idempotent: deleting an already-gone session is
// not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AppendConflict journals a device conflict for the user. Entries are JSON so
// external audit tooling can consume the list without this package.
func (s *Store) AppendConflict(ctx context.Context, conflict *DeviceConflict) error {
	data, err := json.Marshal(conflict)
	if err != nil {
		return err
	}
	if err := s.redis.RPush(ctx, s.conflictKey(conflict.UserID), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Conflicts returns the user's device-conflict journal, oldest first.
func (s *Store) Conflicts(ctx context.Context, userID string) ([]DeviceConflict, error) {
	entries, err := s.redis.LRange(ctx, s.conflictKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	conflicts := make([]DeviceConflict, 0, len(entries))
	for _, entry := range entries {
		var c DeviceConflict
		if err := json.Unmarshal([]byte(entry), &c); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

func (s *Store) remainingTTL(sess *Session, absoluteLifetime time.Duration, now time.Time) time.Duration {
	if absoluteLifetime <= 0 {
		return 0
	}
	deadline := time.Unix(sess.CreatedAt, 0).Add(absoluteLifetime)
	return deadline.Sub(now)
}
