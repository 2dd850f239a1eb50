package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "sess"), mr
}

func newTestSession(id string) *Session {
	now := time.Now().Unix()
	return &Session{
		SessionID:         id,
		UserID:            "user-1",
		Role:              "technician",
		DeviceFingerprint: "fp-abc",
		IPAddress:         "203.0.113.9",
		UserAgent:         "field-app/2.1",
		CreatedAt:         now,
		LastValidatedAt:   now,
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1")
	if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get(ctx, "s1", 24*time.Hour)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if *got != *sess {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, sess)
	}
}

func TestSaveTTLIsRemainingLifetime(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// A session created an hour ago gets only the remaining 23h, not a
	// fresh 24h.
	sess := newTestSession("s1")
	sess.CreatedAt = time.Now().Add(-time.Hour).Unix()
	if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	ttl := mr.TTL("sess:s1")
	if ttl > 23*time.Hour || ttl < 22*time.Hour+59*time.Minute {
		t.Fatalf("ttl not clamped to remaining lifetime: %v", ttl)
	}
}

func TestSaveRejectsExpiredSession(t *testing.T) {
	store, _ := newTestStore(t)

	sess := newTestSession("s1")
	sess.CreatedAt = time.Now().Add(-25 * time.Hour).Unix()
	if err := store.Save(context.Background(), sess, 24*time.Hour); err == nil {
		t.Fatal("expected error saving a session past its lifetime")
	}
}

func TestGetAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "ghost", 24*time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetLazyLifetimeBackstop(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Seed a record whose CreatedAt is past the lifetime but whose Redis TTL
	// has not fired, to exercise the age check on read.
	sess := newTestSession("s1")
	sess.CreatedAt = time.Now().Add(-25 * time.Hour).Unix()
	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := mr.Set("sess:s1", string(encoded)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := store.Get(ctx, "s1", 24*time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if mr.Exists("sess:s1") {
		t.Fatal("stale session not deleted on read")
	}
}

func TestTouchAdvancesLastValidatedAt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1")
	sess.LastValidatedAt = time.Now().Add(-time.Hour).Unix()
	if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	before := sess.LastValidatedAt
	if err := store.Touch(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if sess.LastValidatedAt <= before {
		t.Fatalf("LastValidatedAt not advanced: %d -> %d", before, sess.LastValidatedAt)
	}

	got, err := store.Get(ctx, "s1", 24*time.Hour)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.LastValidatedAt != sess.LastValidatedAt {
		t.Fatalf("touched timestamp not persisted: %d vs %d", got.LastValidatedAt, sess.LastValidatedAt)
	}
}

func TestTouchNeverExtendsPastLifetime(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1")
	sess.CreatedAt = time.Now().Add(-23 * time.Hour).Unix()
	if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.Touch(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	ttl := mr.TTL("sess:s1")
	if ttl > time.Hour {
		t.Fatalf("touch extended ttl past remaining lifetime: %v", ttl)
	}
}

func TestTouchExpiredSessionDeletes(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1")
	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := mr.Set("sess:s1", string(encoded)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sess.CreatedAt = time.Now().Add(-25 * time.Hour).Unix()
	if err := store.Touch(ctx, sess, 24*time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if mr.Exists("sess:s1") {
		t.Fatal("expired session not deleted on touch")
	}
}

func TestTouchDoesNotResurrectDeletedSession(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1")
	if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Get(ctx, "s1", 24*time.Hour)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// A logout or conflict supersession lands between the read and the
	// touch. The touch must lose: invalidation is terminal.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := store.Touch(ctx, got, 24*time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if mr.Exists("sess:s1") {
		t.Fatal("touch re-created the deleted session")
	}
	if _, err := store.Get(ctx, "s1", 24*time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("deleted session came back: %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, newTestSession("s1"), 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mr.Exists("sess:s1") {
		t.Fatal("session survived delete")
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}

func TestConflictJournalAppendAndRead(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := &DeviceConflict{
		ID:         "c1",
		UserID:     "user-1",
		OldDevice:  "fp-abc",
		NewDevice:  "fp-xyz",
		IPAddress:  "203.0.113.9",
		UserAgent:  "field-app/2.1",
		DetectedAt: time.Now().Unix(),
	}
	second := &DeviceConflict{
		ID:         "c2",
		UserID:     "user-1",
		OldDevice:  "fp-xyz",
		NewDevice:  "fp-123",
		DetectedAt: time.Now().Unix() + 1,
	}

	if err := store.AppendConflict(ctx, first); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendConflict(ctx, second); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	conflicts, err := store.Conflicts(ctx, "user-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(conflicts))
	}
	// Oldest first.
	if conflicts[0].ID != "c1" || conflicts[1].ID != "c2" {
		t.Fatalf("journal out of order: %+v", conflicts)
	}
	if conflicts[0].OldDevice != "fp-abc" || conflicts[0].NewDevice != "fp-xyz" {
		t.Fatalf("journal entry corrupted: %+v", conflicts[0])
	}
}

func TestConflictsEmptyJournal(t *testing.T) {
	store, _ := newTestStore(t)

	conflicts, err := store.Conflicts(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected empty journal, got %+v", conflicts)
	}
}

func TestConflictJournalsIsolatedPerUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendConflict(ctx, &DeviceConflict{ID: "c1", UserID: "user-1", OldDevice: "a", NewDevice: "b"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	conflicts, err := store.Conflicts(ctx, "user-2")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("journal leaked across users: %+v", conflicts)
	}
}

func TestStoreUnavailableDistinct(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, newTestSession("s1"), 24*time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	mr.Close()

	_, err := store.Get(ctx, "s1", 24*time.Hour)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if errors.Is(err, ErrSessionNotFound) {
		t.Fatal("unavailability conflated with absence")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sess := newTestSession("c2Vzc2lvbg")

	encoded, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *decoded != *sess {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, sess)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	encoded, err := Encode(newTestSession("s1"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	encoded[0] = 7
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected version error")
	}
}

func TestDecodeTruncatedInput(t *testing.T) {
	encoded, err := Encode(newTestSession("s1"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := Decode(encoded[:len(encoded)/3]); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestSessionAge(t *testing.T) {
	sess := newTestSession("s1")
	sess.CreatedAt = time.Now().Add(-2 * time.Hour).Unix()

	age := sess.Age(time.Now())
	if age < 2*time.Hour-time.Second || age > 2*time.Hour+time.Second {
		t.Fatalf("unexpected age: %v", age)
	}
}
