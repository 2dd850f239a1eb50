package identity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeProfileProvider struct {
	profiles   map[string]RoleProfile
	secrets    map[string][]byte
	failFetch  bool
	fetchCalls atomic.Int64
	secretCall atomic.Int64
}

func newFakeProfileProvider() *fakeProfileProvider {
	return &fakeProfileProvider{
		profiles: make(map[string]RoleProfile),
		secrets:  make(map[string][]byte),
	}
}

func (p *fakeProfileProvider) FetchRoleProfile(_ context.Context, userID string) (RoleProfile, error) {
	p.fetchCalls.Add(1)
	if p.failFetch {
		return RoleProfile{}, errors.New("projection store down")
	}
	profile, ok := p.profiles[userID]
	if !ok {
		return RoleProfile{}, errors.New("profile not found")
	}
	return profile, nil
}

func (p *fakeProfileProvider) FetchMFASecret(_ context.Context, userID string) ([]byte, bool, error) {
	p.secretCall.Add(1)
	if p.failFetch {
		return nil, false, errors.New("projection store down")
	}
	secret, ok := p.secrets[userID]
	return secret, ok, nil
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	default:
	}
}

type testEngine struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	client   *redis.Client
	profiles *fakeProfileProvider
	sink     *captureSink
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*testEngine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := defaultConfig()
	cfg.Audit.BufferSize = 64
	if mutate != nil {
		mutate(&cfg)
	}

	profiles := newFakeProfileProvider()
	sink := newCaptureSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithProfileProvider(profiles).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	te := &testEngine{
		engine:   engine,
		redis:    mr,
		client:   client,
		profiles: profiles,
		sink:     sink,
	}

	return te, func() {
		engine.Close()
		_ = client.Close()
		mr.Close()
	}
}

// killRedis severs the backing store so storage-failure paths can be
// exercised. The client keeps its address but every command errors.
func (te *testEngine) killRedis() {
	te.redis.Close()
}
