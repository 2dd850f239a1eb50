package identity

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldserve/identity/credential"
	"github.com/fieldserve/identity/session"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the engine's methods are called.
type Builder struct {
	config   Config
	redis    *redis.Client
	profiles ProfileProvider
	sink     AuditSink
	logger   *zap.Logger

	built bool
}

// New returns a Builder preloaded with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared Redis client backing both stores. In a
// multi-process deployment every process must point at the same Redis; the
// single-use guarantee on credentials depends on it.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithProfileProvider sets the external account-projection source.
func (b *Builder) WithProfileProvider(provider ProfileProvider) *Builder {
	b.profiles = provider
	return b
}

// WithAuditSink sets the audit destination. Nil falls back to NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Nil falls back to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the engine. A Builder builds
// exactly once.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile provider is required")
	}
	if err := validateConfig(&b.config); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:      b.config,
		credentials: credential.NewStore(b.redis),
		sessions:    session.NewStore(b.redis, b.config.Session.KeyPrefix),
		profiles:    b.profiles,
		totp:        newTOTPVerifier(b.config.MFA),
		audit:       newAuditDispatcher(b.config.Audit, b.sink),
		logger:      logger,
	}

	if len(b.config.Token.SigningKey) > 0 {
		binder, err := NewTokenBinder(b.config.Token, b.config.Session.AbsoluteLifetime)
		if err != nil {
			return nil, err
		}
		engine.binder = binder
	}

	b.built = true
	return engine, nil
}
