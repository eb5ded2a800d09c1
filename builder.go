package authcore

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/throttle"
	"github.com/ArrisFramework/authcore/jwt"
	"github.com/ArrisFramework/authcore/password"
)

// Builder assembles an Auth instance. A builder is single-use: Build succeeds
// at most once.
type Builder struct {
	config Config

	db    *sqlx.DB
	redis redis.UniversalClient

	auditSink AuditSink
	hasher    password.Hasher
	clock     func() time.Time
	random    io.Reader

	built bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDatabase supplies the SQL handle backing users, tokens, and throttling.
// Required.
func (b *Builder) WithDatabase(db *sqlx.DB) *Builder {
	b.db = db
	return b
}

// WithRedisThrottle moves the throttle ledger from SQL onto Redis. User and
// token storage stay on the database.
func (b *Builder) WithRedisThrottle(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink receives a copy of every security-relevant event. The sink is
// only consulted when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Tests use this to step expiry
// deterministically.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithRandom overrides the entropy source used for selectors, tokens, and
// salts. Tests use this for reproducible token values.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithHasher swaps the password hasher. The default is Argon2id built from
// Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles login latency histograms. Implies nothing
// about counters; enable those separately.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the facade.
func (b *Builder) Build() (*Auth, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.db == nil {
		return nil, errors.New("database required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	random := b.random
	if random == nil {
		random = rand.Reader
	}

	// -------- STORAGE --------
	tables := store.NewTables(cfg.Storage.SchemaName, cfg.Storage.TablePrefix)

	a := &Auth{
		config:        cfg,
		db:            b.db,
		redis:         b.redis,
		users:         store.NewUsers(tables),
		confirmations: store.NewConfirmations(tables),
		resets:        store.NewResets(tables),
		remembered:    store.NewRememberedTokens(tables),
		clock:         clock,
		random:        random,
	}

	// -------- THROTTLE LEDGER --------
	policy := throttle.Policy{
		MaxAttempts: cfg.Throttle.MaxAttempts,
		BaseDelay:   cfg.Throttle.BaseDelay,
		MaxCooldown: cfg.Throttle.MaxCooldown,
		Window:      cfg.Throttle.Window,
	}
	if b.redis != nil {
		a.ledger = throttle.NewRedisLedger(b.redis, policy, clock)
	} else {
		a.ledger = throttle.NewSQLLedger(b.db, tables.Throttling, policy, clock)
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MaxPasswordBytes: cfg.Password.MaxLength,
		}, random)
		if err != nil {
			return nil, err
		}
		hasher = ph
	}
	a.hasher = hasher

	// Hashing a fixed input once gives login a verification target when the
	// email matches no account, keeping unknown-email latency in line with
	// the real path.
	dummy, err := hasher.Hash("authcore.no-such-account")
	if err != nil {
		return nil, err
	}
	a.dummyHash = dummy

	// -------- SESSION ISSUER --------
	sessions, err := jwt.NewManager(jwt.Config{
		TTL:        cfg.Session.TTL,
		Secret:     cfg.Session.Secret,
		Issuer:     cfg.Session.Issuer,
		Audience:   cfg.Session.Audience,
		Leeway:     cfg.Session.Leeway,
		KeyID:      cfg.Session.KeyID,
		VerifyKeys: cfg.Session.VerifyKeys,
	}, clock)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions

	// -------- OBSERVABILITY --------
	a.metrics = NewMetrics(cfg.Metrics)
	a.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true

	return a, nil
}
