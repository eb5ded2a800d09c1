package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ArrisFramework/authcore/internal/migrate"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// testClock lets tests move time past cooldowns and TTLs without sleeping.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testConfig dials the hasher down to its cheapest legal parameters and
// removes the enumeration pause so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnumerationDelayMin = 0
	cfg.Security.EnumerationDelayMax = 0
	return cfg
}

var testDBSeq atomic.Int64

func newTestDB(t *testing.T, prefix string) *sqlx.DB {
	t.Helper()

	name := fmt.Sprintf("authcore_test_%d", testDBSeq.Add(1))
	db, err := sqlx.Connect("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	err = migrate.Up(context.Background(), db.DB, migrate.Options{
		Dialect: migrate.DialectSQLite,
		Prefix:  prefix,
	})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func newTestAuth(t *testing.T, cfg Config) (*Auth, *testClock, *sqlx.DB) {
	t.Helper()

	db := newTestDB(t, cfg.Storage.TablePrefix)
	clock := newTestClock()

	auth, err := New().
		WithConfig(cfg).
		WithDatabase(db).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(auth.Close)

	return auth, clock, db
}

// registerActiveUser creates and confirms an account, returning its id.
func registerActiveUser(t *testing.T, auth *Auth, email, pw string) int64 {
	t.Helper()

	ctx := context.Background()
	reg, err := auth.Register(ctx, RegisterRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := auth.ConfirmEmail(ctx, reg.Confirmation.Selector, reg.Confirmation.Token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	return reg.UserID
}

func TestBuildRequiresDatabase(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected Build to fail without a database")
	}
}

func TestBuildRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Secret = []byte("too-short")

	db := newTestDB(t, "")
	_, err := New().WithConfig(cfg).WithDatabase(db).Build()
	if err == nil {
		t.Fatal("expected Build to reject a short session secret")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	db := newTestDB(t, "")
	b := New().WithConfig(testConfig()).WithDatabase(db)

	auth, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer auth.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build on the same builder to fail")
	}
}

func TestNilAuthReportsNotReady(t *testing.T) {
	var auth *Auth
	ctx := context.Background()

	if _, err := auth.Login(ctx, LoginRequest{Email: "a@example.com", Password: "x"}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady from Login, got %v", err)
	}
	if _, err := auth.ValidateSession(ctx, "token", ModeLocal); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady from ValidateSession, got %v", err)
	}
	if _, err := auth.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "x"}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady from Register, got %v", err)
	}

	// Introspection degrades instead of erroring.
	health := auth.Health(ctx)
	if health.DatabaseAvailable || health.ThrottleAvailable {
		t.Fatal("expected nil auth to report unavailable backends")
	}
	auth.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())

	auth.Close()
	auth.Close()
}

func TestConfigCopiedAtBuild(t *testing.T) {
	cfg := testConfig()
	secret := make([]byte, 32)
	copy(secret, testSecret)
	cfg.Session.Secret = secret

	auth, _, _ := newTestAuth(t, cfg)

	// Mutating the caller's secret after Build must not affect issued
	// sessions.
	for i := range secret {
		secret[i] = 0
	}

	userID := registerActiveUser(t, auth, "copy@example.com", "correct horse battery")
	res, err := auth.Login(context.Background(), LoginRequest{
		Email:    "copy@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	session, err := auth.ValidateSession(context.Background(), res.SessionToken, ModeLocal)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if session.UserID != userID {
		t.Fatalf("expected user %d, got %d", userID, session.UserID)
	}
}

func TestHealthReportsSQLBackends(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())

	health := auth.Health(context.Background())
	if !health.DatabaseAvailable {
		t.Fatal("expected database to be available")
	}
	if !health.ThrottleAvailable {
		t.Fatal("expected throttle ledger to be available")
	}
}

func TestHealthDegradesWhenDatabaseGone(t *testing.T) {
	auth, _, db := newTestAuth(t, testConfig())

	_ = db.Close()

	health := auth.Health(context.Background())
	if health.DatabaseAvailable {
		t.Fatal("expected database to be unavailable after close")
	}
	if health.ThrottleAvailable {
		t.Fatal("expected SQL-backed throttle to follow the database down")
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	auth, _, _ := newTestAuth(t, cfg)

	report := auth.SecurityReport()
	if report.SigningAlgorithm != "HS256" {
		t.Fatalf("expected HS256, got %s", report.SigningAlgorithm)
	}
	if report.SessionTTL != cfg.Session.TTL {
		t.Fatalf("expected session TTL %s, got %s", cfg.Session.TTL, report.SessionTTL)
	}
	if !report.ThrottleActive {
		t.Fatal("expected throttling to be reported active")
	}
	if report.ThrottleBackend != "sql" {
		t.Fatalf("expected sql throttle backend, got %s", report.ThrottleBackend)
	}
	if report.EnumerationPadding {
		t.Fatal("expected enumeration padding to be off with zero delay")
	}
	if !report.MetricsActive {
		t.Fatal("expected metrics to be reported active")
	}
	if report.Argon2.Memory != cfg.Password.Memory {
		t.Fatalf("expected argon2 memory %d, got %d", cfg.Password.Memory, report.Argon2.Memory)
	}
}
