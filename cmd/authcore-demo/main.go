// Command authcore-demo walks one account through the full credential
// lifecycle against a local database: register, confirm, log in, remember,
// throttle, recover. It prints the audit stream as JSON lines and finishes
// with a Prometheus rendering of the collected metrics.
//
// Configuration comes from the environment; every variable has a usable
// default, so running it with none set exercises an in-memory SQLite
// database with an ephemeral session secret.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"

	"github.com/ArrisFramework/authcore"
	"github.com/ArrisFramework/authcore/internal/migrate"
	"github.com/ArrisFramework/authcore/metrics/export/prometheus"
	"github.com/ArrisFramework/authcore/roles"
)

type demoConfig struct {
	DatabaseDSN   string `env:"AUTHCORE_DB_DSN, default=file:authcore-demo?mode=memory&cache=shared"`
	TablePrefix   string `env:"AUTHCORE_TABLE_PREFIX, default=demo_"`
	SessionSecret string `env:"AUTHCORE_SESSION_SECRET"`
	RedisAddr     string `env:"AUTHCORE_REDIS_ADDR"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	var cfg demoConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := migrate.Up(ctx, db.DB, migrate.Options{
		Dialect: migrate.DialectSQLite,
		Prefix:  cfg.TablePrefix,
	}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "dsn", cfg.DatabaseDSN, "prefix", cfg.TablePrefix)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		logger.Info("using ephemeral session secret; set AUTHCORE_SESSION_SECRET to persist sessions across runs")
	}

	authCfg := authcore.DefaultConfig()
	authCfg.Storage.TablePrefix = cfg.TablePrefix
	authCfg.Session.Secret = secret
	authCfg.Session.Issuer = "authcore-demo"
	authCfg.Audit.Enabled = true
	authCfg.Metrics.Enabled = true

	builder := authcore.New().
		WithConfig(authCfg).
		WithDatabase(db).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)

	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		defer client.Close()
		builder = builder.WithRedisThrottle(client)
		logger.Info("throttle ledger on redis", "addr", cfg.RedisAddr)
	}

	auth, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build auth: %w", err)
	}
	defer auth.Close()

	report := auth.SecurityReport()
	logger.Info("security posture",
		"signing", report.SigningAlgorithm,
		"session_ttl", report.SessionTTL,
		"throttle", report.ThrottleBackend,
		"argon2_memory_kb", report.Argon2.Memory,
	)

	ctx = authcore.WithClientIP(ctx, "203.0.113.10")

	const (
		email    = "alice@example.com"
		password = "correct horse battery staple"
	)

	reg, err := auth.Register(ctx, authcore.RegisterRequest{
		Email:    email,
		Password: password,
		Username: "alice",
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	logger.Info("registered", "user_id", reg.UserID, "confirm_selector", reg.Confirmation.Selector)

	// Login before confirmation is refused even with correct credentials.
	_, err = auth.Login(ctx, authcore.LoginRequest{Email: email, Password: password})
	if !errors.Is(err, authcore.ErrEmailNotVerified) {
		return fmt.Errorf("expected pending-verification refusal, got: %v", err)
	}
	logger.Info("login refused pending verification, as expected")

	confirmed, err := auth.ConfirmEmail(ctx, reg.Confirmation.Selector, reg.Confirmation.Token)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	logger.Info("email confirmed", "user_id", confirmed.UserID, "email", confirmed.Email)

	login, err := auth.Login(ctx, authcore.LoginRequest{Email: email, Password: password, Remember: true})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("logged in",
		"user_id", login.Session.UserID,
		"expires", login.Session.ExpiresAt.Format(time.RFC3339),
	)

	session, err := auth.ValidateSession(ctx, login.SessionToken, authcore.ModeCurrent)
	if err != nil {
		return fmt.Errorf("validate session: %w", err)
	}
	logger.Info("session validated", "user_id", session.UserID, "roles", session.Roles.String())

	if err := auth.AddRoleForUserByID(ctx, reg.UserID, roles.Moderator); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	has, err := auth.DoesUserHaveRole(ctx, reg.UserID, roles.Moderator)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	logger.Info("role granted", "role", roles.Moderator.String(), "held", has)

	rotated, err := auth.LoginWithRememberToken(ctx, login.RememberToken)
	if err != nil {
		return fmt.Errorf("remember login: %w", err)
	}
	logger.Info("remember token redeemed and rotated", "roles", rotated.Session.Roles.String())

	// Hammer the login with a wrong password until the throttle bites.
	var tooMany *authcore.TooManyRequestsError
	for i := 0; ; i++ {
		_, err = auth.Login(ctx, authcore.LoginRequest{Email: email, Password: "wrong-password"})
		if errors.As(err, &tooMany) {
			logger.Info("throttle engaged",
				"failed_attempts", i,
				"retry_after_seconds", tooMany.RetryAfterSeconds(),
			)
			break
		}
		if !errors.Is(err, authcore.ErrInvalidPassword) {
			return fmt.Errorf("expected invalid password, got: %v", err)
		}
		if i > 50 {
			return errors.New("throttle never engaged")
		}
	}

	// The correct password is also refused while the cooldown runs.
	_, err = auth.Login(ctx, authcore.LoginRequest{Email: email, Password: password})
	if !errors.Is(err, authcore.ErrTooManyRequests) {
		return fmt.Errorf("expected cooldown to hold, got: %v", err)
	}
	logger.Info("cooldown holds for correct password too")

	health := auth.Health(ctx)
	logger.Info("health",
		"database", health.DatabaseAvailable,
		"database_latency", health.DatabaseLatency,
		"throttle", health.ThrottleAvailable,
	)

	fmt.Println(prometheus.NewExporter(auth).Render())
	return nil
}
