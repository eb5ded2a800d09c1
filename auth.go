package authcore

import (
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/throttle"
	"github.com/ArrisFramework/authcore/jwt"
	"github.com/ArrisFramework/authcore/password"
)

// Auth is the façade over credential storage, throttling, and session
// issuance. Construct it through Builder. All methods are safe for
// concurrent use.
type Auth struct {
	config Config

	db    *sqlx.DB
	redis redis.UniversalClient

	users         *store.Users
	confirmations *store.Confirmations
	resets        *store.Resets
	remembered    *store.RememberedTokens

	ledger   throttle.Ledger
	hasher   password.Hasher
	sessions *jwt.Manager

	clock  func() time.Time
	random io.Reader

	// dummyHash is what login verifies against when the email matches no
	// account, so the unknown-email path costs one real verification.
	dummyHash string

	metrics *Metrics
	audit   *auditDispatcher
}

// Close flushes and stops the audit dispatcher. The database and Redis
// handles were supplied by the caller and stay open.
func (a *Auth) Close() {
	if a == nil {
		return
	}
	if a.audit != nil {
		a.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed because the buffer
// was full.
func (a *Auth) AuditDropped() uint64 {
	if a == nil || a.audit == nil {
		return 0
	}
	return a.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (a *Auth) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return a.metrics.Snapshot()
}

func (a *Auth) metricInc(id MetricID) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.Inc(id)
}

func (a *Auth) ready() error {
	if a == nil || a.db == nil || a.hasher == nil || a.sessions == nil || a.ledger == nil {
		return ErrNotReady
	}
	return nil
}

func (a *Auth) now() time.Time {
	return a.clock().UTC()
}

// normalizeEmail lowercases and trims the address. Storage and throttle
// buckets always see the normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts bare addr-spec addresses with a dotted domain. Display
// names, comments, and bare hostnames are rejected even though RFC 5322
// permits them; this matches what signup forms mean by an email address.
func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return true
}

func (a *Auth) validatePassword(pw string) error {
	if len(pw) < a.config.Password.MinLength || len(pw) > a.config.Password.MaxLength {
		return ErrInvalidPassword
	}
	return nil
}
