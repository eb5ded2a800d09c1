package authcore

import (
	"errors"
	"time"
)

// Config is the construction-time tuning surface. Values are deep-copied by
// Build and treated as immutable afterwards.
type Config struct {
	Storage  StorageConfig
	Throttle ThrottleConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Session  SessionConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the tables. Both values end up concatenated into SQL,
// so Validate restricts them to plain identifier characters.
type StorageConfig struct {
	// TablePrefix prepends every table name: a prefix of "app_" yields
	// app_users, app_users_throttling, and so on.
	TablePrefix string
	// SchemaName qualifies table names on PostgreSQL. Empty uses the
	// connection's default search path. Ignored by SQLite.
	SchemaName string
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig tunes the shared backoff policy applied to every guarded
// action. MaxAttempts failures within Window are free; the MaxAttempts-th
// starts a cooldown of BaseDelay that doubles per further attempt up to
// MaxCooldown.
type ThrottleConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxCooldown time.Duration
	Window      time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets the lifetime of each selector/token kind.
type TokenConfig struct {
	ConfirmationTTL time.Duration
	ResetTTL        time.Duration
	RememberTTL     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig bounds accepted passwords and tunes the Argon2id hasher.
type PasswordConfig struct {
	MinLength int
	MaxLength int

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// UpgradeOnLogin rehashes a verified password whose stored hash uses
	// weaker parameters or the legacy bcrypt format.
	UpgradeOnLogin bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the signed session assertions.
type SessionConfig struct {
	TTL      time.Duration
	Secret   []byte // HS256 key, at least 32 bytes
	Issuer   string
	Audience string
	Leeway   time.Duration

	// KeyID and VerifyKeys support secret rotation: tokens are signed under
	// KeyID while every entry in VerifyKeys still validates.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the hardening knobs that cut across operations.
type SecurityConfig struct {
	// ProductionMode tightens Validate: short session TTLs, full-strength
	// hashing parameters, and a minimum password length.
	ProductionMode bool

	// EnumerationDelayMin/Max bound the random pause inserted when a reset
	// or confirmation request names an address that has no account, keeping
	// its latency in line with the full code path.
	EnumerationDelayMin time.Duration
	EnumerationDelayMax time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking operations when the
	// buffer is full. Drops are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the starting point most deployments tune from. The
// session secret is deliberately absent and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			TablePrefix: "",
			SchemaName:  "",
		},
		Throttle: ThrottleConfig{
			MaxAttempts: 5,
			BaseDelay:   30 * time.Second,
			MaxCooldown: 1 * time.Hour,
			Window:      1 * time.Hour,
		},
		Tokens: TokenConfig{
			ConfirmationTTL: 24 * time.Hour,
			ResetTTL:        6 * time.Hour,
			RememberTTL:     28 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			MinLength:      8,
			MaxLength:      1024,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			TTL:    15 * time.Minute,
			Issuer: "authcore",
			Leeway: 30 * time.Second,
		},
		Security: SecurityConfig{
			ProductionMode:      false,
			EnumerationDelayMin: 20 * time.Millisecond,
			EnumerationDelayMax: 40 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.Secret = cloneBytes(cfg.Session.Secret)
	if len(cfg.Session.VerifyKeys) > 0 {
		out.Session.VerifyKeys = make(map[string][]byte, len(cfg.Session.VerifyKeys))
		for kid, key := range cfg.Session.VerifyKeys {
			out.Session.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Build calls it; exported so callers
// can check assembled configurations early.
func (c *Config) Validate() error {
	// Storage
	if !validSQLName(c.Storage.TablePrefix) {
		return errors.New("Storage TablePrefix may contain only letters, digits, and underscores")
	}
	if !validSQLName(c.Storage.SchemaName) {
		return errors.New("Storage SchemaName may contain only letters, digits, and underscores")
	}
	if c.Storage.SchemaName != "" && isDigit(c.Storage.SchemaName[0]) {
		return errors.New("Storage SchemaName must not start with a digit")
	}

	// Throttle
	if c.Throttle.MaxAttempts <= 0 {
		return errors.New("Throttle MaxAttempts must be > 0")
	}
	if c.Throttle.BaseDelay <= 0 {
		return errors.New("Throttle BaseDelay must be > 0")
	}
	if c.Throttle.MaxCooldown < c.Throttle.BaseDelay {
		return errors.New("Throttle MaxCooldown must be >= BaseDelay")
	}
	if c.Throttle.Window <= 0 {
		return errors.New("Throttle Window must be > 0")
	}

	// Tokens
	if c.Tokens.ConfirmationTTL <= 0 {
		return errors.New("Tokens ConfirmationTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}
	if c.Tokens.RememberTTL <= 0 {
		return errors.New("Tokens RememberTTL must be > 0")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("Session Secret must be at least 32 bytes")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}

	// Security
	if c.Security.EnumerationDelayMin < 0 {
		return errors.New("Security EnumerationDelayMin must be >= 0")
	}
	if c.Security.EnumerationDelayMax < c.Security.EnumerationDelayMin {
		return errors.New("Security EnumerationDelayMax must be >= EnumerationDelayMin")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Session.TTL > 1*time.Hour {
			return errors.New("ProductionMode requires Session TTL <= 1h")
		}
		if c.Tokens.RememberTTL > 90*24*time.Hour {
			return errors.New("ProductionMode requires Tokens RememberTTL <= 90d")
		}
		if c.Password.MinLength < 8 {
			return errors.New("ProductionMode requires Password MinLength >= 8")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Security.EnumerationDelayMax <= 0 {
			return errors.New("ProductionMode requires a non-zero enumeration delay")
		}
	}

	return nil
}

func validSQLName(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch == '_':
		case isDigit(ch):
		default:
			return false
		}
	}
	return true
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
