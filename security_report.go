package authcore

import "time"

// SecurityReport summarizes the effective hardening posture of a built Auth
// for startup logs and compliance reviews. It contains no secrets.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	SessionTTL       time.Duration
	RememberTTL      time.Duration
	ConfirmationTTL  time.Duration
	ResetTTL         time.Duration

	Argon2            PasswordConfigReport
	PasswordMinLength int
	UpgradeOnLogin    bool

	ThrottleActive  bool
	ThrottleBackend string

	KeyRotationActive  bool
	EnumerationPadding bool
	AuditActive        bool
	MetricsActive      bool
}

// PasswordConfigReport mirrors the Argon2id cost parameters in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport is safe on a nil receiver and returns the zero report.
func (a *Auth) SecurityReport() SecurityReport {
	if a == nil {
		return SecurityReport{}
	}

	backend := "sql"
	if a.redis != nil {
		backend = "redis"
	}

	return SecurityReport{
		ProductionMode:   a.config.Security.ProductionMode,
		SigningAlgorithm: "HS256",
		SessionTTL:       a.config.Session.TTL,
		RememberTTL:      a.config.Tokens.RememberTTL,
		ConfirmationTTL:  a.config.Tokens.ConfirmationTTL,
		ResetTTL:         a.config.Tokens.ResetTTL,
		Argon2: PasswordConfigReport{
			Memory:      a.config.Password.Memory,
			Time:        a.config.Password.Time,
			Parallelism: a.config.Password.Parallelism,
			SaltLength:  a.config.Password.SaltLength,
			KeyLength:   a.config.Password.KeyLength,
		},
		PasswordMinLength:  a.config.Password.MinLength,
		UpgradeOnLogin:     a.config.Password.UpgradeOnLogin,
		ThrottleActive:     a.config.Throttle.MaxAttempts > 0 && a.config.Throttle.BaseDelay > 0,
		ThrottleBackend:    backend,
		KeyRotationActive:  len(a.config.Session.VerifyKeys) > 0,
		EnumerationPadding: a.config.Security.EnumerationDelayMax > 0,
		AuditActive:        a.config.Audit.Enabled,
		MetricsActive:      a.config.Metrics.Enabled,
	}
}
