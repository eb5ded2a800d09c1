package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

// Config carries the signing material and validation settings. Instances are
// set once at build time and treated as immutable afterwards.
type Config struct {
	// TTL bounds how long an issued assertion validates.
	TTL time.Duration
	// Secret is the HS256 signing key, at least 32 bytes.
	Secret []byte
	Issuer   string
	Audience string
	// Leeway tolerates small clock skew between issuer and verifier.
	Leeway time.Duration
	// MaxFutureIAT rejects tokens claiming to be issued further in the
	// future than clock skew explains. Zero applies a 10 minute default.
	MaxFutureIAT time.Duration

	// KeyID optionally names the signing key in the token header. During
	// secret rotation, VerifyKeys maps every still-accepted key id to its
	// secret; tokens then must carry a known kid.
	KeyID      string
	VerifyKeys map[string][]byte
}

// SessionClaims is the wire shape of a session assertion. The subject holds
// the user id in decimal.
type SessionClaims struct {
	RolesMask     int64 `json:"rls"`
	Status        uint8 `json:"sts"`
	LogoutVersion int64 `json:"slv"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid subject claim")
	}
	return id, nil
}

// Manager signs and parses session assertions.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates the configuration. A nil clock falls back to time.Now.
func NewManager(cfg Config, now func() time.Time) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minSecretBytes)
	}

	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < minSecretBytes {
			return nil, fmt.Errorf("verify key for kid %q is too short", kid)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// Issue signs an assertion for the user with the given roles/status snapshot
// and session version.
func (m *Manager) Issue(userID, rolesMask int64, status uint8, logoutVersion int64) (string, error) {
	if userID <= 0 {
		return "", errors.New("invalid user id")
	}

	now := m.now()
	claims := SessionClaims{
		RolesMask:     rolesMask,
		Status:        status,
		LogoutVersion: logoutVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature and registered claims and returns the session
// claims. Expiry errors surface as jwt.ErrTokenExpired for callers to map.
func (m *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, m.verifyKey)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(m.now().Add(m.config.MaxFutureIAT)) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

func (m *Manager) verifyKey(t *jwt.Token) (interface{}, error) {
	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.config.Secret, nil
}
