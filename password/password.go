package password

import "errors"

// Hasher is the hashing strategy the facade depends on. The default is
// [Argon2]; tests substitute cheaper implementations.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) (bool, error)
}

// ErrUnknownHash marks a stored hash in a format no verify path understands.
var ErrUnknownHash = errors.New("unrecognized password hash format")

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// DefaultMaxPasswordBytes bounds hashing work per call when the
	// configuration does not set its own limit.
	DefaultMaxPasswordBytes = 1024
)

// Config holds the Argon2id parameters. Instances are set once at build time
// and treated as immutable afterwards.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes rejects absurdly long inputs before any key
	// derivation work happens. Zero applies DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultConfig returns the production parameters: 64 MiB memory, three
// passes, two lanes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("password max bytes must be >= 0")
	}
	return nil
}
