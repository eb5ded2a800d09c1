package throttle

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix        = "thr"
	bucketRecordVersionV1 = 1
)

// RedisLedger keeps buckets in Redis for deployments where the throttling
// tables would become the write hotspot. Increments run inside a WATCH
// transaction so concurrent attempts against one bucket never lose a count;
// a failed transaction reloads and retries like the SQL compare-and-swap.
type RedisLedger struct {
	redis  redis.UniversalClient
	policy Policy
	now    func() time.Time
}

func NewRedisLedger(client redis.UniversalClient, policy Policy, now func() time.Time) *RedisLedger {
	if now == nil {
		now = time.Now
	}
	return &RedisLedger{
		redis:  client,
		policy: policy,
		now:    now,
	}
}

func (l *RedisLedger) key(k Key) string {
	return redisKeyPrefix + ":" + k.bucket()
}

// recordTTL covers the longest life a bucket can have: a full window plus the
// maximum cooldown. Expired buckets vanish on their own.
func (l *RedisLedger) recordTTL() time.Duration {
	ttl := l.policy.Window + l.policy.MaxCooldown
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return ttl
}

func (l *RedisLedger) Attempt(ctx context.Context, key Key) (Outcome, error) {
	redisKey := l.key(key)

	for i := 0; i < maxCASRetries; i++ {
		var out Outcome

		err := l.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := l.now()

			data, err := tx.Get(ctx, redisKey).Bytes()
			if errors.Is(err, redis.Nil) {
				state := l.policy.firstAttempt(now)
				encoded := encodeBucketRecord(state)
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, redisKey, encoded, l.recordTTL())
					return nil
				})
				if err != nil {
					return err
				}
				out = Outcome{Allowed: true, Attempts: state.Attempts}
				return nil
			}
			if err != nil {
				return err
			}

			state, err := decodeBucketRecord(data)
			if err != nil {
				return err
			}

			cooldownUntil := time.Unix(state.CooldownUntil, 0)
			if now.Before(cooldownUntil) {
				out = Outcome{
					Allowed:    false,
					RetryAfter: cooldownUntil.Sub(now),
					Attempts:   state.Attempts,
				}
				return nil
			}

			next := l.policy.next(state, now)
			encoded := encodeBucketRecord(next)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, redisKey, encoded, l.recordTTL())
				return nil
			})
			if err != nil {
				return err
			}

			out = Outcome{Allowed: true, Attempts: next.Attempts}
			return nil
		}, redisKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		return out, nil
	}

	return Outcome{}, fmt.Errorf("%w: bucket contention", ErrUnavailable)
}

func (l *RedisLedger) Reset(ctx context.Context, key Key) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func encodeBucketRecord(state bucketState) []byte {
	var buf bytes.Buffer

	buf.WriteByte(bucketRecordVersionV1)
	_ = binary.Write(&buf, binary.BigEndian, uint32(state.Attempts))
	_ = binary.Write(&buf, binary.BigEndian, state.WindowStart)
	_ = binary.Write(&buf, binary.BigEndian, state.CooldownUntil)

	return buf.Bytes()
}

func decodeBucketRecord(data []byte) (bucketState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return bucketState{}, err
	}
	if version != bucketRecordVersionV1 {
		return bucketState{}, errors.New("invalid bucket record version")
	}

	var attempts uint32
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return bucketState{}, err
	}

	state := bucketState{Attempts: int(attempts)}
	if err := binary.Read(reader, binary.BigEndian, &state.WindowStart); err != nil {
		return bucketState{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &state.CooldownUntil); err != nil {
		return bucketState{}, err
	}

	return state, nil
}
