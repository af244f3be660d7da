package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/redis/go-redis/v9"
)

const (
	challengeRecordVersion1 = 1
	challengeMaxRetries     = 4
)

var errChallengeCorrupt = errors.New("invalid challenge record")

// RedisChallengeStore keeps challenges in Redis under prefix:challengeID.
type RedisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisChallengeStore.
type RedisOption func(*RedisChallengeStore)

// WithRedisClock overrides the clock used for ExpiresAt. Key TTLs are still
// enforced by Redis.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisChallengeStore) {
		s.now = now
	}
}

// NewRedisChallengeStore returns a store using prefix, "gac" when empty.
func NewRedisChallengeStore(redisClient redis.UniversalClient, prefix string, opts ...RedisOption) *RedisChallengeStore {
	if prefix == "" {
		prefix = "gac"
	}
	s := &RedisChallengeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *RedisChallengeStore) Set(ctx context.Context, c *otp.Challenge, ttl time.Duration) error {
	if c == nil || c.ID == "" {
		return otp.ErrChallengeNotFound
	}
	stored := *c
	stored.ExpiresAt = s.now().Add(ttl)

	encoded, err := encodeChallenge(&stored)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(c.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, id string) (*otp.Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, otp.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}

	c, err := decodeChallenge(id, data)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(c.ExpiresAt) {
		_, _ = s.redis.Del(ctx, s.key(id)).Result()
		return nil, otp.ErrChallengeNotFound
	}
	return c, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisChallengeStore) Attempt(
	ctx context.Context,
	id string,
	submitted [32]byte,
	maxAttempts int,
) (*otp.Challenge, error) {
	key := s.key(id)

	for i := 0; i < challengeMaxRetries; i++ {
		var matched *otp.Challenge

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			c, err := decodeChallenge(id, data)
			if err != nil {
				return err
			}

			ttl := c.ExpiresAt.Sub(s.now())
			if ttl <= 0 {
				if err := deleteInTx(ctx, tx, key); err != nil {
					return err
				}
				return otp.ErrChallengeNotFound
			}

			if c.Attempts >= maxAttempts {
				if err := deleteInTx(ctx, tx, key); err != nil {
					return err
				}
				return otp.ErrAttemptsExhausted
			}

			if subtle.ConstantTimeCompare(c.OTPHash[:], submitted[:]) == 1 {
				if err := deleteInTx(ctx, tx, key); err != nil {
					return err
				}
				matched = c
				return nil
			}

			c.Attempts++
			updated, err := encodeChallenge(c)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			return otp.ErrOTPMismatch
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, otp.ErrChallengeNotFound
			case errors.Is(err, otp.ErrChallengeNotFound),
				errors.Is(err, otp.ErrOTPMismatch),
				errors.Is(err, otp.ErrAttemptsExhausted),
				errors.Is(err, errChallengeCorrupt):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
			}
		}
		return matched, nil
	}

	// contention did not settle within the retry budget
	return nil, fmt.Errorf("%w: challenge contention", otp.ErrStoreUnavailable)
}

func deleteInTx(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func encodeChallenge(c *otp.Challenge) ([]byte, error) {
	if c.Attempts < 0 || c.Attempts > 65535 {
		return nil, errors.New("challenge attempts out of range")
	}
	if len(c.UserID) > 65535 {
		return nil, errors.New("challenge user id length exceeded")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + 8 + 8 + 32 + 2 + len(c.UserID))
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, uint16(c.Attempts)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	buf.Write(c.OTPHash[:])
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(c.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(c.UserID)

	return buf.Bytes(), nil
}

func decodeChallenge(id string, data []byte) (*otp.Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != challengeRecordVersion1 {
		return nil, errChallengeCorrupt
	}

	var (
		attempts  uint16
		createdMS int64
		expiresMS int64
		userLen   uint16
	)
	c := &otp.Challenge{ID: id}
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return nil, errChallengeCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &createdMS); err != nil {
		return nil, errChallengeCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresMS); err != nil {
		return nil, errChallengeCorrupt
	}
	if _, err := io.ReadFull(reader, c.OTPHash[:]); err != nil {
		return nil, errChallengeCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, errChallengeCorrupt
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, errChallengeCorrupt
	}

	c.UserID = string(user)
	c.Attempts = int(attempts)
	c.CreatedAt = time.UnixMilli(createdMS)
	c.ExpiresAt = time.UnixMilli(expiresMS)
	return c, nil
}
