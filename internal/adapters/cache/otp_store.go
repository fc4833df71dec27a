package cache

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OTPStore issues and verifies one-time codes in Redis, keyed by phone
// number. Verification consumes the code atomically with GETDEL, so a code
// can never be replayed.
type OTPStore struct {
	client *redis.Client
	logger zerolog.Logger
}

type OTPStoreParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewOTPStore creates a new OTP store
func NewOTPStore(params OTPStoreParams) *OTPStore {
	return &OTPStore{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "otp_store").Logger(),
	}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:bid:%s", phone)
}

// Issue generates a six-digit code bound to the phone number. Reissuing
// replaces any outstanding code.
func (s *OTPStore) Issue(ctx context.Context, phone string, ttl time.Duration) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := s.client.Set(ctx, otpKey(phone), code, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}
	return code, nil
}

// Verify consumes the outstanding code for the phone number and reports
// whether it matched. A missing, expired or mismatched code returns false;
// either way the stored code is gone afterwards.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	stored, err := s.client.GetDel(ctx, otpKey(phone)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to read OTP: %w", err)
	}
	return stored == code, nil
}
