package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyOTP         = "otp:"
	keyOTPVerified = "otp:verified:"
	keyReset       = "reset:"
)

// CodeStore keeps OTP codes, OTP verification marks and password reset tokens in Redis with TTLs.
type CodeStore struct {
	client *redis.Client
}

// NewCodeStore creates a Redis-backed code store.
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SaveOTP stores code for email, replacing any earlier code.
func (s *CodeStore) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, keyOTP+normEmail(email), code, ttl).Err()
}

// ConsumeOTP reports whether code matches the stored OTP for email. A matching code is deleted.
func (s *CodeStore) ConsumeOTP(ctx context.Context, email, code string) (bool, error) {
	key := keyOTP + normEmail(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get otp: %w", err)
	}
	if stored != code {
		return false, nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return true, nil
}

// MarkVerified records that email passed OTP verification.
func (s *CodeStore) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	return s.client.Set(ctx, keyOTPVerified+normEmail(email), "1", ttl).Err()
}

// IsVerified reports whether email passed OTP verification within its TTL.
func (s *CodeStore) IsVerified(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Exists(ctx, keyOTPVerified+normEmail(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check otp verification: %w", err)
	}
	return n > 0, nil
}

// ClearVerified removes the verification mark once it has been used.
func (s *CodeStore) ClearVerified(ctx context.Context, email string) error {
	return s.client.Del(ctx, keyOTPVerified+normEmail(email)).Err()
}

// SaveResetToken maps token to email for ttl.
func (s *CodeStore) SaveResetToken(ctx context.Context, token, email string, ttl time.Duration) error {
	return s.client.Set(ctx, keyReset+token, normEmail(email), ttl).Err()
}

// ResetEmail returns the email a reset token was issued for, or "" when it is unknown or expired.
func (s *CodeStore) ResetEmail(ctx context.Context, token string) (string, error) {
	email, err := s.client.Get(ctx, keyReset+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get reset token: %w", err)
	}
	return email, nil
}

// DeleteResetToken invalidates a used token.
func (s *CodeStore) DeleteResetToken(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyReset+token).Err()
}

// NewOTPCode returns a random 6-digit code.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewResetToken returns a random 64-character hex token.
func NewResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
