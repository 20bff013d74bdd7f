package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/store"
)

const (
	defaultOTPTTL      = 2 * time.Minute
	defaultMaxAttempts = 5
	resendCooldown     = 60 * time.Second
)

// SMSDispatcher hands a one-time code off for delivery. The worker queue
// implements it in production, tests use an in-process sender.
type SMSDispatcher interface {
	DispatchSMS(ctx context.Context, to, body string) error
}

// Users is the account surface the OTP flow needs.
type Users interface {
	EnsureByPhone(ctx context.Context, phone string) (store.User, error)
	GetByEmail(ctx context.Context, email string) (store.User, error)
}

// OTP drives the phone login flow. Codes are stored hashed in Redis with
// a short TTL, alongside an attempt counter and a resend cooldown.
type OTP struct {
	Redis       *redis.Client
	Dispatcher  SMSDispatcher
	Users       Users
	Tokens      *Tokens
	TTL         time.Duration
	MaxAttempts int
}

func (o *OTP) ttl() time.Duration {
	if o.TTL <= 0 {
		return defaultOTPTTL
	}
	return o.TTL
}

func (o *OTP) maxAttempts() int {
	if o.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return o.MaxAttempts
}

func codeKey(phone string) string     { return "otp:code:" + phone }
func attemptsKey(phone string) string { return "otp:attempts:" + phone }
func cooldownKey(phone string) string { return "otp:cooldown:" + phone }

// Request issues a fresh code for the phone number and dispatches it via
// SMS. Requests inside the resend cooldown are rejected.
func (o *OTP) Request(ctx context.Context, rawPhone string) error {
	phone, ok := common.NormalizePhone(rawPhone)
	if !ok {
		obs.OTPIssuedTotal.WithLabelValues("invalid_phone").Inc()
		return common.NewAppError("VALIDATION", "invalid phone number", http.StatusUnprocessableEntity, nil)
	}

	set, err := o.Redis.SetNX(ctx, cooldownKey(phone), "1", resendCooldown).Result()
	if err != nil {
		return fmt.Errorf("otp cooldown: %w", err)
	}
	if !set {
		obs.OTPIssuedTotal.WithLabelValues("throttled").Inc()
		return common.NewAppError("OTP_THROTTLED", "code already sent, retry shortly", http.StatusTooManyRequests, nil)
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	pipe := o.Redis.TxPipeline()
	pipe.Set(ctx, codeKey(phone), common.Sha256Hex(code), o.ttl())
	pipe.Set(ctx, attemptsKey(phone), 0, o.ttl())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := o.Dispatcher.DispatchSMS(ctx, phone, "Your Sofreh login code: "+code); err != nil {
		obs.OTPIssuedTotal.WithLabelValues("dispatch_error").Inc()
		return fmt.Errorf("dispatch otp: %w", err)
	}
	obs.OTPIssuedTotal.WithLabelValues("issued").Inc()
	return nil
}

// Verify checks the submitted code and, on success, ensures an account
// exists for the phone number and returns a signed session token.
func (o *OTP) Verify(ctx context.Context, rawPhone, code string) (store.User, string, time.Time, error) {
	phone, ok := common.NormalizePhone(rawPhone)
	if !ok {
		return store.User{}, "", time.Time{}, common.NewAppError("VALIDATION", "invalid phone number", http.StatusUnprocessableEntity, nil)
	}

	stored, err := o.Redis.Get(ctx, codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return store.User{}, "", time.Time{}, common.NewAppError("OTP_EXPIRED", "code expired or never issued", http.StatusUnauthorized, nil)
	}
	if err != nil {
		return store.User{}, "", time.Time{}, fmt.Errorf("load otp: %w", err)
	}

	attempts, err := o.Redis.Incr(ctx, attemptsKey(phone)).Result()
	if err != nil {
		return store.User{}, "", time.Time{}, fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts > int64(o.maxAttempts()) {
		o.Redis.Del(ctx, codeKey(phone), attemptsKey(phone))
		return store.User{}, "", time.Time{}, common.NewAppError("OTP_LOCKED", "too many attempts, request a new code", http.StatusTooManyRequests, nil)
	}

	if subtle.ConstantTimeCompare([]byte(common.Sha256Hex(code)), []byte(stored)) != 1 {
		return store.User{}, "", time.Time{}, common.NewAppError("OTP_INVALID", "incorrect code", http.StatusUnauthorized, nil)
	}

	o.Redis.Del(ctx, codeKey(phone), attemptsKey(phone), cooldownKey(phone))

	user, err := o.Users.EnsureByPhone(ctx, phone)
	if err != nil {
		return store.User{}, "", time.Time{}, fmt.Errorf("ensure user: %w", err)
	}
	token, expiresAt, err := o.Tokens.Sign(user.ID, user.Role)
	if err != nil {
		return store.User{}, "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return user, token, expiresAt, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
