package auth_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/auth"
	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/store"
)

func init() {
	obs.MustRegisterDomainMetrics("resto", prometheus.NewRegistry())
}

type captureDispatcher struct {
	to   []string
	body []string
}

func (d *captureDispatcher) DispatchSMS(_ context.Context, to, body string) error {
	d.to = append(d.to, to)
	d.body = append(d.body, body)
	return nil
}

type fakeUsers struct {
	byEmail map[string]store.User
}

func (f *fakeUsers) EnsureByPhone(_ context.Context, phone string) (store.User, error) {
	return store.User{ID: "u-1", Phone: phone, Role: "customer"}, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func newOTP(t *testing.T) (*auth.OTP, *captureDispatcher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens, err := auth.NewTokens(auth.TokensConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	dispatcher := &captureDispatcher{}
	otp := &auth.OTP{
		Redis:       client,
		Dispatcher:  dispatcher,
		Users:       &fakeUsers{},
		Tokens:      tokens,
		TTL:         2 * time.Minute,
		MaxAttempts: 3,
	}
	return otp, dispatcher, mr
}

func TestOTPRequestVerifyFlow(t *testing.T) {
	otp, dispatcher, _ := newOTP(t)
	ctx := context.Background()

	require.NoError(t, otp.Request(ctx, "09123456789"))
	require.Len(t, dispatcher.to, 1)
	require.Equal(t, "+989123456789", dispatcher.to[0])

	code := codeRe.FindString(dispatcher.body[0])
	require.Len(t, code, 6)

	user, token, expiresAt, err := otp.Verify(ctx, "09123456789", code)
	require.NoError(t, err)
	require.Equal(t, "+989123456789", user.Phone)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := otp.Tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "customer", claims.Role)
}

func TestOTPRequestThrottlesResend(t *testing.T) {
	otp, _, _ := newOTP(t)
	ctx := context.Background()

	require.NoError(t, otp.Request(ctx, "09123456789"))
	err := otp.Request(ctx, "09123456789")
	require.Error(t, err)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "OTP_THROTTLED", appErr.Code)
}

func TestOTPVerifyWrongCodeCountsAttempts(t *testing.T) {
	otp, dispatcher, _ := newOTP(t)
	ctx := context.Background()

	require.NoError(t, otp.Request(ctx, "09123456789"))
	code := codeRe.FindString(dispatcher.body[0])

	for i := 0; i < 3; i++ {
		_, _, _, err := otp.Verify(ctx, "09123456789", "000000")
		appErr := common.AsAppError(err)
		require.NotNil(t, appErr)
		require.Equal(t, "OTP_INVALID", appErr.Code)
	}

	// attempt budget exhausted, even the right code is refused now
	_, _, _, err := otp.Verify(ctx, "09123456789", code)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "OTP_LOCKED", appErr.Code)
}

func TestOTPVerifyExpiredCode(t *testing.T) {
	otp, dispatcher, mr := newOTP(t)
	ctx := context.Background()

	require.NoError(t, otp.Request(ctx, "09123456789"))
	code := codeRe.FindString(dispatcher.body[0])

	mr.FastForward(3 * time.Minute)

	_, _, _, err := otp.Verify(ctx, "09123456789", code)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "OTP_EXPIRED", appErr.Code)
}

func TestOTPRejectsMalformedPhone(t *testing.T) {
	otp, _, _ := newOTP(t)

	err := otp.Request(context.Background(), "12345")
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "VALIDATION", appErr.Code)
}
