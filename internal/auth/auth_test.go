package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := v.Issue(User{ID: "user-1", Email: "Alice@Example.com", Role: "authenticated"}, time.Hour)
	require.NoError(t, err)

	user, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Alice@Example.com", user.Email)
	assert.Equal(t, "authenticated", user.Role)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier(testSecret)
	other := NewVerifier("a-completely-different-secret-value-0123")

	foreign, err := other.Issue(User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue(User{ID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	noSubject, err := v.Issue(User{Email: "x@example.com"}, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret":    foreign,
		"expired":         expired,
		"missing subject": noSubject,
		"missing exp":     noExp,
		"unexpected alg":  hs512,
		"garbage":         "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = NewVerifier("").Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestUserContext(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))

	u := &User{ID: "u"}
	assert.Same(t, u, UserFromContext(WithUser(context.Background(), u)))
}

func TestIsAdmin(t *testing.T) {
	admins := []string{"ops@example.com"}
	assert.True(t, IsAdmin(&User{Email: "OPS@example.com"}, admins))
	assert.False(t, IsAdmin(&User{Email: "user@example.com"}, admins))
	assert.False(t, IsAdmin(&User{}, admins))
	assert.False(t, IsAdmin(nil, admins))
}

func TestCronAuthorizer(t *testing.T) {
	newReq := func(headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/daily-summary", nil)
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	disabled := NewCronAuthorizer("")
	assert.True(t, disabled.Authorize(newReq(nil)))

	a := NewCronAuthorizer("cron-secret")
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"no credentials", nil, false},
		{"bearer secret", map[string]string{"Authorization": "Bearer cron-secret"}, true},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}, false},
		{"header secret", map[string]string{"X-Cron-Secret": "cron-secret"}, true},
		{"scheduler header", map[string]string{"X-Vercel-Cron": "1"}, true},
		{"scheduler user agent", map[string]string{"User-Agent": "vercel-cron/1.0"}, true},
		{"other user agent", map[string]string{"User-Agent": "curl/8.0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Authorize(newReq(tt.headers)))
		})
	}
}
