package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie the web client stores its access token in.
const SessionCookie = "sb-access-token"

var (
	// ErrNoToken indicates the request carried no access token
	ErrNoToken = errors.New("no access token")
	// ErrInvalidToken indicates a token that failed verification
	ErrInvalidToken = errors.New("invalid access token")
)

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Claims are the Supabase access-token claims used by the API.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens signed with the project JWT secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Configured reports whether a secret is set. Without one every token is rejected.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

// Verify parses token and returns its user.
func (v *Verifier) Verify(token string) (*User, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if !v.Configured() {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Issue signs a token for user valid for ttl. The mock login route and
// tests use it; production tokens come from Supabase.
func (v *Verifier) Issue(user User, ttl time.Duration) (string, error) {
	if !v.Configured() {
		return "", errors.New("jwt secret not configured")
	}
	now := v.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// BearerToken returns the Authorization bearer token, if any.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type contextKey struct{}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(contextKey{}).(*User)
	return user
}

// IsAdmin reports whether the user's email is in admins (lowercased).
func IsAdmin(user *User, admins []string) bool {
	if user == nil || user.Email == "" {
		return false
	}
	email := strings.ToLower(user.Email)
	for _, a := range admins {
		if a == email {
			return true
		}
	}
	return false
}
