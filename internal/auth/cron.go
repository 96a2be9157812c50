package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CronAuthorizer guards scheduler-triggered routes with a shared secret.
type CronAuthorizer struct {
	secret string
}

// NewCronAuthorizer creates an authorizer. An empty secret disables the check.
func NewCronAuthorizer(secret string) *CronAuthorizer {
	return &CronAuthorizer{secret: secret}
}

// Enabled reports whether a secret is configured.
func (a *CronAuthorizer) Enabled() bool {
	return a.secret != ""
}

// Authorize accepts requests from the hosting scheduler, or carrying the
// secret as a bearer token or X-Cron-Secret header.
func (a *CronAuthorizer) Authorize(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	if FromScheduler(r) {
		return true
	}
	return a.Matches(BearerToken(r)) || a.Matches(r.Header.Get("X-Cron-Secret"))
}

// Matches compares candidate with the secret in constant time.
func (a *CronAuthorizer) Matches(candidate string) bool {
	if !a.Enabled() || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.secret)) == 1
}

// FromScheduler reports whether the request carries the hosting
// scheduler's headers.
func FromScheduler(r *http.Request) bool {
	if r.Header.Get("X-Vercel-Cron") != "" {
		return true
	}
	return strings.HasPrefix(r.UserAgent(), "vercel-cron/")
}
