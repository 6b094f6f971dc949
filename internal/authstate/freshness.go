// File: internal/authstate/freshness.go

package authstate

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Freshness summarizes how stale a persisted session looks before it is ever
// injected. The checks are heuristic: a fresh-looking document can still be
// rejected by the portal, and an expired cookie on an unrelated domain does
// not doom the session. Callers use the result to log and to decide whether
// to bother replaying state at all.
type Freshness struct {
	ExpiredCookies []string // names of cookies already past their expiry
	ExpiredTokens  []string // storage entry names holding JWTs past their exp claim
}

// Stale reports whether anything in the document has already expired.
func (f Freshness) Stale() bool {
	return len(f.ExpiredCookies) > 0 || len(f.ExpiredTokens) > 0
}

// CheckFreshness scans a session document for expired cookies and for storage
// values that parse as JWTs with a past exp claim. Token signatures are never
// verified; only the embedded claims are read.
func CheckFreshness(session *Session, now time.Time) Freshness {
	var f Freshness
	for _, c := range session.Cookies {
		if c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now) {
			f.ExpiredCookies = append(f.ExpiredCookies, c.Name)
		}
	}
	for _, origin := range session.Origins {
		for _, e := range origin.LocalStorage {
			if jwtExpired(e.Value, now) {
				f.ExpiredTokens = append(f.ExpiredTokens, e.Name)
			}
		}
		for _, e := range origin.SessionStorage {
			if jwtExpired(e.Value, now) {
				f.ExpiredTokens = append(f.ExpiredTokens, e.Name)
			}
		}
	}
	return f
}

// LogFreshness emits a warning for a stale document so the operator sees why
// a subsequent login prompt is likely.
func LogFreshness(platform string, f Freshness) {
	if !f.Stale() {
		return
	}
	observability.GetLogger().Named("authstate").Warn(
		"Persisted session contains expired credentials, a fresh login may be required.",
		zap.String("platform", platform),
		zap.Strings("expired_cookies", f.ExpiredCookies),
		zap.Strings("expired_tokens", f.ExpiredTokens))
}

// jwtExpired reports whether value is a decodable JWT whose exp claim is in
// the past. Non-JWT values and tokens without an exp claim report false.
func jwtExpired(value string, now time.Time) bool {
	if strings.Count(value, ".") != 2 {
		return false
	}
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(value, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
