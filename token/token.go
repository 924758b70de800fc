package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goAuthClient/session"
)

// DefaultValidityMargin is the safety buffer subtracted from a credential's
// real expiry. Renewal starts this far ahead of the deadline.
const DefaultValidityMargin = 5 * time.Minute

// Valid reports whether the session's credential is still safe to attach to a
// request. False when the session is absent, the credential is empty, or fewer
// than margin remains before expiry. Pure; no side effects.
func Valid(sess *session.Session, now time.Time, margin time.Duration) bool {
	if sess == nil || sess.Credential == "" {
		return false
	}
	return now.Unix() < sess.ExpiresAt-int64(margin/time.Second)
}

// ExpiryOf derives the expiry of a freshly issued credential. When the
// credential is a JWT carrying an exp claim in the future, the server-supplied
// expiry is authoritative. Otherwise the conservative fallback lifetime is
// applied from the issuance time.
//
// The token is parsed without signature verification; see the package doc.
func ExpiryOf(credential string, issued time.Time, fallback time.Duration) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.After(issued) {
			return exp.Time
		}
	}
	return issued.Add(fallback)
}
