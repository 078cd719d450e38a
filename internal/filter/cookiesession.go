package filter

import (
	"crypto/rsa"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sealproxy/sealproxy/internal/forward"
	"github.com/sealproxy/sealproxy/internal/session"
)

// CookieSession validates the session cookie, if present, and injects
// identity headers on success. It never rejects outright — an absent or
// invalid cookie simply falls through to the next filter.
type CookieSession struct {
	verifyKey *rsa.PublicKey
}

// NewCookieSession builds a CookieSession filter verifying tokens against
// verifyKey.
func NewCookieSession(verifyKey *rsa.PublicKey) *CookieSession {
	return &CookieSession{verifyKey: verifyKey}
}

func (f *CookieSession) Kind() string { return "cookie_session" }

func (f *CookieSession) Apply(ctx *Context, req *http.Request) error {
	for _, cookie := range req.Cookies() {
		if cookie.Name != session.CookieName {
			continue
		}
		claims, ok := session.Verify(cookie.Value, f.verifyKey)
		if !ok {
			log.Warn().Msg("cookie_session: invalid or expired session token")
			continue
		}
		forward.AddHeaderClaims(req, claims.Issuer, claims.Subject)
		return ctx.Finish(req)
	}
	return ctx.Next(req)
}
