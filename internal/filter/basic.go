package filter

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/sealproxy/sealproxy/internal/forward"
	"github.com/sealproxy/sealproxy/internal/session"
	"github.com/sealproxy/sealproxy/internal/userbase"
)

// Basic implements HTTP Basic authentication against a UserBase.
type Basic struct {
	users userbase.UserBase
}

// NewBasic builds a Basic filter backed by users.
func NewBasic(users userbase.UserBase) *Basic {
	return &Basic{users: users}
}

func (f *Basic) Kind() string { return "basic" }

func (f *Basic) Apply(ctx *Context, req *http.Request) error {
	user, password, ok := parseBasicAuth(req.Header.Get("Authorization"))
	if !ok {
		return unauthorized(ctx)
	}

	result, err := f.users.Lookup(req.Context(), user, password)
	if err != nil || result.Outcome != userbase.Success {
		return unauthorized(ctx)
	}

	claims := session.Claims{Issuer: "basic", Subject: user}
	forward.AddHeaderClaims(req, claims.Issuer, claims.Subject)
	if err := ctx.EstablishSession(claims); err != nil {
		return err
	}
	return ctx.Finish(req)
}

// parseBasicAuth parses an "Authorization: Basic <b64>" header into
// username/password. It accepts only that exact shape; anything else is
// treated as a parse failure.
func parseBasicAuth(header string) (user, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return user, password, true
}

func unauthorized(ctx *Context) error {
	ctx.SetOutcome("deny")
	w := ctx.ResponseWriter()
	w.Header().Set("WWW-Authenticate", "Basic")
	w.WriteHeader(http.StatusUnauthorized)
	return nil
}
