// Package filter implements the authentication/authorization pipeline:
// an ordered chain of filters, each able to inspect, mutate, reject,
// redirect, or forward a request.
package filter

import (
	"crypto/rsa"
	"net/http"
	"net/url"

	"github.com/sealproxy/sealproxy/internal/forward"
	"github.com/sealproxy/sealproxy/internal/session"
)

// Filter is a single stage in the pipeline. It either writes a response
// itself, or delegates onward via ctx.Next/ctx.Finish. Kind identifies the
// filter for metrics, matching its config kind string (e.g. "basic").
type Filter interface {
	Apply(ctx *Context, req *http.Request) error
	Kind() string
}

// Runtime is the slice of LiveState a filter chain needs at request time:
// the upstream target, the shared HTTP client, and the session signing
// key plus whether cookies should carry the Secure attribute.
type Runtime struct {
	Target       *url.URL
	Client       *http.Client
	SigningKey   *rsa.PrivateKey
	CookieSecure bool
}

// Context threads the remaining filter slice and the shared runtime
// through a single request's traversal of the pipeline. It also
// accumulates the terminal outcome for metrics: which filter decided,
// what it decided, and the upstream status code if one was reached.
type Context struct {
	w       http.ResponseWriter
	runtime *Runtime
	chain   []Filter
	index   int

	kind    string
	outcome string
	status  int
}

// NewContext builds the initial context for a request, wrapping the full
// compiled filter chain.
func NewContext(w http.ResponseWriter, runtime *Runtime, chain []Filter) *Context {
	return &Context{w: w, runtime: runtime, chain: chain}
}

// Next recurses into the next filter. If the chain is exhausted, it
// returns 401 Unauthorized with an empty body — the pipeline's default
// deny.
func (c *Context) Next(req *http.Request) error {
	if c.index >= len(c.chain) {
		c.kind = ""
		c.outcome = "deny"
		c.w.WriteHeader(http.StatusUnauthorized)
		return nil
	}
	f := c.chain[c.index]
	c.index++
	c.kind = f.Kind()
	return f.Apply(c, req)
}

// Finish bypasses any remaining filters and hands req to the upstream
// forwarder.
func (c *Context) Finish(req *http.Request) error {
	status, err := forward.Route(c.w, req, c.runtime.Client, c.runtime.Target)
	c.status = status
	if err == nil {
		c.outcome = "allow"
	}
	return err
}

// SetOutcome records a terminal decision a filter reaches without going
// through Finish — a redirect or an outright denial.
func (c *Context) SetOutcome(outcome string) {
	c.outcome = outcome
}

// EstablishSession queues a Set-Cookie header carrying a freshly signed
// session token. It must be called before Finish or before the filter
// writes its own response: once headers are committed to the wire they
// cannot be amended, so this implementation attaches the cookie to the
// ResponseWriter's header map ahead of whichever action commits the
// response.
func (c *Context) EstablishSession(claims session.Claims) error {
	return session.Establish(c.w, claims, c.runtime.SigningKey, c.runtime.CookieSecure)
}

// ResponseWriter exposes the underlying writer for filters that build
// their own terminal response (redirects, challenges, rejections).
func (c *Context) ResponseWriter() http.ResponseWriter { return c.w }

// Outcome summarizes how a pipeline pass resolved, for metrics: the
// filter that made the terminal decision, what it decided (allow, deny,
// redirect), and the upstream status code if Finish was reached (0
// otherwise).
type Outcome struct {
	FilterKind string
	Result     string
	Status     int
}

// Chain applies the first filter in chain to req, using runtime for
// the terminal forwarding/session actions.
func Chain(w http.ResponseWriter, req *http.Request, runtime *Runtime, chain []Filter) (Outcome, error) {
	ctx := NewContext(w, runtime, chain)
	err := ctx.Next(req)
	return Outcome{FilterKind: ctx.kind, Result: ctx.outcome, Status: ctx.status}, err
}
