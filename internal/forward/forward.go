// Package forward implements the upstream forwarder: request rewriting,
// identity header injection, and transparent dispatch to the target.
package forward

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Header names the forwarder inserts once a filter has authenticated the
// caller.
const (
	HeaderUsername  = "X-Seal-Username"
	HeaderMechanism = "X-Seal-Mechanism"
)

// NewClient builds the shared, connection-pooled HTTP client used to reach
// the upstream target.
func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 nil,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		// The proxy forwards the upstream's response verbatim; following
		// redirects here would return the wrong Location to the client.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// AddHeaderClaims inserts the identity headers an authenticating filter
// contributes before handing the request to finish/the forwarder.
func AddHeaderClaims(req *http.Request, issuer, subject string) {
	req.Header.Set(HeaderUsername, subject)
	req.Header.Set(HeaderMechanism, issuer)
}

// rewriteURL joins the incoming request path (minus its leading slash)
// onto target, preserving the original query string verbatim.
func rewriteURL(target *url.URL, req *http.Request) (*url.URL, error) {
	path := req.URL.Path
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("request path %q does not begin with /", path)
	}
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing request path: %w", err)
	}
	dest := target.ResolveReference(rel)
	dest.RawQuery = req.URL.RawQuery
	return dest, nil
}

// Route rewrites req's URL onto target and dispatches it through client. If
// the request carries an Upgrade header, it is handled as a protocol
// upgrade tunnel instead (see upgrade.go). It returns the upstream's status
// code for metrics, or 0 if the request never reached the upstream.
func Route(w http.ResponseWriter, req *http.Request, client *http.Client, target *url.URL) (int, error) {
	dest, err := rewriteURL(target, req)
	if err != nil {
		return 0, err
	}

	if req.Header.Get("Upgrade") != "" {
		return upgrade(w, req, client, dest)
	}

	outReq, err := http.NewRequestWithContext(req.Context(), req.Method, dest.String(), req.Body)
	if err != nil {
		return 0, fmt.Errorf("building upstream request: %w", err)
	}
	outReq.Header = req.Header.Clone()

	resp, err := client.Do(outReq)
	if err != nil {
		return 0, fmt.Errorf("dispatching to upstream: %w", err)
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := copyBody(w, resp); err != nil {
		log.Warn().Err(err).Msg("copying upstream response body")
	}
	return resp.StatusCode, nil
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func copyBody(w http.ResponseWriter, resp *http.Response) (int64, error) {
	return io.Copy(w, resp.Body)
}
