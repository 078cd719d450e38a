package filter

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/sealproxy/sealproxy/internal/pathmatch"
)

// Redirect responds 303 See Other when the path matches, or when the
// client's Accept header lists any text/* media range — the latter forces
// interactive browsers into the login flow even off an explicit match.
type Redirect struct {
	location   string
	withReturn bool
	matcher    pathmatch.PathMatch
}

// NewRedirect builds a Redirect filter.
func NewRedirect(location string, withReturn bool, paths, notPaths []string) *Redirect {
	return &Redirect{location: location, withReturn: withReturn, matcher: pathmatch.New(paths, notPaths)}
}

func (f *Redirect) Kind() string { return "redirect" }

func (f *Redirect) Apply(ctx *Context, req *http.Request) error {
	if f.matcher.Matches(req.URL.Path) || acceptsText(req.Header.Get("Accept")) {
		return f.redirect(ctx, req)
	}
	return ctx.Next(req)
}

func (f *Redirect) redirect(ctx *Context, req *http.Request) error {
	location := f.location
	if f.withReturn {
		ret := url.QueryEscape(req.URL.RequestURI())
		if strings.Contains(location, "?") {
			location += "&return=" + ret
		} else {
			location += "?return=" + ret
		}
	}
	ctx.SetOutcome("redirect")
	w := ctx.ResponseWriter()
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusSeeOther)
	return nil
}

// acceptsText reports whether any media range in an Accept header has top
// level type "text".
func acceptsText(accept string) bool {
	if accept == "" {
		return false
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if strings.HasPrefix(mediaType, "text/") {
			return true
		}
	}
	return false
}
