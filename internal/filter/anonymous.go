package filter

import (
	"net/http"

	"github.com/sealproxy/sealproxy/internal/pathmatch"
)

// Anonymous forwards matching paths without requiring authentication —
// used to expose static assets or login pages.
type Anonymous struct {
	matcher pathmatch.PathMatch
}

// NewAnonymous builds an Anonymous filter from include/exclude path
// patterns.
func NewAnonymous(paths, notPaths []string) *Anonymous {
	return &Anonymous{matcher: pathmatch.New(paths, notPaths)}
}

func (f *Anonymous) Kind() string { return "anonymous" }

func (f *Anonymous) Apply(ctx *Context, req *http.Request) error {
	if f.matcher.Matches(req.URL.Path) {
		return ctx.Finish(req)
	}
	return ctx.Next(req)
}
