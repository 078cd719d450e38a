package filter

import (
	"io"
	"net/http"
	"net/url"

	"github.com/sealproxy/sealproxy/internal/session"
	"github.com/sealproxy/sealproxy/internal/userbase"
)

// FormLogin serves a login form (by delegating GET to the upstream) and
// validates POSTed credentials against a UserBase.
type FormLogin struct {
	path            string
	successRedirect string
	failureRedirect string // empty means "no failure redirect configured"
	users           userbase.UserBase
}

// NewFormLogin builds a FormLogin filter. failureRedirect may be empty.
func NewFormLogin(path, successRedirect, failureRedirect string, users userbase.UserBase) *FormLogin {
	return &FormLogin{path: path, successRedirect: successRedirect, failureRedirect: failureRedirect, users: users}
}

func (f *FormLogin) Kind() string { return "form_login" }

func (f *FormLogin) Apply(ctx *Context, req *http.Request) error {
	if req.URL.Path != f.path {
		return ctx.Next(req)
	}

	switch req.Method {
	case http.MethodGet:
		return ctx.Finish(req)
	case http.MethodPost:
		return f.handlePost(ctx, req)
	default:
		ctx.SetOutcome("deny")
		ctx.ResponseWriter().WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}
}

func (f *FormLogin) handlePost(ctx *Context, req *http.Request) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return f.reject(ctx)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return f.reject(ctx)
	}
	username := values.Get("username")
	password := values.Get("password")
	if username == "" || password == "" {
		return f.reject(ctx)
	}

	result, err := f.users.Lookup(req.Context(), username, password)
	if err != nil || result.Outcome != userbase.Success {
		return f.reject(ctx)
	}

	claims := session.Claims{Issuer: "formlogin", Subject: username}
	if err := ctx.EstablishSession(claims); err != nil {
		return err
	}

	// return is carried on the query string (set by a preceding redirect
	// filter's with_return), not in the POSTed form body.
	target := f.successRedirect
	if ret := req.URL.Query().Get("return"); ret != "" {
		target = ret
	} else if target == "" {
		target = "/"
	}
	ctx.SetOutcome("redirect")
	w := ctx.ResponseWriter()
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusSeeOther)
	return nil
}

// reject denies a failed login: a 303 to failureRedirect if configured,
// else a bare 401.
func (f *FormLogin) reject(ctx *Context) error {
	w := ctx.ResponseWriter()
	if f.failureRedirect != "" {
		ctx.SetOutcome("redirect")
		w.Header().Set("Location", f.failureRedirect)
		w.WriteHeader(http.StatusSeeOther)
		return nil
	}
	ctx.SetOutcome("deny")
	w.WriteHeader(http.StatusUnauthorized)
	return nil
}
