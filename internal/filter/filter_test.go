package filter

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sealproxy/sealproxy/internal/session"
	"github.com/sealproxy/sealproxy/internal/userbase"
)

func testRuntime(t *testing.T, upstream *httptest.Server) *Runtime {
	t.Helper()
	target, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &Runtime{Target: target, Client: upstream.Client()}
}

func TestEmptyChainReturns401(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := Chain(rec, req, &Runtime{}, nil); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAnonymousFinishesOnMatch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	chain := []Filter{NewAnonymous([]string{"/health"}, nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	if _, err := Chain(rec, req, testRuntime(t, upstream), chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAnonymousFallsThroughOnMiss(t *testing.T) {
	chain := []Filter{NewAnonymous([]string{"/health"}, nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/other", nil)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 from the exhausted chain", rec.Code)
	}
}

func TestRedirectMatchesPath(t *testing.T) {
	chain := []Filter{NewRedirect("/login", false, []string{"/*"}, []string{"/login"})}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if rec.Header().Get("Location") != "/login" {
		t.Fatalf("Location = %q", rec.Header().Get("Location"))
	}
}

func TestRedirectTriggersOnTextAccept(t *testing.T) {
	chain := []Filter{NewRedirect("/login", false, []string{"/login"}, nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Accept", "text/html,application/xml;q=0.9")

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 even though path does not match", rec.Code)
	}
}

func TestRedirectWithReturnAppendsQuery(t *testing.T) {
	chain := []Filter{NewRedirect("/login", true, []string{"/*"}, nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secret/page", nil)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	loc := rec.Header().Get("Location")
	if loc != "/login?return="+url.QueryEscape("/secret/page") {
		t.Fatalf("Location = %q", loc)
	}
}

func TestBasicFilterRejectsMalformedAuthHeader(t *testing.T) {
	chain := []Filter{NewBasic(nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic not-base64!!")

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Basic" {
		t.Fatal("expected WWW-Authenticate: Basic challenge")
	}
}

func TestParseBasicAuth(t *testing.T) {
	user, pass, ok := parseBasicAuth("Basic YWxpY2U6c2VjcmV0")
	if !ok || user != "alice" || pass != "secret" {
		t.Fatalf("parseBasicAuth = (%q, %q, %v)", user, pass, ok)
	}
	if _, _, ok := parseBasicAuth("Bearer xyz"); ok {
		t.Fatal("expected non-Basic scheme to fail parsing")
	}
}

func TestFormLoginServesLoginPageOnGet(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("login form"))
	}))
	defer upstream.Close()

	chain := []Filter{NewFormLogin("/login", "/home", "", nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)

	if _, err := Chain(rec, req, testRuntime(t, upstream), chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "login form" {
		t.Fatalf("expected the login page to be served, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestFormLoginRejectsOtherMethods(t *testing.T) {
	chain := []Filter{NewFormLogin("/login", "/home", "", nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/login", nil)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestFormLoginPostSuccessRedirectsAndSetsCookie(t *testing.T) {
	priv := testSigningKey(t)
	users := userbase.NewUserPass([][2]string{{"alice", "secret"}})
	chain := []Filter{NewFormLogin("/login", "/home", "", users)}
	runtime := &Runtime{SigningKey: priv}

	rec := httptest.NewRecorder()
	body := strings.NewReader("username=alice&password=secret")
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := Chain(rec, req, runtime, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/home" {
		t.Fatalf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Fatal("expected Set-Cookie on successful login")
	}
}

func TestFormLoginPostFailureNoRedirect(t *testing.T) {
	users := userbase.NewUserPass([][2]string{{"alice", "secret"}})
	chain := []Filter{NewFormLogin("/login", "/home", "", users)}

	rec := httptest.NewRecorder()
	body := strings.NewReader("username=alice&password=wrong")
	req := httptest.NewRequest(http.MethodPost, "/login", body)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestFormLoginPostFailureRedirectsWhenConfigured(t *testing.T) {
	users := userbase.NewUserPass([][2]string{{"alice", "secret"}})
	chain := []Filter{NewFormLogin("/login", "/home", "/login?failed", users)}

	rec := httptest.NewRecorder()
	body := strings.NewReader("username=alice&password=wrong")
	req := httptest.NewRequest(http.MethodPost, "/login", body)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?failed" {
		t.Fatalf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCookieSessionNeverRejects(t *testing.T) {
	priv := testSigningKey(t)
	f := NewCookieSession(&priv.PublicKey)
	chain := []Filter{f}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected fallthrough to the exhausted chain (401), got %d", rec.Code)
	}
}

func TestCookieSessionFinishesOnValidToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Seal-Username") != "alice" {
			t.Errorf("expected identity header forwarded, got %q", r.Header.Get("X-Seal-Username"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	priv := testSigningKey(t)
	token, err := session.Sign(session.Claims{Issuer: "basic", Subject: "alice"}, priv)
	if err != nil {
		t.Fatal(err)
	}

	chain := []Filter{NewCookieSession(&priv.PublicKey)}
	runtime := testRuntime(t, upstream)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})

	if _, err := Chain(rec, req, runtime, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCookieSessionIgnoresTamperedToken(t *testing.T) {
	priv := testSigningKey(t)
	token, err := session.Sign(session.Claims{Issuer: "basic", Subject: "alice"}, priv)
	if err != nil {
		t.Fatal(err)
	}
	tampered := token[:len(token)-2] + "x" + token[len(token)-1:]
	if tampered == token {
		tampered = token[:len(token)-2] + "y" + token[len(token)-1:]
	}

	chain := []Filter{NewCookieSession(&priv.PublicKey)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tampered})

	if _, err := Chain(rec, req, &Runtime{}, chain); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected the tampered cookie to fall through to 401, got %d", rec.Code)
	}
}
