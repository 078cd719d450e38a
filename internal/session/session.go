// Package session implements the RS256-signed JWT session cookie: minting
// on successful authentication and validation on subsequent requests.
package session

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is the constant audience every session token carries and is
// validated against on decode.
const Audience = "sealproxy"

// CookieName is the name of the cookie carrying the signed session token.
const CookieName = "seal.sid"

// TTL is the lifetime of a freshly minted session token.
const TTL = 24 * time.Hour

// Claims is the internal representation of an authenticated principal.
type Claims struct {
	Issuer  string // short string identifying the filter that minted the claim
	Subject string // authenticated user identifier
}

// jwtClaims is the wire form encoded into the signed token.
type jwtClaims struct {
	jwt.RegisteredClaims
}

// Keys bundles the RSA key pair used to sign and verify session tokens.
type Keys struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Sign encodes claims as an RS256 JWT with the fixed audience and a
// one-day expiry computed from now.
func Sign(claims Claims, keys *rsa.PrivateKey) (string, error) {
	now := time.Now()
	wire := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{Audience},
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, wire)
	return token.SignedString(keys)
}

// Verify decodes and validates a token string: signature against the
// public key, algorithm RS256, audience equal to the constant, and
// exp > now. Any failure yields ok=false — no distinct error kind is
// observable to callers beyond a log warning at the call site.
func Verify(tokenString string, pub *rsa.PublicKey) (Claims, bool) {
	var wire jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &wire, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	}, jwt.WithAudience(Audience), jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return Claims{}, false
	}
	return Claims{Issuer: wire.Issuer, Subject: wire.Subject}, true
}

// Establish attaches a Set-Cookie header carrying a freshly signed session
// token to resp. Called twice on the same response, it adds two Set-Cookie
// headers — a deliberate design choice, not deduplicated.
func Establish(resp http.ResponseWriter, claims Claims, keys *rsa.PrivateKey, secure bool) error {
	token, err := Sign(claims, keys)
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	resp.Header().Add("Set-Cookie", cookie.String())
	return nil
}
