package state

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/sealproxy/sealproxy/internal/config"
)

func writeRSAKeyPair(t *testing.T, dir string) (privPath, pubPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(key)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})
	privPath = filepath.Join(dir, "priv.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	pubPath = filepath.Join(dir, "pub.pem")
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return privPath, pubPath
}

func writeConfig(t *testing.T, dir, privPath, pubPath string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sealproxy.yaml")
	full := `
target:
  url: "http://upstream.internal"
session:
  private_key: ` + privPath + `
  public_key: ` + pubPath + `
` + body
	if err := os.WriteFile(path, []byte(full), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromConfigBuildsChainInOrder(t *testing.T) {
	dir := t.TempDir()
	priv, pub := writeRSAKeyPair(t, dir)
	cfgPath := writeConfig(t, dir, priv, pub, `
filters:
  - kind: anonymous
    paths: ["/health"]
  - kind: cookie_session
  - kind: basic
    user_base:
      kind: user_pass
      users:
        - ["alice", "secret"]
`)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Chain) != 3 {
		t.Fatalf("expected 3 compiled filters, got %d", len(s.Chain))
	}
}

func TestFromConfigRejectsBadTargetURL(t *testing.T) {
	dir := t.TempDir()
	priv, pub := writeRSAKeyPair(t, dir)
	cfgPath := writeConfig(t, dir, priv, pub, "filters: []\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Target.URL = "://not-a-url"
	if _, err := FromConfig(cfg); err == nil {
		t.Fatal("expected an error for a malformed target URL")
	}
}

func TestFailedReloadRetainsPreviousState(t *testing.T) {
	dir := t.TempDir()
	priv, pub := writeRSAKeyPair(t, dir)
	cfgPath := writeConfig(t, dir, priv, pub, "filters: []\n")

	if err := Init(cfgPath); err != nil {
		t.Fatal(err)
	}
	before := Load()

	// Corrupt the file in place; reload must not publish a new state.
	if err := os.WriteFile(cfgPath, []byte("not: valid: yaml: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	reload(cfgPath)

	after := Load()
	if before != after {
		t.Fatal("expected live state to be unchanged after a failed reload")
	}
}
