package session

import (
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// LoadKeys reads and parses the PEM-encoded RSA signing and verification
// key files named in the config's session section.
func LoadKeys(privateKeyPath, publicKeyPath string) (*Keys, error) {
	privPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading session private key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing session private key: %w", err)
	}

	pubPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading session public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing session public key: %w", err)
	}

	return &Keys{Private: priv, Public: pub}, nil
}
