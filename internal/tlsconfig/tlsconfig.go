// Package tlsconfig builds a *tls.Config from a static certificate/key
// file pair via certmagic's unmanaged certificate cache — no ACME
// issuance, since the config schema only ever names files on disk.
package tlsconfig

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/caddyserver/certmagic"
)

// Build loads certFile/keyFile into a fresh certmagic cache and returns
// the resulting server tls.Config.
func Build(certFile, keyFile string) (*tls.Config, error) {
	magic := certmagic.NewDefault()
	if err := magic.CacheUnmanagedCertificatePEMFile(context.Background(), certFile, keyFile, nil); err != nil {
		return nil, fmt.Errorf("caching static certificate: %w", err)
	}
	return magic.TLSConfig(), nil
}
