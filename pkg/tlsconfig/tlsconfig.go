// Package tlsconfig provides the version/cipher-suite defaults applied
// to the TLS transport variant's process-wide tls.Config.
package tlsconfig

import "crypto/tls"

// TLS protocol version identifiers, re-exported so callers configuring
// the TLS context hook don't need a separate crypto/tls import for them.
const (
	VersionTLS10 uint16 = tls.VersionTLS10
	VersionTLS11 uint16 = tls.VersionTLS11
	VersionTLS12 uint16 = tls.VersionTLS12
	VersionTLS13 uint16 = tls.VersionTLS13
)

// VersionProfile is a pre-configured min/max version range.
type VersionProfile struct {
	Min, Max uint16
}

// ProfileSecure is the default applied to the shared TLS context:
// TLS 1.2 and 1.3, matching what any current server supports.
var ProfileSecure = VersionProfile{Min: VersionTLS12, Max: VersionTLS13}

// ApplyVersionProfile sets config's min/max version range to profile.
func ApplyVersionProfile(config *tls.Config, profile VersionProfile) {
	config.MinVersion = profile.Min
	config.MaxVersion = profile.Max
}

// cipherSuitesTLS12 is the AEAD-only ECDHE suite set used when the
// negotiated version floor is TLS 1.2; TLS 1.3 negotiates its own
// suites and ignores CipherSuites entirely.
var cipherSuitesTLS12 = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// ApplyCipherSuites sets config's CipherSuites for a floor of minVersion.
func ApplyCipherSuites(config *tls.Config, minVersion uint16) {
	if minVersion >= VersionTLS13 {
		config.CipherSuites = nil
		return
	}
	config.CipherSuites = cipherSuitesTLS12
}
