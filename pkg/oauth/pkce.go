package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// MinVerifierLength and MaxVerifierLength bound the code verifier as
	// required by RFC 7636 section 4.1.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// DefaultVerifierLength is used when callers pass a zero length.
	DefaultVerifierLength = 64

	// ChallengeMethodS256 is the only challenge method this client sends.
	ChallengeMethodS256 = "S256"
)

// verifierAlphabet is the RFC 3986 unreserved character set.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// maxUnbiasedByte is the largest multiple of len(verifierAlphabet) that fits
// in a byte. Random bytes at or above it are discarded so that the modulo
// mapping stays uniform.
const maxUnbiasedByte = 256 - (256 % len(verifierAlphabet))

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) pair.
type PKCEChallenge struct {
	// CodeVerifier is the secret kept by the client and sent only to the
	// token endpoint.
	CodeVerifier string

	// CodeChallenge is the S256 digest of the verifier, sent in the
	// authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// GenerateVerifier returns a code verifier of the given length drawn from the
// unreserved alphabet using crypto/rand. Lengths outside [43,128] are clamped;
// zero selects DefaultVerifierLength.
func GenerateVerifier(length int) (string, error) {
	length = clampVerifierLength(length)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiasedByte {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%len(verifierAlphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GeneratePKCE generates a new verifier of the given length together with its
// S256 challenge.
func GeneratePKCE(length int) (*PKCEChallenge, error) {
	verifier, err := GenerateVerifier(length)
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       DeriveChallenge(verifier),
		CodeChallengeMethod: ChallengeMethodS256,
	}, nil
}

// IsValidVerifier reports whether s has a legal length and only contains
// unreserved characters.
func IsValidVerifier(s string) bool {
	if len(s) < MinVerifierLength || len(s) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isUnreserved(s[i]) {
			return false
		}
	}
	return true
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func clampVerifierLength(length int) int {
	switch {
	case length == 0:
		return DefaultVerifierLength
	case length < MinVerifierLength:
		return MinVerifierLength
	case length > MaxVerifierLength:
		return MaxVerifierLength
	}
	return length
}
