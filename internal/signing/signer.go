// Package signing provides HMAC-SHA256 signing and verification for minted
// tracking links, so redirect entry points cannot be abused as open
// redirectors when signatures are required.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// SignatureLength is the number of hex characters used for the truncated
// HMAC signature.
const SignatureLength = 12

// TrackParams holds the parameters bound into a tracking-link signature.
// They are combined into a pipe-delimited message for HMAC signing.
type TrackParams struct {
	AffiliateID    string
	CampaignID     string
	PublisherID    string
	Timestamp      int64
	DestinationURL string
}

// Message returns the pipe-delimited representation used for signing.
// Format: "affiliate|campaign|publisher|timestamp|url".
func (p TrackParams) Message() string {
	return fmt.Sprintf(
		"%s|%s|%s|%s|%s",
		p.AffiliateID,
		p.CampaignID,
		p.PublisherID,
		strconv.FormatInt(p.Timestamp, 10),
		p.DestinationURL,
	)
}

// Signer provides HMAC-SHA256 signing and verification using a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a new Signer with the given secret string.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
	}
}

// Sign computes an HMAC-SHA256 of the message and returns the first
// SignatureLength hex characters as the signature.
func (s *Signer) Sign(message string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	fullHex := hex.EncodeToString(mac.Sum(nil))

	return fullHex[:SignatureLength]
}

// Verify checks whether the given signature matches the HMAC-SHA256 of the
// message. Uses hmac.Equal for constant-time comparison.
func (s *Signer) Verify(message, signature string) bool {
	expected := s.Sign(message)

	return hmac.Equal([]byte(expected), []byte(signature))
}
