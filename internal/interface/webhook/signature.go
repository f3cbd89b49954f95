package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"rebook-service/internal/domain/entity"
)

// HMACVerifier checks base64 HMAC-SHA256 signatures of raw webhook bodies.
// Some providers prefix the digest with a scheme tag such as "sha256=".
type HMACVerifier struct {
	secret []byte
	prefix string
}

// NewHMACVerifier creates a verifier. An empty secret disables verification.
func NewHMACVerifier(secret, prefix string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), prefix: prefix}
}

// Enabled reports whether a secret is configured
func (v *HMACVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Sign returns the header value a provider would send for body
func (v *HMACVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return v.prefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify returns an error matching entity.ErrAuthentication when the signature
// is missing or wrong
func (v *HMACVerifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing webhook signature", entity.ErrAuthentication)
	}

	if !hmac.Equal([]byte(v.Sign(body)), []byte(signature)) {
		return fmt.Errorf("%w: invalid webhook signature", entity.ErrAuthentication)
	}
	return nil
}
