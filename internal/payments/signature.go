package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// VerifySignature checks an HMAC-SHA256 signature over the raw request
// body using constant-time comparison. Signature values may carry a
// "sha256=" prefix (GitHub style).
//
// An empty secret accepts the request with a warning. That preserves
// current deployments that never configured a secret, but it means
// unsigned traffic is trusted; operators should always set the secret.
func VerifySignature(secret string, body []byte, signature string, logger *zap.Logger) bool {
	if secret == "" {
		logger.Warn("webhook secret not configured, accepting unsigned request")
		return true
	}
	if signature == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
