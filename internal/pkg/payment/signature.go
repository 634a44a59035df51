package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifyHMACSHA256 checks a hex-encoded HMAC-SHA256 signature over payload in
// constant time. Missing inputs or malformed hex yield false.
func verifyHMACSHA256(payload []byte, signatureHex, secret string) bool {
	sig := strings.TrimSpace(signatureHex)
	if sig == "" || secret == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
