package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const (
	HeaderEvent     = "X-Shortlink-Event"
	HeaderID        = "X-Shortlink-Id"
	HeaderTimestamp = "X-Shortlink-Timestamp"
	HeaderSignature = "X-Shortlink-Signature"

	signaturePrefix = "sha256="
)

// Sign returns "sha256=<hex>" of HMAC-SHA256(secret, "<timestamp>.<body>").
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header in constant time. Receivers use the
// same construction.
func Verify(secret string, timestamp int64, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}
