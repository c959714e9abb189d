package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	signatureVersion = "v0"

	// maxTimestampSkew bounds how old a signed request may be, to limit
	// replay of captured deliveries.
	maxTimestampSkew = 5 * time.Minute
)

// Sign computes the request signature Slack attaches as X-Slack-Signature:
// hex HMAC-SHA256 of "v0:<timestamp>:<body>" under the signing secret.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a delivery's signature and timestamp headers against
// the signing secret. It returns an error for a missing/stale timestamp or a
// signature mismatch.
func VerifySignature(secret, timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid request timestamp %q", timestamp)
	}

	age := time.Since(time.Unix(ts, 0))
	if age > maxTimestampSkew || age < -maxTimestampSkew {
		return fmt.Errorf("request timestamp outside allowed window")
	}

	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}

	return nil
}
