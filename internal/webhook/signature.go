// Package webhook verifies signed inbound conversion callbacks.
//
// A sender signs "{unix_timestamp}.{raw_body}" with HMAC-SHA256 using the
// shared secret and sends the hex digest in X-Signature (optionally
// prefixed "sha256=") and the timestamp in X-Timestamp.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names carried by signed callbacks.
const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"
)

// DefaultTolerance is the accepted clock skew between sender and receiver.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMissingSignature is returned when a required header is absent.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidTimestamp is returned when X-Timestamp is not unix seconds.
	ErrInvalidTimestamp = errors.New("invalid webhook timestamp")
	// ErrReplayWindowExceeded is returned when the timestamp is outside tolerance.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when the digest does not match.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{body}".
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks inbound signatures. A Verifier with an empty secret
// accepts every request.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier. A non-positive tolerance uses DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// Enabled reports whether signatures are enforced.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify validates the signature headers of r against body, which must be
// the exact bytes received.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	if !v.Enabled() {
		return nil
	}

	sig := strings.TrimPrefix(strings.TrimSpace(h.Get(SignatureHeader)), "sha256=")
	rawTS := strings.TrimSpace(h.Get(TimestampHeader))
	if sig == "" || rawTS == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrReplayWindowExceeded
	}

	expected := Sign(v.secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return ErrInvalidSignature
	}
	return nil
}
