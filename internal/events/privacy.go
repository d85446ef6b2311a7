package events

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"time"
)

const maxReferrerLen = 500

// VisitorHash is a privacy-safe visitor identifier:
// SHA256(ip + user agent + daily salt), truncated to 16 hex chars.
// The salt rotates at midnight UTC so visitors cannot be followed across days.
func VisitorHash(ip, userAgent string, at time.Time) string {
	salt := "attribution:" + at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(ip + userAgent + salt))
	return hex.EncodeToString(sum[:8])
}

// SanitizeReferrer drops query and fragment from a referrer URL and caps
// its length. Unparseable input yields "".
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""

	out := parsed.String()
	if len(out) > maxReferrerLen {
		out = out[:maxReferrerLen]
	}
	return out
}

// ReferrerDomain returns the host of ref, "(direct)" when empty.
func ReferrerDomain(ref string) string {
	if ref == "" {
		return "(direct)"
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "(unknown)"
	}
	return parsed.Host
}
