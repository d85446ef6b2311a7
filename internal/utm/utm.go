// Package utm generates UTM identifiers and builds tracking links.
package utm

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// ErrInvalidLinkType is returned for link types other than landing/direct.
var ErrInvalidLinkType = errors.New("invalid link type")

const (
	campaignHashLength = 5
	randomSuffixLength = 5
)

// GenerateID builds a utm_id of the form source[_campaignhash]_random.
// The campaign hash is the first five hex chars of md5(campaign) and is
// omitted when campaign is empty. Content is accepted for signature
// compatibility and does not influence the ID.
//
// No collision detection is performed here; the traffic_sources unique
// index rejects duplicates and callers regenerate.
func GenerateID(source, campaign, _ string) string {
	parts := make([]string, 0, 3)
	parts = append(parts, source)
	if campaign != "" {
		sum := md5.Sum([]byte(campaign))
		parts = append(parts, hex.EncodeToString(sum[:])[:campaignHashLength])
	}
	parts = append(parts, randomHex(randomSuffixLength))
	return strings.Join(parts, "_")
}

// randomHex returns n lowercase hex characters from crypto/rand.
func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)[:n]
}

// LinkParams is the input for BuildLink.
type LinkParams struct {
	BaseURL        string
	LandingBaseURL string
	LinkType       model.LinkType
	UTMID          string
	Source         string
	Medium         string
	Campaign       string
	Content        string
	Term           string
}

// BuildLink returns the shareable URL for a traffic source.
//
// Landing links point at {LandingBaseURL}/{utm_id} and carry no query
// parameters. Direct links to a Telegram bot get a start parameter;
// any other direct link gets the non-empty UTM parameters plus utm_id.
func BuildLink(p LinkParams) (string, error) {
	switch p.LinkType {
	case model.LinkTypeLanding:
		return strings.TrimSuffix(p.LandingBaseURL, "/") + "/" + p.UTMID, nil

	case model.LinkTypeDirect:
		if IsTelegramBotURL(p.BaseURL) {
			return withStart(p.BaseURL, p.UTMID)
		}
		return appendQuery(p.BaseURL, Params(p).encode()), nil

	default:
		return "", ErrInvalidLinkType
	}
}

// IsTelegramBotURL reports whether raw is a t.me link to a bot account.
// Invite links (t.me/+xxx, t.me/joinchat/xxx) and non-bot
// usernames are not. Only the host and first path segment are inspected.
func IsTelegramBotURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Host == "" && u.Scheme == "" {
		// Scheme-less "t.me/name_bot" parses as a path.
		if u, err = url.Parse("https://" + strings.TrimSpace(raw)); err != nil {
			return false
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "t.me" {
		return false
	}

	username, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	username = strings.ToLower(username)
	if username == "" || strings.HasPrefix(username, "+") || username == "joinchat" {
		return false
	}
	return strings.HasSuffix(username, "bot")
}

// withStart sets the start parameter on a bot link, replacing any existing
// value.
func withStart(base, utmID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse bot url: %w", err)
	}
	q := u.Query()
	q.Set("start", utmID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// QueryParams is an ordered list of UTM query parameters.
type QueryParams []QueryParam

// QueryParam is one key/value pair.
type QueryParam struct {
	Key   string
	Value string
}

// Params returns the non-empty UTM parameters in canonical order, followed
// by utm_id.
func Params(p LinkParams) QueryParams {
	all := QueryParams{
		{"utm_source", p.Source},
		{"utm_medium", p.Medium},
		{"utm_campaign", p.Campaign},
		{"utm_content", p.Content},
		{"utm_term", p.Term},
		{"utm_id", p.UTMID},
	}
	out := all[:0]
	for _, kv := range all {
		if kv.Value != "" {
			out = append(out, kv)
		}
	}
	return out
}

func (q QueryParams) encode() string {
	var sb strings.Builder
	for i, kv := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv.Value))
	}
	return sb.String()
}

// AppendParams appends q to base using the same joining rules as BuildLink.
func AppendParams(base string, q QueryParams) string {
	return appendQuery(base, q.encode())
}

// appendQuery joins query onto base with '&' when base already has a query
// string and '?' otherwise. A fragment stays at the end.
func appendQuery(base, query string) string {
	if query == "" {
		return base
	}

	fragment := ""
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i:]
	}

	switch {
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		base += query
	case strings.Contains(base, "?"):
		base += "&" + query
	default:
		base += "?" + query
	}
	return base + fragment
}
