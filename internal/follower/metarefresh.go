package follower

import (
	"bytes"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractMetaRefresh scans an HTML body for a meta-refresh directive
// (<meta http-equiv="refresh" content="N;url=...">) and returns the target
// URL, HTML-unescaped and URL-decoded. Returns "" when no directive is
// present.
func extractMetaRefresh(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var target string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, ok := s.Attr("http-equiv")
		if !ok || !strings.EqualFold(equiv, "refresh") {
			return true
		}
		content, ok := s.Attr("content")
		if !ok {
			return true
		}
		if u := parseRefreshContent(content); u != "" {
			target = u
			return false
		}
		return true
	})

	return target
}

// parseRefreshContent extracts the url= portion of a refresh content value,
// e.g. "0;url=https://example.com/landing". The delay portion is ignored.
func parseRefreshContent(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) < 4 || !strings.EqualFold(part[:4], "url=") {
			continue
		}
		raw := strings.TrimSpace(part[4:])
		raw = strings.Trim(raw, `"'`)
		if raw == "" {
			continue
		}
		return decodeRefreshURL(raw)
	}
	return ""
}

// decodeRefreshURL HTML-unescapes and URL-decodes a meta-refresh target.
// Chain hosts sometimes double-encode the destination inside the directive.
func decodeRefreshURL(raw string) string {
	unescaped := html.UnescapeString(raw)

	// Only percent-decode when the scheme itself is encoded; decoding an
	// already-plain URL would corrupt encoded query parameter values.
	lower := strings.ToLower(unescaped)
	if strings.HasPrefix(lower, "http%3a") || strings.HasPrefix(lower, "https%3a") {
		if decoded, err := url.QueryUnescape(unescaped); err == nil {
			return decoded
		}
	}
	return unescaped
}
