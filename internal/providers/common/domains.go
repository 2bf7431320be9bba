package common

import (
	"net/url"
	"strings"
)

// ExtractBaseDomains reduces citation URLs to lowercase hosts without a leading "www.".
// Entries without a scheme or host (grounding titles, bare domains) are case-folded
// and stripped the same way, so applying it to its own output is a no-op.
func ExtractBaseDomains(urls []string) []string {
	domains := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		domains = append(domains, BaseDomain(raw))
	}
	return domains
}

// BaseDomain normalizes a single citation.
func BaseDomain(raw string) string {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// PassThroughTitles keeps grounding titles as-is; some providers only expose a
// page title, never the URL.
func PassThroughTitles(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
