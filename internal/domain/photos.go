package domain

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// PhotoNormalizer turns stored photo references into URLs the Bot API can
// fetch. Relative references are resolved against the backend origin.
type PhotoNormalizer struct {
	origin string
	logger *slog.Logger
}

// NewPhotoNormalizer creates a PhotoNormalizer for the given backend base
// URL. A trailing /api path segment is stripped to obtain the origin that
// serves media files.
func NewPhotoNormalizer(backendURL string, logger *slog.Logger) *PhotoNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	origin := strings.TrimRight(strings.TrimSpace(backendURL), "/")
	origin = strings.TrimSuffix(origin, "/api")
	origin = strings.TrimRight(origin, "/")
	return &PhotoNormalizer{origin: origin, logger: logger}
}

// Normalize returns a publicly fetchable absolute URL for ref, or false if
// ref must be dropped.
func (n *PhotoNormalizer) Normalize(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(strings.ToLower(ref), "data:"):
		n.logger.Warn("dropping inline data uri photo", "length", len(ref))
		return "", false
	case ref == "":
		return "", false
	case hasHTTPScheme(ref):
		if !fetchable(ref) {
			n.logger.Warn("dropping unreachable photo url", "url", ref)
			return "", false
		}
		return ref, true
	}

	if n.origin == "" {
		n.logger.Warn("dropping relative photo url, backend url not configured", "ref", ref)
		return "", false
	}
	resolved := n.origin + "/" + strings.TrimLeft(ref, "/")
	if !fetchable(resolved) {
		n.logger.Warn("dropping photo url that does not resolve", "ref", ref, "resolved", resolved)
		return "", false
	}
	return resolved, true
}

// NormalizeAll normalizes every reference and returns the survivors in
// their original order.
func (n *PhotoNormalizer) NormalizeAll(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if u, ok := n.Normalize(ref); ok {
			out = append(out, u)
		}
	}
	return out
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fetchable reports whether raw is a well-formed http(s) URL whose host is
// not a loopback address.
func fetchable(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" || strings.EqualFold(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return false
	}
	return true
}
