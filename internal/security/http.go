package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// HTTP validates outbound requests made by the scholar tools.
// Used to prevent SSRF (Server-Side Request Forgery) attacks.
type HTTP struct {
	timeout         time.Duration
	maxResponseSize int64
	allowedSchemes  []string
}

// NewHTTP creates an HTTP validator. A non-positive timeout falls back to
// 30 seconds.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		timeout:         timeout,
		maxResponseSize: 10 * 1024 * 1024, // 10MB, fulltext PDFs included
		allowedSchemes:  []string{"http", "https"},
	}
}

// ValidateURL validates whether a URL is safe to fetch.
// Checks scheme, hostname, and resolved IP ranges.
func (v *HTTP) ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return fmt.Errorf("disallowed protocol: %s (only http/https allowed)", parsed.Scheme)
	}

	if parsed.User != nil {
		return fmt.Errorf("URLs with embedded credentials are not allowed")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("invalid hostname")
	}

	if isDangerousHostname(hostname) {
		slog.Warn("SSRF attempt blocked",
			"url", urlStr,
			"hostname", hostname,
			"security_event", "ssrf_dangerous_hostname")
		return fmt.Errorf("access denied: accessing internal networks or metadata services is not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("unable to resolve hostname: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			slog.Warn("SSRF attempt blocked",
				"url", urlStr,
				"hostname", hostname,
				"resolved_ip", ip.String(),
				"security_event", "ssrf_private_ip")
			return fmt.Errorf("access denied: accessing internal network IPs is not allowed (%s)", ip.String())
		}
	}

	return nil
}

// MaxResponseSize returns the response size cap in bytes.
func (v *HTTP) MaxResponseSize() int64 {
	return v.maxResponseSize
}

// Client returns an HTTP client that re-validates every redirect hop and
// stops after three redirects.
func (v *HTTP) Client() *http.Client {
	return &http.Client{
		Timeout: v.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			if err := v.ValidateURL(req.URL.String()); err != nil {
				slog.Warn("unsafe redirect blocked",
					"redirect_url", req.URL.String(),
					"original_url", via[0].URL.String(),
					"security_event", "ssrf_unsafe_redirect")
				return fmt.Errorf("redirect to unsafe URL: %w", err)
			}
			return nil
		},
	}
}

// isDangerousHostname rejects names that resolve to local or
// cloud-metadata services regardless of DNS.
func isDangerousHostname(hostname string) bool {
	lower := strings.ToLower(hostname)

	dangerous := []string{
		"localhost",
		"metadata",
		"metadata.google.internal",
		"169.254.169.254",
	}
	if slices.Contains(dangerous, lower) {
		return true
	}

	return strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") ||
		strings.HasSuffix(lower, ".internal")
}

// isPrivateIP reports whether ip belongs to a loopback, link-local,
// unspecified, or RFC 1918/4193 range.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsPrivate()
}
