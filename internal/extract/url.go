package extract

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// URLFetcher fetches a URL and extracts its main textual content (§4.A,
// "url: fetch and extract main textual content, discarding nav/ads/
// boilerplate"). The production implementation lives outside this package
// so extract stays free of an HTTP client dependency in its core contract.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*NormalizedText, error)
}

const maxURLLength = 2048

var urlSplitRe = regexp.MustCompile(`[\s,;\n]+`)

// ValidateURL enforces §6's URL admission rules: reject empty input, input
// over 2048 characters, non-http(s) schemes, and hosts that resolve to
// localhost/link-local/RFC-1918 address space. A single field containing
// more than one URL is rejected as errs.MultiURL with the parsed list, since
// ingestion admits exactly one URL per request.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errs.Validation("url", "url must not be empty")
	}
	if len(trimmed) > maxURLLength {
		return "", errs.Validation("url", "url exceeds maximum length of 2048 characters")
	}

	if urls := splitURLs(trimmed); len(urls) > 1 {
		return "", errs.MultiURL(urls)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errs.Validation("url", "malformed url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errs.Validation("url", "url scheme must be http or https")
	}
	if parsed.Hostname() == "" {
		return "", errs.Validation("url", "url must have a host")
	}
	if err := rejectLocalHost(parsed.Hostname()); err != nil {
		return "", err
	}

	return trimmed, nil
}

func splitURLs(raw string) []string {
	fields := urlSplitRe.Split(raw, -1)
	var urls []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			urls = append(urls, f)
		}
	}
	return urls
}

func rejectLocalHost(host string) error {
	if strings.EqualFold(host, "localhost") {
		return errs.Validation("url", "localhost is not a permitted host")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil // unresolvable hosts are rejected later at fetch time, not here
		}
		ip = ips[0]
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || isPrivateIP(ip) {
		return errs.Validation("url", "url resolves to a private or link-local address")
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
