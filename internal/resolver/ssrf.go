package resolver

import (
	"fmt"
	"net"
	"net/url"
)

const maxURLLength = 2048

// ValidateURL checks that a playlist entry is safe to hand to the decoder:
// http(s) only, bounded length, and every resolved address public.
func ValidateURL(rawURL string) error {
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("URL too long (%d chars, max %d)", len(rawURL), maxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}

	ips, err := lookupIP(host)
	if err != nil {
		return fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("no DNS results for %q", host)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private/reserved IP %s", ip)
		}
	}
	return nil
}

// lookupIP is swapped in tests.
var lookupIP = net.LookupIP

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
