package urlutil

import (
	"fmt"
	"net"
)

// privateRanges are the loopback, private, link-local, CGNAT and multicast blocks
// a fetch must never reach when SSRF protection is on.
var privateRanges = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"0.0.0.0/8",
	"224.0.0.0/4",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
	"ff00::/8",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in SSRF private ranges: %s", cidr))
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// IsPrivateIP reports whether ip is in a private or reserved range
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, ipNet := range privateRanges {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateHostNotPrivateIP rejects IP literals in private ranges.
// Domain names pass; check the resolved addresses with ValidateResolvedIP.
func ValidateHostNotPrivateIP(hostname string) error {
	ip := net.ParseIP(hostname)
	if ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("host is a private/reserved IP address: %s", hostname)
	}
	return nil
}

// ValidateResolvedIP rejects a resolved address in a private range (DNS rebinding)
func ValidateResolvedIP(ip net.IP) error {
	if IsPrivateIP(ip) {
		return fmt.Errorf("resolved IP is in a private/reserved range: %s", ip.String())
	}
	return nil
}
