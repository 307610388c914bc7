package geo

import "net"

var (
	ipv4Mask = net.CIDRMask(24, 32)
	ipv6Mask = net.CIDRMask(48, 128)
)

// AnonymizeIP zeroes the host part of an address: IPv4 to /24, IPv6 to /48.
// Unparseable input becomes the empty string.
func AnonymizeIP(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(ipv4Mask).String()
	}
	return ip.Mask(ipv6Mask).String()
}
