package gossip

import (
	"net"

	"github.com/sltlabs/slt-node/internal/wire"
)

// Policy gates which inbound TelemetryNote sources are accepted.
type Policy struct {
	SelfPublic                     [32]byte
	SelfExternalEndpoint           wire.Endpoint
	AllowPrivateIPAddresses        bool
	AllowSameExternalIPAddress     bool
	VersionMajor                   uint16
}

// Accept reports whether an inbound TelemetryNote from the given endpoint
// and claimed version should be admitted, per spec.md's inbound-telemetry
// rejection rules: version-major mismatch, self-origin, and private/same
// external IP unless explicitly allowed.
func (p Policy) Accept(fromPub [32]byte, ep wire.Endpoint, version wire.Version) (ok bool, reason string) {
	if version.Major != p.VersionMajor {
		return false, "version_major_mismatch"
	}
	if fromPub == p.SelfPublic {
		return false, "self_origin"
	}
	ip := net.IPv4(ep.Addr[0], ep.Addr[1], ep.Addr[2], ep.Addr[3])
	if !p.AllowPrivateIPAddresses && isPrivateIP(ip) {
		return false, "private_ip"
	}
	if !p.AllowSameExternalIPAddress && sameIP(ep, p.SelfExternalEndpoint) {
		return false, "same_external_ip"
	}
	return true, ""
}

func sameIP(a, b wire.Endpoint) bool {
	return a.Addr == b.Addr
}

func isPrivateIP(ip net.IP) bool {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
