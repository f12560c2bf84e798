package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/arp"

	"github.com/AddisonG/timtamcam/internal/debug"
)

// replyTimeout bounds how long we wait for ARP replies after probing.
const replyTimeout = 3 * time.Second

// FindIPByMAC locates a device on the local network by its MAC address.
// It sends an ARP request to every host in the CIDR through the given
// interface and returns the IP of the first reply with a matching sender.
// Needs CAP_NET_RAW (or root) for the raw ARP socket.
func FindIPByMAC(ctx context.Context, ifaceName, cidr, mac string) (netip.Addr, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("discovery: parse mac %q: %w", mac, err)
	}

	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("discovery: interface %q: %w", ifaceName, err)
	}

	hosts, err := Hosts(cidr)
	if err != nil {
		return netip.Addr{}, err
	}

	client, err := arp.Dial(ifi)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("discovery: open ARP socket on %s: %w", ifaceName, err)
	}
	defer client.Close()

	debug.Verbose("Discovery: probing %d hosts on %s for %s", len(hosts), cidr, hw)
	for _, ip := range hosts {
		if err := client.Request(ip); err != nil {
			debug.Trace("Discovery: request %s failed: %v", ip, err)
		}
	}

	deadline := time.Now().Add(replyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := client.SetReadDeadline(deadline); err != nil {
		return netip.Addr{}, fmt.Errorf("discovery: set deadline: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		default:
		}

		pkt, _, err := client.Read()
		if err != nil {
			// deadline reached without a matching reply
			return netip.Addr{}, fmt.Errorf("discovery: device %s not found on %s: %w", hw, cidr, err)
		}
		if pkt.Operation != arp.OperationReply {
			continue
		}
		debug.Trace("Discovery: reply from %s (%s)", pkt.SenderIP, pkt.SenderHardwareAddr)
		if SameMAC(pkt.SenderHardwareAddr, hw) {
			debug.Info("Discovery: found %s at %s", hw, pkt.SenderIP)
			return pkt.SenderIP, nil
		}
	}
}

// Hosts expands an IPv4 CIDR into its usable host addresses, dropping the
// network and broadcast addresses for prefixes of /30 and shorter.
func Hosts(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse network %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("discovery: only IPv4 networks are supported, got %q", cidr)
	}
	if prefix.Bits() < 16 {
		return nil, fmt.Errorf("discovery: network %q too large to scan (min /16)", cidr)
	}

	prefix = prefix.Masked()
	var hosts []netip.Addr
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr)
	}
	if prefix.Bits() <= 30 && len(hosts) >= 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

// SameMAC compares two hardware addresses byte for byte.
func SameMAC(a, b net.HardwareAddr) bool {
	return bytes.Equal(a, b)
}
