package discovery

import (
	"net"
	"testing"
)

func TestHosts_Slash24(t *testing.T) {
	hosts, err := Hosts("192.168.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 254 {
		t.Fatalf("len(hosts) = %d, want 254", len(hosts))
	}
	if hosts[0].String() != "192.168.1.1" {
		t.Errorf("first host = %s, want 192.168.1.1", hosts[0])
	}
	if hosts[253].String() != "192.168.1.254" {
		t.Errorf("last host = %s, want 192.168.1.254", hosts[253])
	}
}

func TestHosts_Slash30(t *testing.T) {
	hosts, err := Hosts("10.0.0.0/30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("len(hosts) = %d, want 2", len(hosts))
	}
	if hosts[0].String() != "10.0.0.1" || hosts[1].String() != "10.0.0.2" {
		t.Errorf("hosts = %v, want [10.0.0.1 10.0.0.2]", hosts)
	}
}

func TestHosts_Slash32(t *testing.T) {
	// a single-address prefix is the host itself
	hosts, err := Hosts("10.0.0.5/32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 1 || hosts[0].String() != "10.0.0.5" {
		t.Errorf("hosts = %v, want [10.0.0.5]", hosts)
	}
}

func TestHosts_MasksHostBits(t *testing.T) {
	hosts, err := Hosts("192.168.1.77/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hosts[0].String() != "192.168.1.1" {
		t.Errorf("first host = %s, want 192.168.1.1 (prefix should be masked)", hosts[0])
	}
}

func TestHosts_TooLarge(t *testing.T) {
	if _, err := Hosts("10.0.0.0/8"); err == nil {
		t.Error("expected error for /8 network, got nil")
	}
}

func TestHosts_IPv6Rejected(t *testing.T) {
	if _, err := Hosts("fd00::/64"); err == nil {
		t.Error("expected error for IPv6 network, got nil")
	}
}

func TestHosts_InvalidCIDR(t *testing.T) {
	cases := []string{"", "192.168.1.0", "192.168.1.0/33", "not-a-network"}
	for _, cidr := range cases {
		if _, err := Hosts(cidr); err == nil {
			t.Errorf("expected error for %q, got nil", cidr)
		}
	}
}

func TestSameMAC(t *testing.T) {
	a, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	b, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	c, _ := net.ParseMAC("aa:bb:cc:dd:ee:00")

	if !SameMAC(a, b) {
		t.Error("case-insensitive parse of the same MAC should compare equal")
	}
	if SameMAC(a, c) {
		t.Error("different MACs should not compare equal")
	}
	if SameMAC(a, nil) {
		t.Error("nil should not equal a real MAC")
	}
}
