package mdns

import (
	"net"
	"testing"
)

func TestSelectInterfacePrefersWifiName(t *testing.T) {
	ifaces := []net.Interface{
		{Name: "eth0", Flags: net.FlagUp},
		{Name: "Wi-Fi", Flags: net.FlagUp},
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
	}
	got := selectInterface(ifaces)
	if got == nil || got.Name != "Wi-Fi" {
		t.Fatalf("selectInterface = %+v, want Wi-Fi", got)
	}
}

func TestSelectInterfaceFallsBackToFirstUpNonLoopback(t *testing.T) {
	ifaces := []net.Interface{
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Name: "eth0", Flags: net.FlagUp},
	}
	got := selectInterface(ifaces)
	if got == nil || got.Name != "eth0" {
		t.Fatalf("selectInterface = %+v, want eth0", got)
	}
}

func TestSelectInterfaceReturnsNilWhenNoneUsable(t *testing.T) {
	ifaces := []net.Interface{
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Name: "eth0", Flags: 0},
	}
	if got := selectInterface(ifaces); got != nil {
		t.Fatalf("selectInterface = %+v, want nil", got)
	}
}
