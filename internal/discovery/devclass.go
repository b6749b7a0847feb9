package discovery

import (
	"net"
	"strings"

	"airdrop/internal/registry"
)

func deviceClassFromTXT(txt map[string]string) registry.DeviceClass {
	switch strings.ToLower(txt["deviceType"]) {
	case "iphone":
		return registry.DeviceIPhone
	case "ipad":
		return registry.DeviceIPad
	case "mac":
		return registry.DeviceMac
	case "windows-pc", "windowspc", "windows":
		return registry.DeviceWindowsPC
	default:
		return registry.DeviceUnknown
	}
}

func firstIP(addrs []net.IP) net.IP {
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return nil
}
