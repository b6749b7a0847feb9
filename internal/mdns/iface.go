package mdns

import (
	"net"
	"regexp"
)

var wifiNamePattern = regexp.MustCompile(`(?i)wi-?fi|wireless|wlan`)

// selectInterface implements the address-selection preference: an
// interface named Wi-Fi/Wireless/WLAN (case-insensitive), else the first
// up non-loopback interface, else nil (publish on the wildcard).
func selectInterface(ifaces []net.Interface) *net.Interface {
	var fallback *net.Interface
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if wifiNamePattern.MatchString(iface.Name) {
			return &iface
		}
		if fallback == nil {
			fallback = &iface
		}
	}
	return fallback
}
