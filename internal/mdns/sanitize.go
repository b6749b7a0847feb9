package mdns

import "strings"

const maxInstanceNameLen = 63

// SanitizeInstanceName applies the service-name rule: keep letters,
// digits, '-', '_'; truncate to 63 characters; default to "Windows-Device"
// when nothing survives.
func SanitizeInstanceName(displayName string) string {
	var b strings.Builder
	for _, r := range displayName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= maxInstanceNameLen {
			break
		}
	}
	name := b.String()
	if name == "" {
		return "Windows-Device"
	}
	return name
}
