package mdns

import "testing"

func TestSanitizeInstanceNameKeepsAllowedChars(t *testing.T) {
	got := SanitizeInstanceName("Jordan's iPhone (2)!")
	want := "JordansiPhone2"
	if got != want {
		t.Errorf("SanitizeInstanceName = %q, want %q", got, want)
	}
}

func TestSanitizeInstanceNameTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	got := SanitizeInstanceName(long)
	if len(got) != maxInstanceNameLen {
		t.Errorf("len(SanitizeInstanceName) = %d, want %d", len(got), maxInstanceNameLen)
	}
}

func TestSanitizeInstanceNameEmptyDefaultsToWindowsDevice(t *testing.T) {
	if got := SanitizeInstanceName("!!!"); got != "Windows-Device" {
		t.Errorf("SanitizeInstanceName(empty-result) = %q, want Windows-Device", got)
	}
	if got := SanitizeInstanceName(""); got != "Windows-Device" {
		t.Errorf("SanitizeInstanceName(\"\") = %q, want Windows-Device", got)
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"deviceType=Mac", "transport=wifidirect,wifi", "malformed"})
	if got["deviceType"] != "Mac" {
		t.Errorf("deviceType = %q", got["deviceType"])
	}
	if got["transport"] != "wifidirect,wifi" {
		t.Errorf("transport = %q", got["transport"])
	}
	if _, ok := got["malformed"]; ok {
		t.Error("malformed (no '=') should not produce a key")
	}
}
