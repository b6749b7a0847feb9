package ble

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	hash := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	encoded := encodeFrame(hash)

	if encoded[0] != frameType || encoded[1] != frameFlags {
		t.Fatalf("unexpected frame header: % x", encoded[:2])
	}

	decoded, ok := decodeFrame(encoded)
	if !ok {
		t.Fatal("decodeFrame: expected ok=true")
	}
	if !bytes.Equal(decoded, hash) {
		t.Errorf("decodeFrame = % x, want % x", decoded, hash)
	}
}

func TestDecodeFrameRejectsWrongHeader(t *testing.T) {
	bad := []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0}
	if _, ok := decodeFrame(bad); ok {
		t.Error("decodeFrame accepted a frame with the wrong type/flags")
	}
}

func TestDecodeFrameRejectsShortData(t *testing.T) {
	if _, ok := decodeFrame([]byte{frameType, frameFlags, 1, 2}); ok {
		t.Error("decodeFrame accepted data shorter than 10 bytes")
	}
}

func TestFormatPeerIDAndLastSix(t *testing.T) {
	if got := FormatPeerID("AA:BB:CC:DD:EE:FF"); got != "ble:aa:bb:cc:dd:ee:ff" {
		t.Errorf("FormatPeerID = %q", got)
	}
	if got := lastSixOfMAC("AA:BB:CC:DD:EE:FF"); got != "DDEEFF" {
		t.Errorf("lastSixOfMAC = %q, want DDEEFF", got)
	}
}
