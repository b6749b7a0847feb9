package registry

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAddOrUpdateEmitsAddedThenUpdated(t *testing.T) {
	r := New(60*time.Second, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{PeerID: "p1", DisplayName: "Alice"})
	r.AddOrUpdate(Sighting{PeerID: "p1", DeviceClass: DeviceIPhone})

	ev1 := <-r.Events()
	if ev1.Kind != EventAdded {
		t.Fatalf("first event = %v, want added", ev1.Kind)
	}
	ev2 := <-r.Events()
	if ev2.Kind != EventUpdated {
		t.Fatalf("second event = %v, want updated", ev2.Kind)
	}
	if ev2.Peer.DeviceClass != DeviceIPhone {
		t.Errorf("DeviceClass = %v, want iPhone", ev2.Peer.DeviceClass)
	}
	if ev2.Peer.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want preserved \"Alice\"", ev2.Peer.DisplayName)
	}
}

func TestAddOrUpdateNeverOverwritesNonEmptyWithEmpty(t *testing.T) {
	r := New(60*time.Second, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{PeerID: "p1", DisplayName: "Alice", DeviceClass: DeviceMac})
	<-r.Events() // added

	r.AddOrUpdate(Sighting{PeerID: "p1", DisplayName: "", DeviceClass: DeviceUnknown})
	ev := <-r.Events()

	if ev.Peer.DisplayName != "Alice" {
		t.Errorf("DisplayName overwritten with empty: got %q", ev.Peer.DisplayName)
	}
	if ev.Peer.DeviceClass != DeviceMac {
		t.Errorf("DeviceClass overwritten with Unknown: got %v", ev.Peer.DeviceClass)
	}
}

func TestMetadataUnionsWithIncomingWinningOnConflict(t *testing.T) {
	r := New(60*time.Second, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{PeerID: "p1", Metadata: map[string]string{"version": "1", "transport": "wifidirect"}})
	<-r.Events()

	r.AddOrUpdate(Sighting{PeerID: "p1", Metadata: map[string]string{"version": "2"}})
	ev := <-r.Events()

	if ev.Peer.Metadata["version"] != "2" {
		t.Errorf("version = %q, want incoming value 2", ev.Peer.Metadata["version"])
	}
	if ev.Peer.Metadata["transport"] != "wifidirect" {
		t.Errorf("transport = %q, want preserved wifidirect", ev.Peer.Metadata["transport"])
	}
}

const (
	testHash16 = "0011223344556677"
	testHash32 = "00112233445566778899aabbccddeeff"
)

func TestRendezvousBLEThenMDNSCollapsesToOneRecord(t *testing.T) {
	r := New(60*time.Second, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{
		PeerID:       "ble:aa:bb:cc:dd:ee:ff",
		DisplayName:  "ddeeff",
		IdentityHash: testHash16,
		FallbackID:   true,
	})
	<-r.Events() // added under the BLE fallback id

	r.AddOrUpdate(Sighting{
		PeerID:       "Alices-iPhone",
		DisplayName:  "Alices-iPhone",
		DeviceClass:  DeviceIPhone,
		IdentityHash: testHash32,
		IP:           net.ParseIP("10.0.0.9"),
		Port:         8771,
	})

	ev1 := <-r.Events()
	if ev1.Kind != EventRemoved || ev1.Peer.PeerID != "ble:aa:bb:cc:dd:ee:ff" {
		t.Fatalf("event = (%v, %s), want the fallback record removed", ev1.Kind, ev1.Peer.PeerID)
	}
	ev2 := <-r.Events()
	if ev2.Kind != EventAdded || ev2.Peer.PeerID != "Alices-iPhone" {
		t.Fatalf("event = (%v, %s), want the merged record added", ev2.Kind, ev2.Peer.PeerID)
	}
	if ev2.Peer.DeviceClass != DeviceIPhone || ev2.Peer.IP == nil || ev2.Peer.Port != 8771 {
		t.Errorf("merged record lost mDNS facts: %+v", ev2.Peer)
	}
	if ev2.Peer.IdentityHash != testHash32 {
		t.Errorf("IdentityHash = %q, want the longer mDNS prefix", ev2.Peer.IdentityHash)
	}

	if got := r.Get("ble:aa:bb:cc:dd:ee:ff"); got != nil {
		t.Error("fallback id still resolves after the re-key")
	}
	if snap := r.Snapshot(); len(snap) != 1 {
		t.Errorf("Snapshot() = %d records, want 1 merged record", len(snap))
	}
}

func TestRendezvousMDNSThenBLEMergesIntoStableID(t *testing.T) {
	r := New(60*time.Second, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{
		PeerID:       "Alices-iPhone",
		DisplayName:  "Alices-iPhone",
		DeviceClass:  DeviceIPhone,
		IdentityHash: testHash32,
		Port:         8771,
	})
	<-r.Events()

	r.AddOrUpdate(Sighting{
		PeerID:       "ble:aa:bb:cc:dd:ee:ff",
		DisplayName:  "ddeeff",
		IdentityHash: testHash16,
		FallbackID:   true,
	})

	ev := <-r.Events()
	if ev.Kind != EventUpdated || ev.Peer.PeerID != "Alices-iPhone" {
		t.Fatalf("event = (%v, %s), want the stable record updated in place", ev.Kind, ev.Peer.PeerID)
	}
	if ev.Peer.IdentityHash != testHash32 {
		t.Errorf("IdentityHash = %q, shorter BLE prefix should not overwrite", ev.Peer.IdentityHash)
	}
	if ev.Peer.DisplayName != "Alices-iPhone" {
		t.Errorf("DisplayName = %q, fallback MAC tail should not overwrite", ev.Peer.DisplayName)
	}
	if snap := r.Snapshot(); len(snap) != 1 {
		t.Errorf("Snapshot() = %d records, want 1", len(snap))
	}
}

func TestSweepRemovesExpiredAndEmitsRemoved(t *testing.T) {
	r := New(20*time.Millisecond, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{PeerID: "p1", IP: net.ParseIP("10.0.0.5")})
	<-r.Events()

	r.sweepOnce() // not yet expired
	if got := r.Get("p1"); got == nil {
		t.Fatal("peer removed too early")
	}

	time.Sleep(30 * time.Millisecond)
	r.sweepOnce()

	select {
	case ev := <-r.Events():
		if ev.Kind != EventRemoved {
			t.Fatalf("event = %v, want removed", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for removed event")
	}

	if got := r.Get("p1"); got != nil {
		t.Error("Get returned a record after removal")
	}
}

func TestAvailableExcludesExpired(t *testing.T) {
	r := New(10*time.Millisecond, zerolog.Nop())
	defer r.Close()

	r.AddOrUpdate(Sighting{PeerID: "p1"})
	<-r.Events()
	time.Sleep(20 * time.Millisecond)

	if avail := r.Available(); len(avail) != 0 {
		t.Errorf("Available() = %d records, want 0 once stale", len(avail))
	}
	if snap := r.Snapshot(); len(snap) != 1 {
		t.Errorf("Snapshot() = %d records, want 1 (still present until sweep)", len(snap))
	}
}
