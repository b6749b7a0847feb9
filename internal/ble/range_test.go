package ble

import (
	"testing"
	"time"
)

func TestRangeTrackerSweepReportsStalePeers(t *testing.T) {
	tr := newRangeTracker()
	base := time.Now()

	tr.touch("ble:aa:bb:cc:dd:ee:ff", base)

	if lost := tr.sweep(base.Add(5*time.Second), outOfRangeTimeout); len(lost) != 0 {
		t.Fatalf("sweep before timeout = %v, want none", lost)
	}

	lost := tr.sweep(base.Add(outOfRangeTimeout), outOfRangeTimeout)
	if len(lost) != 1 || lost[0] != "ble:aa:bb:cc:dd:ee:ff" {
		t.Fatalf("sweep at timeout = %v, want [ble:aa:bb:cc:dd:ee:ff]", lost)
	}

	if lost := tr.sweep(base.Add(2*outOfRangeTimeout), outOfRangeTimeout); len(lost) != 0 {
		t.Fatalf("sweep reported %v twice, want reported once only", lost)
	}
}

func TestRangeTrackerTouchResetsTimeout(t *testing.T) {
	tr := newRangeTracker()
	base := time.Now()

	tr.touch("peer-1", base)
	tr.touch("peer-1", base.Add(9*time.Second))

	if lost := tr.sweep(base.Add(10*time.Second), outOfRangeTimeout); len(lost) != 0 {
		t.Fatalf("sweep = %v, want none (peer re-touched before timeout)", lost)
	}
}
