package transfer

import (
	"testing"
	"time"
)

func TestProgressTrackerFlushReportsCurrentTotals(t *testing.T) {
	p := NewProgressTracker(1000)
	p.done = 400
	p.lastTime = time.Now().Add(-500 * time.Millisecond)
	p.lastDone = 0

	var got Progress
	p.Flush(func(pr Progress) { got = pr })

	if got.BytesDone != 400 || got.BytesTotal != 1000 {
		t.Fatalf("got = %+v", got)
	}
	if got.RateBps <= 0 {
		t.Errorf("RateBps = %v, want > 0", got.RateBps)
	}
	if got.ETA <= 0 {
		t.Errorf("ETA = %v, want > 0", got.ETA)
	}
}

func TestProgressTrackerAddIsThrottled(t *testing.T) {
	p := NewProgressTracker(100)
	calls := 0
	for i := 0; i < 50; i++ {
		p.Add(1, func(Progress) { calls++ })
	}
	if calls > 2 {
		t.Errorf("report invoked %d times across 50 rapid Add calls, want throttled to ~1", calls)
	}
}
