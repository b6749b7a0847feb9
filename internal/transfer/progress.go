package transfer

import (
	"time"

	"golang.org/x/time/rate"
)

const progressTick = 100 * time.Millisecond

// ewmaAlpha weights the most recent rate sample; at a 100ms tick cadence
// about 89% of the weight falls on the last second of samples.
const ewmaAlpha = 0.2

// ProgressTracker aggregates bytes transferred into a rate-limited stream
// of Progress snapshots, emitting at most once per 100 ms.
type ProgressTracker struct {
	total    int64
	done     int64
	rateBps  float64
	lastTime time.Time
	lastDone int64
	limiter  rate.Sometimes
}

func NewProgressTracker(total int64) *ProgressTracker {
	return &ProgressTracker{
		total:    total,
		lastTime: time.Now(),
		limiter:  rate.Sometimes{Interval: progressTick},
	}
}

// Add records n newly transferred bytes and invokes report with a fresh
// Progress snapshot, throttled to at most once per 100 ms. The final call
// (done == total) is expected to be forced by the caller bypassing the
// throttle, see Flush.
func (p *ProgressTracker) Add(n int64, report func(Progress)) {
	p.done += n
	p.limiter.Do(func() {
		p.sample(report)
	})
}

// Flush forces an immediate report regardless of the throttle window,
// intended for the terminal 100% update.
func (p *ProgressTracker) Flush(report func(Progress)) {
	p.sample(report)
}

func (p *ProgressTracker) sample(report func(Progress)) {
	now := time.Now()
	elapsed := now.Sub(p.lastTime).Seconds()
	if elapsed > 0 {
		instant := float64(p.done-p.lastDone) / elapsed
		p.rateBps = ewmaAlpha*instant + (1-ewmaAlpha)*p.rateBps
	}
	p.lastTime = now
	p.lastDone = p.done

	var eta time.Duration
	if p.rateBps > 0 {
		remaining := float64(p.total - p.done)
		eta = time.Duration((remaining / p.rateBps) * float64(time.Second))
	}

	report(Progress{
		BytesDone:  p.done,
		BytesTotal: p.total,
		RateBps:    p.rateBps,
		ETA:        eta,
	})
}
