package flowbuf

import (
	"runtime"
	"time"

	"github.com/valyala/fastrand"
)

const goschedEvery = 64 // reduce runtime.Gosched() frequency in hot loops

// backoff escalates from busy polling to yielding to short randomized
// sleeps. It is owned by a single goroutine.
type backoff struct {
	cfg   WaitStrategy
	polls int
}

func (b *backoff) wait() {
	b.polls++
	switch {
	case b.polls <= b.cfg.Spins:
		if b.polls%goschedEvery == 0 {
			runtime.Gosched()
		}
	case b.polls <= b.cfg.Spins+b.cfg.Yields || b.cfg.MaxSleep <= 0:
		runtime.Gosched()
	default:
		// jitter keeps a stalled writer from polling in lockstep with
		// readers that also back off
		half := uint32(b.cfg.MaxSleep / 2)
		time.Sleep(time.Duration(half + fastrand.Uint32n(half+1)))
	}
}

func (b *backoff) reset() {
	b.polls = 0
}
