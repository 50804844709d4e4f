package flowbuf

import "sync/atomic"

// counters are always collected; every field is updated atomically.
type counters struct {
	publishes          atomic.Uint64
	tryPublishFailures atomic.Uint64
	reserveFailures    atomic.Uint64
	publishWaits       atomic.Uint64
	consumes           atomic.Uint64
	consumedItems      atomic.Uint64
	consumeFailures    atomic.Uint64
	readersAttached    atomic.Uint64
	readersDetached    atomic.Uint64
}

// Stats is a point-in-time snapshot of a buffer.
type Stats struct {
	Capacity int
	Readers  int

	// Published is the write cursor: the number of items ever published.
	Published uint64
	// Backlog is the number of published items the slowest reader has
	// not consumed yet.
	Backlog uint64

	Publishes          uint64
	TryPublishFailures uint64
	ReserveFailures    uint64
	PublishWaits       uint64

	Consumes        uint64
	ConsumedItems   uint64
	ConsumeFailures uint64

	ReadersAttached uint64
	ReadersDetached uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Publishes:          c.publishes.Load(),
		TryPublishFailures: c.tryPublishFailures.Load(),
		ReserveFailures:    c.reserveFailures.Load(),
		PublishWaits:       c.publishWaits.Load(),
		Consumes:           c.consumes.Load(),
		ConsumedItems:      c.consumedItems.Load(),
		ConsumeFailures:    c.consumeFailures.Load(),
		ReadersAttached:    c.readersAttached.Load(),
		ReadersDetached:    c.readersDetached.Load(),
	}
}
