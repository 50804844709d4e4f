package flowbuf

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AttachPolicy decides where a new reader starts.
type AttachPolicy int

const (
	// AttachAtHead starts a reader at the write cursor: it only sees data
	// published after it attached.
	AttachAtHead AttachPolicy = iota

	// AttachAtOldest starts a reader at the oldest item still retained,
	// which is the position of the slowest attached reader.
	AttachAtOldest
)

func (p AttachPolicy) String() string {
	switch p {
	case AttachAtHead:
		return "head"
	case AttachAtOldest:
		return "oldest"
	default:
		return "unknown"
	}
}

// ZeroReaderPolicy decides how the writer behaves while no reader is
// attached.
type ZeroReaderPolicy int

const (
	// WriteThrough lets the writer publish freely; data nobody reads is
	// overwritten.
	WriteThrough ZeroReaderPolicy = iota

	// BlockWithoutReaders reports zero free slots until a reader attaches.
	BlockWithoutReaders
)

func (p ZeroReaderPolicy) String() string {
	switch p {
	case WriteThrough:
		return "write-through"
	case BlockWithoutReaders:
		return "block"
	default:
		return "unknown"
	}
}

// WaitStrategy tunes how a blocking Publish waits for free space.
type WaitStrategy struct {
	// Spins is the number of busy polls before the writer starts yielding.
	Spins int
	// Yields is the number of runtime.Gosched rounds before sleeping.
	Yields int
	// MaxSleep caps the randomized sleep between polls.
	MaxSleep time.Duration
}

// DefaultWaitStrategy is used unless WithWaitStrategy is given.
var DefaultWaitStrategy = WaitStrategy{
	Spins:    256,
	Yields:   128,
	MaxSleep: 50 * time.Microsecond,
}

// Option configures a buffer.
type Option func(*options)

type options struct {
	attach        AttachPolicy
	zeroReaders   ZeroReaderPolicy
	doubleMapping bool
	wait          WaitStrategy
	logger        *slog.Logger

	metricsReg  prometheus.Registerer
	metricsName string
}

// WithAttachPolicy sets the default start position of new readers.
func WithAttachPolicy(p AttachPolicy) Option {
	return func(o *options) {
		o.attach = p
	}
}

// WithZeroReaderPolicy sets how the writer behaves with no readers.
func WithZeroReaderPolicy(p ZeroReaderPolicy) Option {
	return func(o *options) {
		o.zeroReaders = p
	}
}

// WithDoubleMapping requests storage mapped twice back to back so that
// wrapped ranges need no mirror copy. It is honoured on Linux for
// pointer-free element types and silently falls back to heap storage
// otherwise.
func WithDoubleMapping() Option {
	return func(o *options) {
		o.doubleMapping = true
	}
}

// WithWaitStrategy overrides DefaultWaitStrategy.
func WithWaitStrategy(w WaitStrategy) Option {
	return func(o *options) {
		o.wait = w
	}
}

// WithLogger sets the logger used for cold-path events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics exports buffer statistics as Prometheus metrics labelled
// with name. A nil registerer or empty name disables export.
func WithMetrics(reg prometheus.Registerer, name string) Option {
	return func(o *options) {
		if reg != nil && name != "" {
			o.metricsReg = reg
			o.metricsName = name
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		attach:      AttachAtHead,
		zeroReaders: WriteThrough,
		wait:        DefaultWaitStrategy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
