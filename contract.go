package flowbuf

// Reader is the consuming side of a buffer. Each reader owns an
// independent cursor; consuming never removes data for other readers.
//
// Views returned by Get alias the buffer storage and must be treated as
// read-only. They stay valid until the reader consumes past them.
type Reader[T any] interface {
	// Get returns up to n unread items starting right after Position().
	// Fewer items than requested is not an error.
	Get(n int) []T

	// Consume advances the cursor by n. It returns false and leaves the
	// cursor unchanged when n exceeds Available().
	Consume(n int) bool

	// Position returns the sequence of the last consumed item, -1 before
	// the first Consume.
	Position() int64

	// Available returns the number of published items not yet consumed.
	Available() int

	// Buffer returns the buffer the reader is attached to.
	Buffer() Buffer[T]

	// Close detaches the reader so it no longer holds back the writer.
	Close() error
}

// Writer is the producing side of a buffer. A buffer has at most one
// active writer.
type Writer[T any] interface {
	// ReserveOutputRange returns a writable view of the next n free slots
	// without publishing them. Publish the range with Commit.
	ReserveOutputRange(n int) ([]T, error)

	// Commit publishes n slots of the pending reservation.
	Commit(n int) error

	// Publish waits for n free slots, calls fill once on them and makes
	// them visible to every reader.
	Publish(fill func(span []T), n int) error

	// PublishWithSequence is Publish for fill routines that need the
	// absolute sequence of the first slot.
	PublishWithSequence(fill func(span []T, seq int64), n int) error

	// TryPublish is the non-blocking Publish. It returns false without
	// calling fill when n slots are not free.
	TryPublish(fill func(span []T), n int) bool

	// TryPublishWithSequence is the non-blocking PublishWithSequence.
	TryPublishWithSequence(fill func(span []T, seq int64), n int) bool

	// Available returns the number of free slots. Readers may free more
	// concurrently, so treat it as a lower bound.
	Available() int

	// Buffer returns the buffer the writer publishes into.
	Buffer() Buffer[T]

	// Close releases the writer slot of the buffer.
	Close() error
}

// Buffer mints readers and writers sharing one storage.
type Buffer[T any] interface {
	// Size returns the allocated capacity, never less than requested.
	Size() int
	NewReader() (Reader[T], error)
	NewWriter() (Writer[T], error)
}

// Cloner is implemented by readers that can be duplicated at their
// current position.
type Cloner[T any] interface {
	Clone() (Reader[T], error)
}

// Constructor builds a Buffer holding at least minSize items.
type Constructor[T any] func(minSize int) (Buffer[T], error)
