package flowbuf

import "errors"

var (
	ErrInvalidCapacity    = errors.New("flowbuf: capacity must be > 0 and <= MaxCapacity")
	ErrRequestTooLarge    = errors.New("flowbuf: request exceeds buffer capacity")
	ErrInsufficientSpace  = errors.New("flowbuf: insufficient free space")
	ErrNoReservation      = errors.New("flowbuf: no pending reservation")
	ErrReservationPending = errors.New("flowbuf: reservation pending, commit it first")
	ErrWriterActive       = errors.New("flowbuf: buffer already has an active writer")
	ErrClosed             = errors.New("flowbuf: handle is closed")
)
