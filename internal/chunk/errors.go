package chunk

import "errors"

var (
	// ErrInvalidRange is returned for an empty block range.
	ErrInvalidRange = errors.New("invalid block range")

	// ErrInvalidIDLength is returned when a hex id decodes to the wrong number of bytes.
	ErrInvalidIDLength = errors.New("invalid id length")

	// ErrInvalidFileCount is returned when the files mapping is empty or oversized.
	ErrInvalidFileCount = errors.New("invalid file count")

	// ErrUnknownStatus is returned when a persisted status name is not recognised.
	ErrUnknownStatus = errors.New("unknown chunk status")
)
