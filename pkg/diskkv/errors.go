package diskkv

import "errors"

// Sentinel errors returned by Store operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, diskkv.ErrBusy) {
//	    // another process owns this directory
//	}
var (
	// ErrMissingSerializer indicates a non-bytes value was written without a
	// Serialize function configured. Fatal at the operation that emitted the
	// value (Put, flush, or sidecar write).
	ErrMissingSerializer = errors.New("diskkv: value requires Serialize but none is configured")

	// ErrTooLarge indicates a key, meta blob, or inline value exceeds the
	// codec's frame length limits (64KiB for keys/meta, 4GiB for inline
	// values). Values are never silently truncated.
	ErrTooLarge = errors.New("diskkv: value exceeds encoding limit")

	// ErrIllegalState indicates a programmer error: an entry with neither a
	// usable Value nor a usable Reader was written out.
	ErrIllegalState = errors.New("diskkv: entry has neither value nor reader")

	// ErrInvalidInput indicates invalid arguments at a public API boundary
	// (empty key, nil entry). This is a programming error.
	ErrInvalidInput = errors.New("diskkv: invalid input")

	// ErrBusy indicates another Store already holds the directory lock.
	//
	// Recovery: this store is single-writer-per-directory; close the other
	// Store first, or point this one at a different directory.
	ErrBusy = errors.New("diskkv: directory busy")

	// ErrClosed indicates an operation was attempted on a closed Store.
	ErrClosed = errors.New("diskkv: store closed")
)
