package diskkv

import (
	"time"

	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

// Mode selects where entry values live on disk.
type Mode uint8

const (
	// SingleFile inlines values in the catalog file.
	SingleFile Mode = 1
	// MultiFile externalizes values to per-entry sidecar files.
	MultiFile Mode = 2
)

const catalogVersion = 1

// DefaultFlushDelay is the coalescing window applied when Options.FlushDelay
// is left nil.
const DefaultFlushDelay = 1000 * time.Millisecond

// Options configure a Store.
type Options struct {
	// Dir is the root directory. Created if missing. Required.
	Dir string

	// FlushDelay is the coalescing window. nil means DefaultFlushDelay is
	// used. An explicit zero is distinct from nil: it means "flush on the
	// next scheduler tick," i.e. no coalescing window, not "use the
	// default." A negative value disables flushing entirely (Flush must be
	// called explicitly).
	FlushDelay *time.Duration

	// Mode selects inline vs. sidecar value storage. Zero defaults to
	// SingleFile.
	Mode Mode

	// Encoding names the text encoding applied to a string value passed to
	// Put (and, in reverse, to bytes decoded back to a string via
	// Store.DecodeString): one of "" or "utf8" (the default — a Go string
	// already is its UTF-8 bytes), "base64", or "hex". []byte values and
	// Serialize-backed values are unaffected.
	Encoding string

	// Serialize converts a non-bytes value to bytes. Required only if
	// non-byte, non-string values are ever put.
	Serialize func(v any) ([]byte, error)

	// Deserialize is never called by the store itself; when it is set, put
	// and loaded entries are marked Deserialized = Pending.
	Deserialize func([]byte) (any, error)

	// IsEntryValid is consulted per entry during load; entries for which it
	// returns false are dropped from the live map.
	IsEntryValid func(Entry) bool

	// FS is the filesystem abstraction used for all I/O. Defaults to
	// fs.NewReal().
	FS fs.FS

	// DisableLock skips acquiring the directory lock. Intended for tests
	// that open the same fixture directory from multiple short-lived Store
	// values within one goroutine.
	DisableLock bool
}

func (o Options) mode() Mode {
	if o.Mode == 0 {
		return SingleFile
	}

	return o.Mode
}

func (o Options) flushDelay() time.Duration {
	if o.FlushDelay == nil {
		return DefaultFlushDelay
	}

	return *o.FlushDelay
}

// Delay returns a pointer to d, for populating Options.FlushDelay inline
// (Go has no address-of-literal syntax for a struct field of pointer
// type).
func Delay(d time.Duration) *time.Duration {
	return &d
}

func (o Options) encoding() string {
	if o.Encoding == "" {
		return "utf8"
	}

	return o.Encoding
}

func (o Options) filesystem() fs.FS {
	if o.FS == nil {
		return fs.NewReal()
	}

	return o.FS
}
