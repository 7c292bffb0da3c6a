package diskkv

import "io"

// DeserializedState is a tri-state flag consumers use to track whether an
// entry's Value still needs to be passed through Deserialize. The store
// never interprets it; it only sets it to Pending when Options.Deserialize
// is configured (on Put, if still NotApplicable, and on load). The catalog
// does not record it, so a reloaded entry starts from that default again.
type DeserializedState uint8

const (
	// NotApplicable means the entry carries raw bytes; no deserialize step
	// applies.
	NotApplicable DeserializedState = iota
	// Pending means a deserialize step is expected but has not run yet.
	Pending
	// Done means the deserialize step has already run.
	Done
)

// Entry is the record stored per key.
//
// Exactly one of Value or Reader must be available whenever the entry is
// written out (to a sidecar, or inline during flush). After sidecar
// externalization, Value is dropped and Reader is rebound to a deferred
// reader over the sidecar path.
type Entry struct {
	Key  string
	Meta map[string]any

	// Value is the in-memory byte representation, when available.
	Value []byte

	// Reader lazily produces a fresh byte stream for the value. Called at
	// most once per flush or sidecar write; the result must not be reused.
	Reader func() (io.ReadCloser, error)

	Deserialized DeserializedState
}

// metaFile is the well-known meta key naming a sidecar's path, relative to
// the store's directory.
const metaFile = "file"

// sidecarPath returns the entry's sidecar-relative path and whether one is
// set.
func (e *Entry) sidecarPath() (string, bool) {
	if e.Meta == nil {
		return "", false
	}

	v, ok := e.Meta[metaFile]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok && s != ""
}

// setSidecarPath records the sidecar path on the entry's meta map, creating
// the map if necessary.
func (e *Entry) setSidecarPath(rel string) {
	if e.Meta == nil {
		e.Meta = make(map[string]any, 1)
	}

	e.Meta[metaFile] = rel
}

// clone returns a shallow copy of the entry safe to store independently in
// the live map (the caller's Meta map is not aliased).
func (e Entry) clone() Entry {
	out := e
	if e.Meta != nil {
		out.Meta = make(map[string]any, len(e.Meta))
		for k, v := range e.Meta {
			out.Meta[k] = v
		}
	}

	return out
}
