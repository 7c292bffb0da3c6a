package diskkv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// scheduleFlushLocked implements spec.md §4.4's coalescing rules. Callers
// must hold s.mu.
func (s *Store) scheduleFlushLocked() {
	delay := s.opts.flushDelay()
	if delay < 0 {
		return
	}

	if s.flushSignal != nil {
		s.writeAfterFlush = true
		return
	}

	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.flushTimer = nil
		s.mu.Unlock()

		s.runFlush(nil)
	})
}

// Flush forces an immediate flush attempt (bypassing the coalescing
// timer) and blocks until it, or a flush already in progress, completes.
func (s *Store) Flush() error {
	done := make(chan error, 1)

	s.runFlush(func(err error) { done <- err })

	return <-done
}

// runFlush implements spec.md §4.4 steps 1-10.
func (s *Store) runFlush(cb func(error)) {
	s.mu.Lock()

	if s.cache == nil {
		sig := s.ensureLoadStartedLocked()
		s.mu.Unlock()
		sig.wait()
		s.runFlush(cb)

		return
	}

	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}

	if !s.modified {
		inProgress := s.flushSignal
		s.mu.Unlock()

		if inProgress != nil {
			_, err := inProgress.wait()
			if cb != nil {
				cb(err)
			}

			return
		}

		if cb != nil {
			cb(nil)
		}

		return
	}

	if s.flushSignal != nil {
		inProgress := s.flushSignal
		s.mu.Unlock()

		go func() {
			inProgress.wait()
			s.runFlush(cb)
		}()

		return
	}

	s.modified = false
	sig := newSignal[struct{}]()
	s.flushSignal = sig

	keys := make([]string, 0, len(s.cache))
	for k := range s.cache {
		keys = append(keys, k)
	}

	mode := s.opts.mode()
	s.mu.Unlock()

	err := s.writeCatalog(keys, mode)

	s.mu.Lock()
	s.flushSignal = nil

	if err != nil {
		s.modified = true
	}

	writeAfter := s.writeAfterFlush
	s.writeAfterFlush = false
	s.mu.Unlock()

	sig.resolve(struct{}{}, err)

	if writeAfter {
		s.mu.Lock()
		s.scheduleFlushLocked()
		s.mu.Unlock()
	}

	if cb != nil {
		cb(err)
	}
}

// writeCatalog serializes the live map to a fresh temp file and atomically
// renames it into place. keys is the snapshot of the live map's key set at
// flush start (spec.md §4.4 step 8); entries removed concurrently are
// skipped rather than erroring.
func (s *Store) writeCatalog(keys []string, mode Mode) error {
	id, err := uuid.NewUUID()
	if err != nil {
		return fmt.Errorf("generate flush temp name: %w", err)
	}

	tmpPath := filepath.Join(s.dir, "tmp"+id.String())

	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create flush temp file: %w", err)
	}

	if werr := s.writeCatalogBody(f, tmpPath, keys, mode); werr != nil {
		f.Close()
		s.fs.Remove(tmpPath)

		return werr
	}

	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)

		return fmt.Errorf("sync flush temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)

		return fmt.Errorf("close flush temp file: %w", err)
	}

	if err := s.fs.Remove(s.catalogFile); err != nil && !os.IsNotExist(err) {
		s.fs.Remove(tmpPath)

		return fmt.Errorf("remove old catalog: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.catalogFile); err != nil {
		s.fs.Remove(tmpPath)

		return fmt.Errorf("rename flush temp file into place: %w", err)
	}

	return nil
}

func (s *Store) writeCatalogBody(w io.Writer, tmpPath string, keys []string, mode Mode) error {
	if _, err := w.Write(encodeHeader(catalogVersion, mode)); err != nil {
		return err
	}

	for _, key := range keys {
		meta, value, reader, sidecarSig, ok := s.snapshotEntryLocked(key, mode)
		if !ok {
			continue
		}

		if mode == MultiFile && sidecarSig != nil {
			if _, err := sidecarSig.wait(); err != nil {
				return fmt.Errorf("await sidecar write for %q: %w", key, err)
			}

			meta, value, reader, _, ok = s.snapshotEntryLocked(key, mode)
			if !ok {
				continue
			}
		}

		metaBytes, err := encodeMeta(meta)
		if err != nil {
			return fmt.Errorf("encode meta for %q: %w", key, err)
		}

		var valueBytes []byte

		if mode == SingleFile {
			valueBytes, err = resolveInlineValue(value, reader)
			if err != nil {
				return fmt.Errorf("resolve inline value for %q: %w", key, err)
			}
		}

		if err := writeRecord(w, mode, key, metaBytes, valueBytes); err != nil {
			return fmt.Errorf("write record for %q: %w", key, err)
		}
	}

	return nil
}

// snapshotEntryLocked takes a point-in-time copy of the fields of the live
// map's current entry for key, needed to emit it, plus its sidecar
// in-flight signal if any. ok is false if the key was concurrently removed.
//
// A MultiFile entry that carries neither a sidecar path nor an in-flight
// signal is one whose previous write attempt failed: runSidecarWrite
// deletes an entry's signal from s.sidecarWrites on failure too, so a
// failed write and a never-started one look identical from here. Without
// re-arming, writeCatalogBody would see sidecarSig == nil, skip the wait
// entirely, and emit a record with no sidecar reference and no inlined
// value — losing the value for good. Re-starting the write here instead
// gives writeCatalogBody a fresh signal to wait on, so a write that keeps
// failing keeps failing the flush (and keeps s.modified set for the next
// attempt) rather than ever completing with the value silently dropped.
func (s *Store) snapshotEntryLocked(key string, mode Mode) (meta map[string]any, value []byte, reader func() (io.ReadCloser, error), sidecarSig *signal[struct{}], ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.cache[key]
	if !exists {
		return nil, nil, nil, nil, false
	}

	if mode == MultiFile {
		_, hasSidecarPath := entry.sidecarPath()
		_, inFlight := s.sidecarWrites[entry]

		if !hasSidecarPath && !inFlight {
			s.beginSidecarWriteLocked(entry)
		}
	}

	return entry.Meta, entry.Value, entry.Reader, s.sidecarWrites[entry], true
}

// resolveInlineValue produces the bytes to inline in SingleFile mode: the
// entry's value directly, or a full drain of its reader. A reader that
// fails to yield a stream fails with the reader's own error; an entry with
// neither a value nor a reader is ErrIllegalState.
func resolveInlineValue(value []byte, reader func() (io.ReadCloser, error)) ([]byte, error) {
	switch {
	case value != nil:
		return value, nil
	case reader != nil:
		rc, err := reader()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		return io.ReadAll(rc)
	default:
		return nil, ErrIllegalState
	}
}
