package diskkv

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// runLoad performs the one-shot catalog read, per spec.md §4.3. It runs on
// its own goroutine, installed by Store.ensureLoadStartedLocked with sig already
// published as s.loadSignal; runLoad owns resolving it. The suspension
// point (opening and draining the catalog file) happens with s.mu
// released; runLoad re-acquires it only to publish results and drain
// pendingCache.
func (s *Store) runLoad(sig *signal[map[string]*Entry]) {
	cache, _ := s.readCatalog() // a read/parse failure is folded into an empty cache, not surfaced.

	s.mu.Lock()
	s.cache = cache
	s.drainPendingLocked()
	s.loadSignal = nil
	s.mu.Unlock()

	sig.resolve(cache, nil)
}

// readCatalog opens the catalog file and decodes it into a fresh map. A
// missing or unreadable file, a bad header or a version mismatch results
// in an empty map; a truncated/malformed record ends decoding and keeps the
// records decoded before it. No error is propagated, per spec.md §4.3's
// "the loader never propagates I/O errors to callers" rule.
func (s *Store) readCatalog() (map[string]*Entry, error) {
	cache := make(map[string]*Entry)

	f, err := s.fs.Open(s.catalogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}

		return cache, nil
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return cache, nil
	}

	if dec.versionMismatch {
		return cache, nil
	}

	for {
		rec, done, err := dec.next()
		if done {
			if err != nil && !errors.Is(err, io.EOF) {
				// Malformed catalog: keep whatever was decoded so far, per
				// spec.md §4.3's "as if end-of-stream had been reached at
				// the furthest successful boundary."
			}

			break
		}

		entry, err := s.entryFromRecord(dec.mode, rec)
		if err != nil {
			continue
		}

		if s.opts.IsEntryValid != nil && !s.opts.IsEntryValid(*entry) {
			continue
		}

		cache[entry.Key] = entry
	}

	return cache, nil
}

// entryFromRecord builds an *Entry from a decoded catalogRecord, attaching
// a sidecar reader factory in MultiFile mode or the inline value in
// SingleFile mode. mode is the catalog's own mode byte, not necessarily
// this Store's configured mode (a directory written under one mode and
// reopened under another is still decoded correctly; the mismatch is the
// operator's problem, not the loader's).
func (s *Store) entryFromRecord(mode Mode, rec catalogRecord) (*Entry, error) {
	meta, err := decodeMeta(rec.Meta)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Key: rec.Key, Meta: meta}

	if s.opts.Deserialize != nil {
		entry.Deserialized = Pending
	}

	switch mode {
	case MultiFile:
		rel, ok := entry.sidecarPath()
		if ok {
			abs := filepath.Join(s.dir, rel)
			entry.Reader = sidecarReaderFactory(s.fs, abs)
		}
	default:
		entry.Value = rec.Value
	}

	return entry, nil
}
