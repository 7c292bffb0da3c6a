package diskkv

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

// pendingOp is a staged mutation recorded before the initial load
// completes. A tagged variant rather than a nullable entry, per spec.md
// §9, so a staged removal ("Tombstone") is distinguishable from "no
// pending op for this key."
type pendingOp struct {
	tombstone bool
	entry     *Entry
}

// Store is a persistent, in-memory-backed key/value cache. The zero value
// is not usable; construct with Open.
//
// Exported methods are safe for concurrent use by multiple goroutines —
// the single-threaded-cooperative model spec.md §5 describes is realized
// here as one mutex guarding every in-memory field, released across I/O
// suspension points and re-acquired to apply results.
type Store struct {
	dir         string
	catalogFile string
	opts        Options
	fs          fs.FS
	lockFile    fs.File

	mu              sync.Mutex
	cache           map[string]*Entry
	pendingCache    map[string]pendingOp
	loadSignal      *signal[map[string]*Entry]
	flushSignal     *signal[struct{}]
	flushTimer      *time.Timer
	modified        bool
	writeAfterFlush bool
	closed          bool

	// sidecarWrites tracks in-flight MultiFile value writes, keyed by
	// entry identity — the side table spec.md §9 calls for in place of
	// the source's per-entry data.writeFileDataHolder field.
	sidecarWrites map[*Entry]*signal[struct{}]

	// sidecarWG counts every outstanding sidecar write or delete goroutine
	// spawned off beginSidecarWriteLocked/unlinkSidecarLocked. Free and
	// Close wait on it so neither returns — and Close does not release the
	// directory lock — while a goroutine is still touching s.dir.
	sidecarWG sync.WaitGroup
}

// Open constructs a Store rooted at opts.Dir, creating it if missing, and
// acquires the directory lock unless opts.DisableLock is set.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: Dir is required", ErrInvalidInput)
	}

	fsys := opts.filesystem()

	if err := fsys.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		dir:           opts.Dir,
		catalogFile:   filepath.Join(opts.Dir, "cache"),
		opts:          opts,
		fs:            fsys,
		pendingCache:  make(map[string]pendingOp),
		sidecarWrites: make(map[*Entry]*signal[struct{}]),
	}

	if !opts.DisableLock {
		lockFile, err := acquireLock(fsys, opts.Dir)
		if err != nil {
			return nil, err
		}

		s.lockFile = lockFile
	}

	return s, nil
}

// Get returns the entry for key, waiting on a load if the cache has not
// yet been populated.
func (s *Store) Get(key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidInput
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return Entry{}, false, ErrClosed
	}

	if s.cache != nil {
		entry, ok := s.cache[key]
		s.mu.Unlock()

		if !ok {
			return Entry{}, false, nil
		}

		return entry.clone(), true, nil
	}

	if op, ok := s.pendingCache[key]; ok {
		s.mu.Unlock()

		if op.tombstone {
			return Entry{}, false, nil
		}

		return op.entry.clone(), true, nil
	}

	sig := s.ensureLoadStartedLocked()
	s.mu.Unlock()

	cache, _ := sig.wait()

	entry, ok := cache[key]
	if !ok {
		return Entry{}, false, nil
	}

	return entry.clone(), true, nil
}

// Put normalizes value into an Entry and installs it under key. value may
// be []byte, string, or — with Options.Serialize configured — any other
// type.
func (s *Store) Put(key string, value any) error {
	valueBytes, err := s.resolveValueBytes(value)
	if err != nil {
		return err
	}

	return s.PutEntry(key, Entry{Value: valueBytes})
}

// DecodeString converts value back to a string per Options.Encoding, the
// inverse of Put's string branch. Callers that put a string and want it
// back as a string (rather than working with Entry.Value directly) go
// through this rather than a bare string(value) conversion, so a
// non-"utf8" Encoding round-trips correctly.
func (s *Store) DecodeString(value []byte) (string, error) {
	return decodeString(value, s.opts.encoding())
}

// PutEntry installs entry (with Key overwritten to key) under key,
// preserving caller-supplied Meta and, if set, Reader in place of Value.
func (s *Store) PutEntry(key string, entry Entry) error {
	if key == "" {
		return ErrInvalidInput
	}

	if entry.Value == nil && entry.Reader == nil {
		return ErrIllegalState
	}

	e := entry.clone()
	e.Key = key

	if s.opts.Deserialize != nil && e.Deserialized == NotApplicable {
		e.Deserialized = Pending
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if s.opts.mode() == MultiFile {
		s.beginSidecarWriteLocked(&e)
	}

	if s.cache != nil {
		s.cache[key] = &e
		s.modified = true
		s.scheduleFlushLocked()
		s.mu.Unlock()

		return nil
	}

	s.pendingCache[key] = pendingOp{entry: &e}
	s.ensureLoadStartedLocked()
	s.mu.Unlock()

	return nil
}

// Remove deletes key from the cache, unlinking its sidecar in MultiFile
// mode.
func (s *Store) Remove(key string) error {
	if key == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if s.cache != nil {
		if existing, ok := s.cache[key]; ok {
			if s.opts.mode() == MultiFile {
				s.unlinkSidecarLocked(existing)
			}

			delete(s.cache, key)
			s.modified = true
			s.scheduleFlushLocked()
		}

		s.mu.Unlock()

		return nil
	}

	s.pendingCache[key] = pendingOp{tombstone: true}
	s.ensureLoadStartedLocked()
	s.mu.Unlock()

	return nil
}

// Free resets all in-memory state to the post-construction condition,
// waiting out any load or flush already in progress first. The on-disk
// catalog is untouched.
func (s *Store) Free() {
	for {
		s.mu.Lock()
		loadSig := s.loadSignal
		flushSig := s.flushSignal
		s.mu.Unlock()

		if loadSig != nil {
			loadSig.wait()
			continue
		}

		if flushSig != nil {
			flushSig.wait()
			continue
		}

		break
	}

	// Every sidecar write/delete goroutine increments sidecarWG before it
	// touches s.dir and decrements it when done; wait them out before
	// resetting state (and, via Close, releasing the directory lock) so
	// none is left running against a directory this Store no longer owns.
	s.sidecarWG.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}

	s.cache = nil
	s.pendingCache = make(map[string]pendingOp)
	s.loadSignal = nil
	s.flushSignal = nil
	s.modified = false
	s.writeAfterFlush = false
	s.sidecarWrites = make(map[*Entry]*signal[struct{}])
}

// Close frees in-memory state and releases the directory lock. The Store
// must not be used afterward.
func (s *Store) Close() error {
	s.Free()

	s.mu.Lock()
	s.closed = true
	lockFile := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()

	if lockFile == nil {
		return nil
	}

	return releaseLock(lockFile)
}

// ensureLoadStartedLocked returns the in-flight loadSignal, starting a
// fresh load in a goroutine if the cache is absent and no load is already
// running. Callers must hold s.mu; it is released and re-acquired inside
// by the spawned load itself, never by this method.
func (s *Store) ensureLoadStartedLocked() *signal[map[string]*Entry] {
	if s.cache != nil {
		return nil
	}

	if s.loadSignal != nil {
		return s.loadSignal
	}

	sig := newSignal[map[string]*Entry]()
	s.loadSignal = sig

	go s.runLoad(sig)

	return sig
}

// drainPendingLocked replays staged mutations into the freshly loaded live
// map, per spec.md §4.3 step 6. Callers must hold s.mu and have just set
// s.cache.
func (s *Store) drainPendingLocked() {
	if len(s.pendingCache) == 0 {
		return
	}

	for key, op := range s.pendingCache {
		if op.tombstone {
			delete(s.cache, key)
			continue
		}

		s.cache[key] = op.entry
	}

	s.pendingCache = make(map[string]pendingOp)
	s.modified = true
	s.scheduleFlushLocked()
}

// resolveValueBytes normalizes a bare Put value into bytes: []byte passes
// through directly, a string goes through Options.Encoding, and anything
// else requires Options.Serialize.
func (s *Store) resolveValueBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return encodeString(v, s.opts.encoding())
	default:
		if s.opts.Serialize == nil {
			return nil, ErrMissingSerializer
		}

		return s.opts.Serialize(value)
	}
}

// beginSidecarWriteLocked starts a MultiFile value write for entry, unless
// it already carries a sidecar path or already has one in flight — the
// idempotence rule from spec.md §4.2. Callers must hold s.mu.
func (s *Store) beginSidecarWriteLocked(entry *Entry) {
	if _, ok := entry.sidecarPath(); ok {
		return
	}

	if _, inFlight := s.sidecarWrites[entry]; inFlight {
		return
	}

	sig := newSignal[struct{}]()
	s.sidecarWrites[entry] = sig

	rel, err := allocateSidecarPath()
	if err != nil {
		delete(s.sidecarWrites, entry)
		sig.resolve(struct{}{}, err)

		return
	}

	abs := filepath.Join(s.dir, rel)
	valueCopy := entry.Value
	readerCopy := entry.Reader

	s.sidecarWG.Add(1)

	go s.runSidecarWrite(entry, rel, abs, valueCopy, readerCopy, sig)
}

// runSidecarWrite performs the actual sidecar write off the caller's
// goroutine, then publishes the result onto entry under s.mu — the
// "Publish" step of spec.md §4.2.
func (s *Store) runSidecarWrite(entry *Entry, rel, abs string, value []byte, reader func() (io.ReadCloser, error), sig *signal[struct{}]) {
	defer s.sidecarWG.Done()

	err := writeSidecarValue(s.fs, abs, Entry{Value: value, Reader: reader})

	s.mu.Lock()

	if err == nil {
		entry.setSidecarPath(rel)
		entry.Value = nil
		entry.Reader = sidecarReaderFactory(s.fs, abs)
	}

	delete(s.sidecarWrites, entry)
	s.mu.Unlock()

	sig.resolve(struct{}{}, err)
}

// unlinkSidecarLocked deletes entry's sidecar, waiting out an in-flight
// write first if one exists, per spec.md §4.2's Delete step. The wait and
// unlink happen off the caller's goroutine so Remove never blocks on I/O.
// Callers must hold s.mu.
func (s *Store) unlinkSidecarLocked(entry *Entry) {
	sig := s.sidecarWrites[entry]
	rel, ok := entry.sidecarPath()

	if sig == nil && !ok {
		return
	}

	s.sidecarWG.Add(1)

	go func() {
		defer s.sidecarWG.Done()

		if sig != nil {
			sig.wait()
		}

		s.mu.Lock()
		finalRel, finalOK := entry.sidecarPath()
		s.mu.Unlock()

		path := ""

		switch {
		case finalOK:
			path = filepath.Join(s.dir, finalRel)
		case ok:
			path = filepath.Join(s.dir, rel)
		default:
			return
		}

		deleteSidecar(s.fs, path)
	}()
}
