package diskkv

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

// allocateSidecarPath generates a fresh sidecar-relative path: a 128-bit
// random identifier, hex-encoded and fanned out two levels deep
// ("<aa>/<remaining 30 hex chars>") so no single directory accumulates every
// value file. Collisions are astronomically unlikely; no retry is needed.
func allocateSidecarPath() (string, error) {
	var id [16]byte

	if _, err := rand.Read(id[:]); err != nil {
		return "", fmt.Errorf("allocate sidecar id: %w", err)
	}

	hexID := hex.EncodeToString(id[:])

	return hexID[:2] + "/" + hexID[2:], nil
}

// writeSidecarValue streams an entry's value to absPath. Exactly one of
// entry.Value or entry.Reader must be set; anything else is
// ErrIllegalState.
//
// The write goes through fsys end to end — write to a sibling temp file,
// sync, rename into place — the same write-to-temp-then-rename idiom
// writeCatalog uses for the catalog file itself, which is strictly more
// durable than spec.md requires (sidecar write atomicity is explicitly out
// of scope) but never less. Going through fsys rather than a direct OS
// write lets pkg/fs's fault-injecting double exercise sidecar write
// failures the same way it exercises catalog write failures.
func writeSidecarValue(fsys fs.FS, absPath string, entry Entry) error {
	var src io.Reader

	switch {
	case entry.Value != nil:
		src = bytes.NewReader(entry.Value)
	case entry.Reader != nil:
		rc, err := entry.Reader()
		if err != nil {
			return fmt.Errorf("open entry reader: %w", err)
		}
		defer rc.Close()

		src = rc
	default:
		return ErrIllegalState
	}

	if err := fsys.MkdirAll(filepath.Dir(absPath), 0o750); err != nil {
		return fmt.Errorf("mkdir sidecar parent: %w", err)
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return fmt.Errorf("generate sidecar temp name: %w", err)
	}

	tmpPath := absPath + ".tmp" + id.String()

	f, err := fsys.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create sidecar temp file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		fsys.Remove(tmpPath)

		return fmt.Errorf("write sidecar temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)

		return fmt.Errorf("sync sidecar temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		fsys.Remove(tmpPath)

		return fmt.Errorf("close sidecar temp file: %w", err)
	}

	if err := fsys.Rename(tmpPath, absPath); err != nil {
		fsys.Remove(tmpPath)

		return fmt.Errorf("rename sidecar temp file into place: %w", err)
	}

	return nil
}

// deleteSidecar unlinks absPath. Failures are swallowed per spec.md §4.2:
// an orphaned sidecar is acceptable, since the catalog stops referencing it
// after the next flush.
func deleteSidecar(fsys fs.FS, absPath string) {
	if err := fsys.Remove(absPath); err != nil && !os.IsNotExist(err) {
		_ = err // best-effort; orphan tolerated
	}
}

// sidecarReaderFactory returns a zero-argument reader producer over
// absPath, suitable for Entry.Reader. Each call opens a fresh handle.
func sidecarReaderFactory(fsys fs.FS, absPath string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := fsys.Open(absPath)
		if err != nil {
			return nil, err
		}

		return f, nil
	}
}
