package diskkv

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

// acquireLock takes a non-blocking advisory flock on dir/.lock, enforcing
// the single-writer-per-directory non-goal from spec.md §1. Grounded on
// the teacher's own writer-lock pattern (lock.go, pkg/slotcache's
// writer_lock.go), adapted from a per-operation lock to one held for the
// lifetime of a Store.
func acquireLock(fsys fs.FS, dir string) (fs.File, error) {
	path := filepath.Join(dir, ".lock")

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("%w: %s", ErrBusy, dir)
	}

	return f, nil
}

// releaseLock unlocks and closes a handle obtained from acquireLock.
func releaseLock(f fs.File) error {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return f.Close()
}
