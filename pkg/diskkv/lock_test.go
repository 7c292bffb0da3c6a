package diskkv

import (
	"errors"
	"testing"

	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

func Test_AcquireLock_Then_Release_Allows_Reacquire(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.NewReal()

	f, err := acquireLock(fsys, dir)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}

	if err := releaseLock(f); err != nil {
		t.Fatalf("releaseLock: %v", err)
	}

	f2, err := acquireLock(fsys, dir)
	if err != nil {
		t.Fatalf("acquireLock after release: %v", err)
	}

	if err := releaseLock(f2); err != nil {
		t.Fatalf("releaseLock: %v", err)
	}
}

func Test_AcquireLock_Contended_Returns_ErrBusy(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.NewReal()

	f, err := acquireLock(fsys, dir)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer releaseLock(f)

	_, err = acquireLock(fsys, dir)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
}

func Test_AcquireLock_Creates_Dotlock_File(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.NewReal()

	f, err := acquireLock(fsys, dir)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer releaseLock(f)

	if _, err := fsys.Stat(dir + "/.lock"); err != nil {
		t.Fatalf("expected .lock file to exist: %v", err)
	}
}
