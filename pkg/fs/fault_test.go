package fs

import (
	"errors"
	"path/filepath"
	"testing"
)

func Test_Fault_FailOpenFile_Is_Consumed_Once(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	boom := errors.New("boom")

	f := NewFault(NewReal())
	f.FailOpenFile(path, boom)

	_, err := f.Create(path)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want=%v", err, boom)
	}

	file, err := f.Create(path)
	if err != nil {
		t.Fatalf("second create should succeed, got: %v", err)
	}

	_ = file.Close()
}

func Test_Fault_FailRename_Is_Consumed_Once(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	boom := errors.New("boom")

	real := NewReal()
	if _, err := real.Create(src); err != nil {
		t.Fatalf("setup: %v", err)
	}

	f := NewFault(real)
	f.FailRename(src, boom)

	if err := f.Rename(src, dst); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want=%v", err, boom)
	}

	if err := f.Rename(src, dst); err != nil {
		t.Fatalf("second rename should succeed, got: %v", err)
	}
}

func Test_Fault_FailWrite_Is_Sticky(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	boom := errors.New("boom")

	f := NewFault(NewReal())
	f.FailWrite(path, boom)

	file, err := f.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer file.Close()

	if _, err := file.Write([]byte("a")); !errors.Is(err, boom) {
		t.Fatalf("write 1 err=%v, want=%v", err, boom)
	}

	if _, err := file.Write([]byte("b")); !errors.Is(err, boom) {
		t.Fatalf("write 2 err=%v, want=%v", err, boom)
	}
}

func Test_Fault_FailSync_Is_Consumed_Once(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	boom := errors.New("boom")

	f := NewFault(NewReal())
	f.FailSync(path, boom)

	file, err := f.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer file.Close()

	if err := file.Sync(); !errors.Is(err, boom) {
		t.Fatalf("sync 1 err=%v, want=%v", err, boom)
	}

	if err := file.Sync(); err != nil {
		t.Fatalf("sync 2 should succeed, got: %v", err)
	}
}
