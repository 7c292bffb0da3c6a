package diskkv

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raptorjs3/raptor-cache/pkg/fs"
)

func Test_AllocateSidecarPath_Has_TwoLevel_Fanout(t *testing.T) {
	rel, err := allocateSidecarPath()
	if err != nil {
		t.Fatalf("allocateSidecarPath: %v", err)
	}

	parts := strings.SplitN(rel, "/", 2)
	if len(parts) != 2 {
		t.Fatalf("rel=%q, want exactly one slash", rel)
	}

	if len(parts[0]) != 2 {
		t.Fatalf("leading fanout segment=%q, want 2 hex chars", parts[0])
	}

	if len(parts[1]) != 30 {
		t.Fatalf("remainder=%q, want 30 hex chars", parts[1])
	}
}

func Test_AllocateSidecarPath_Is_Unique_Across_Calls(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		rel, err := allocateSidecarPath()
		if err != nil {
			t.Fatalf("allocateSidecarPath: %v", err)
		}

		if seen[rel] {
			t.Fatalf("duplicate sidecar path: %q", rel)
		}

		seen[rel] = true
	}
}

func Test_WriteSidecarValue_From_Value_Bytes(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "ab", "cdef")

	err := writeSidecarValue(real, abs, Entry{Value: []byte("payload")})
	if err != nil {
		t.Fatalf("writeSidecarValue: %v", err)
	}

	got, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("readfile: %v", err)
	}

	if string(got) != "payload" {
		t.Fatalf("content=%q, want %q", got, "payload")
	}
}

func Test_WriteSidecarValue_From_Reader(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "ab", "cdef")

	entry := Entry{
		Reader: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("streamed")), nil
		},
	}

	if err := writeSidecarValue(real, abs, entry); err != nil {
		t.Fatalf("writeSidecarValue: %v", err)
	}

	got, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("readfile: %v", err)
	}

	if string(got) != "streamed" {
		t.Fatalf("content=%q, want %q", got, "streamed")
	}
}

func Test_WriteSidecarValue_Illegal_State_Without_Value_Or_Reader(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "ab", "cdef")

	err := writeSidecarValue(real, abs, Entry{})
	if err != ErrIllegalState {
		t.Fatalf("err=%v, want ErrIllegalState", err)
	}
}

func Test_WriteSidecarValue_Propagates_Injected_Disk_Write_Failure(t *testing.T) {
	dir := t.TempDir()
	fault := fs.NewFault(fs.NewReal())
	abs := filepath.Join(dir, "ab", "cdef")

	boom := errors.New("injected disk failure")
	fault.FailNextCreate(boom)

	err := writeSidecarValue(fault, abs, Entry{Value: []byte("payload")})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want injected disk failure surfaced through the fs.FS fault double", err)
	}

	if _, statErr := os.Stat(abs); !os.IsNotExist(statErr) {
		t.Fatalf("expected no sidecar file to have been created, stat err=%v", statErr)
	}
}

func Test_DeleteSidecar_Swallows_Missing_File(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "does", "not", "exist")

	// Must not panic and must not block; no assertion beyond "returns".
	deleteSidecar(real, abs)
}

func Test_DeleteSidecar_Removes_Existing_File(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "x")

	if err := os.WriteFile(abs, []byte("v"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	deleteSidecar(real, abs)

	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func Test_SidecarReaderFactory_Opens_Fresh_Handle_Each_Call(t *testing.T) {
	dir := t.TempDir()
	real := fs.NewReal()
	abs := filepath.Join(dir, "x")

	if err := os.WriteFile(abs, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	factory := sidecarReaderFactory(real, abs)

	for i := 0; i < 2; i++ {
		rc, err := factory()
		if err != nil {
			t.Fatalf("factory call %d: %v", i, err)
		}

		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read call %d: %v", i, err)
		}

		if err := rc.Close(); err != nil {
			t.Fatalf("close call %d: %v", i, err)
		}

		if string(got) != "hello" {
			t.Fatalf("call %d content=%q", i, got)
		}
	}
}
