package fs

import (
	"os"
	"sync"
)

// Fault wraps an [FS] and lets tests force specific operations to fail:
// open, create, rename and sync faults on a given path fire once, a
// FailNextCreate fault fires once on whatever path is created next, and a
// write fault stays armed. It is trimmed down from the much larger
// probabilistic fault injector this package's teacher carries
// (rate-based read/write/rename/open corruption across every FS method).
// This module only needs deterministic, targeted failures to exercise
// spec.md §7's error paths (flush failure, sidecar write failure), so
// Fault trades the teacher's breadth for per-path exactness.
type Fault struct {
	inner FS

	mu            sync.Mutex
	failOpen      map[string]error
	failRename    map[string]error
	failWrite     map[string]error
	failSync      map[string]error
	failNextCreate error
}

// NewFault wraps inner with fault-injection hooks. With no faults armed, it
// behaves identically to inner.
func NewFault(inner FS) *Fault {
	return &Fault{
		inner:      inner,
		failOpen:   make(map[string]error),
		failRename: make(map[string]error),
		failWrite:  make(map[string]error),
		failSync:   make(map[string]error),
	}
}

// FailOpenFile arms a one-shot failure for the next OpenFile/Open/Create on
// path.
func (f *Fault) FailOpenFile(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOpen[path] = err
}

// FailRename arms a one-shot failure for the next Rename whose oldpath
// matches path.
func (f *Fault) FailRename(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRename[path] = err
}

// FailNextCreate arms a one-shot failure for the next Create call
// regardless of path, for tests whose target path isn't known in advance
// (e.g. the flusher's random temp filename).
func (f *Fault) FailNextCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextCreate = err
}

func (f *Fault) takeNextCreateFault() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.failNextCreate
	f.failNextCreate = nil

	return err
}

// FailWrite arms a failure for every Write on any file opened for path.
// Unlike the open/rename hooks, it is never consumed: it stays armed for
// the life of the Fault, and there is no method to disarm it. A single
// partial-write-then-ok sequence is rarely what a test wants to express.
func (f *Fault) FailWrite(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite[path] = err
}

// FailSync arms a one-shot failure for the next Sync on a file opened for
// path.
func (f *Fault) FailSync(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSync[path] = err
}

func (f *Fault) takeOpenFault(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err, ok := f.failOpen[path]
	if ok {
		delete(f.failOpen, path)
	}

	return err
}

func (f *Fault) takeRenameFault(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err, ok := f.failRename[path]
	if ok {
		delete(f.failRename, path)
	}

	return err
}

func (f *Fault) writeFault(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failWrite[path]
}

func (f *Fault) takeSyncFault(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err, ok := f.failSync[path]
	if ok {
		delete(f.failSync, path)
	}

	return err
}

func (f *Fault) Open(path string) (File, error) {
	if err := f.takeOpenFault(path); err != nil {
		return nil, err
	}

	file, err := f.inner.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultFile{File: file, path: path, fault: f}, nil
}

func (f *Fault) Create(path string) (File, error) {
	if err := f.takeOpenFault(path); err != nil {
		return nil, err
	}

	if err := f.takeNextCreateFault(); err != nil {
		return nil, err
	}

	file, err := f.inner.Create(path)
	if err != nil {
		return nil, err
	}

	return &faultFile{File: file, path: path, fault: f}, nil
}

func (f *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.takeOpenFault(path); err != nil {
		return nil, err
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultFile{File: file, path: path, fault: f}, nil
}

func (f *Fault) MkdirAll(path string, perm os.FileMode) error {
	return f.inner.MkdirAll(path, perm)
}

func (f *Fault) Stat(path string) (os.FileInfo, error) {
	return f.inner.Stat(path)
}

func (f *Fault) Remove(path string) error {
	return f.inner.Remove(path)
}

func (f *Fault) Rename(oldpath, newpath string) error {
	if err := f.takeRenameFault(oldpath); err != nil {
		return err
	}

	return f.inner.Rename(oldpath, newpath)
}

// Compile-time interface check.
var _ FS = (*Fault)(nil)

// faultFile wraps an open [File], checking for armed write/sync faults
// before delegating.
type faultFile struct {
	File
	path  string
	fault *Fault
}

func (f *faultFile) Write(p []byte) (int, error) {
	if err := f.fault.writeFault(f.path); err != nil {
		return 0, err
	}

	return f.File.Write(p)
}

func (f *faultFile) Sync() error {
	if err := f.fault.takeSyncFault(f.path); err != nil {
		return err
	}

	return f.File.Sync()
}
