// Package fs provides a filesystem abstraction for testing and fault
// injection.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//   - [Fault]: testing implementation that injects forced failures
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. Used for low-level operations like
	// flock.
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file.
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk.
	Sync() error
}

// FS defines filesystem operations for reading, writing, and managing
// files.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection. Implementations must be safe for
// concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading.
	Open(path string) (File, error)

	// Create creates or truncates a file for writing, mode 0666 before
	// umask.
	Create(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// MkdirAll creates a directory and all parents. No error if it already
	// exists.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. Returns an error satisfying
	// [os.IsNotExist] if the path does not exist.
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file. No error is not guaranteed if the path is
	// missing — callers that want "absence is fine" semantics should check
	// [os.IsNotExist].
	Remove(path string) error

	// Rename moves/renames a file. Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
