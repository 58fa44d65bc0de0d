// Package storage defines the data-root file-system abstraction.
package storage

import "time"

// Entry is one item of a directory listing.
type Entry struct {
	Name    string
	IsDir   bool
	ModTime time.Time
}

// Provider is the interface for file operations relative to the data root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists (file or directory).
	Exists(path string) bool
	// List returns the entries of dir, hidden entries excluded, in name order.
	List(dir string) ([]Entry, error)
	// ReadBounded returns at most maxChars characters of path, "" if missing.
	ReadBounded(path string, maxChars int) string
	// Abs resolves path to an absolute path under the root.
	Abs(path string) (string, error)
}
