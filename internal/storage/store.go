package storage

import (
	"os"
	"time"
)

// BlobStore manages file operations under a base directory. All paths are
// relative to the base; implementations reject paths escaping it.
type BlobStore interface {
	// Write saves data to a file path. The write is a single write call,
	// not a temp-file-and-rename pair: external sync tools watch the
	// document path itself, and a rename would register as delete+create.
	Write(path string, data []byte, mode os.FileMode) error

	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Copy duplicates a file within the store.
	Copy(srcPath, dstPath string) error

	// Delete removes a file.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error

	// ListDir returns directory contents.
	ListDir(path string) ([]FileInfo, error)

	// AbsPath resolves a store-relative path to an absolute one.
	AbsPath(path string) (string, error)
}

// FileInfo contains file metadata.
type FileInfo struct {
	Path    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
}
