package ports

// Entry is one child of an export directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Filesystem is the export store. Paths are slash separated and relative to
// the store root; local directories and object storage behave the same.
// Only whole-file writes are supported.
type Filesystem interface {
	MkdirAll(path string) error
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	ListDir(path string) ([]Entry, error)
	Exists(path string) (bool, error)

	// Root describes the store location, e.g. /tmp/out or s3://bucket/prefix.
	Root() string
}
