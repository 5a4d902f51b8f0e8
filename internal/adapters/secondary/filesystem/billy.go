package filesystem

import (
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	ports "mlflow-migrate/internal/core/ports/output"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var _ ports.Filesystem = (*BillyFS)(nil)

// BillyFS is an export store on a go-billy filesystem: a local directory or
// an in-memory tree.
type BillyFS struct {
	fs   billy.Filesystem
	root string
}

// NewLocal roots the store at a local directory.
func NewLocal(root string) *BillyFS {
	return &BillyFS{fs: osfs.New(root), root: root}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *BillyFS {
	return &BillyFS{fs: memfs.New(), root: "memory://"}
}

func (b *BillyFS) Root() string {
	return b.root
}

func (b *BillyFS) MkdirAll(p string) error {
	if err := b.fs.MkdirAll(clean(p), dirPerm); err != nil {
		return fmt.Errorf("mkdirall %q: %w", p, err)
	}
	return nil
}

func (b *BillyFS) WriteFile(p string, data []byte) error {
	if err := util.WriteFile(b.fs, clean(p), data, filePerm); err != nil {
		return fmt.Errorf("writefile %q: %w", p, err)
	}
	return nil
}

func (b *BillyFS) ReadFile(p string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, clean(p))
	if err != nil {
		return nil, fmt.Errorf("readfile %q: %w", p, err)
	}
	return data, nil
}

func (b *BillyFS) ListDir(p string) ([]ports.Entry, error) {
	infos, err := b.fs.ReadDir(clean(p))
	if err != nil {
		return nil, fmt.Errorf("readdir %q: %w", p, err)
	}
	entries := make([]ports.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, ports.Entry{Name: fi.Name(), IsDir: fi.IsDir()})
	}
	return entries, nil
}

func (b *BillyFS) Exists(p string) (bool, error) {
	_, err := b.fs.Stat(clean(p))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", p, err)
	}
}

// clean maps store paths onto the billy root; "" and "." are the root.
func clean(p string) string {
	return path.Clean("/" + p)
}
