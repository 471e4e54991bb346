// Package vfs is the file-system collaborator of the exec subsystem: an
// in-memory tree with just enough surface to open executables and shared
// libraries by absolute or cwd-relative path.
package vfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/models"
)

// Clean normalizes a path: forces a leading slash, collapses "." and
// empty components, and resolves ".." without escaping the root.
func Clean(p string) string {
	var out []string
	for _, comp := range strings.Split(p, "/") {
		switch comp {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, comp)
		}
	}
	return "/" + strings.Join(out, "/")
}

// Join resolves rel against cwd unless rel is already absolute.
func Join(cwd, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return Clean(rel)
	}
	return Clean(cwd + "/" + rel)
}

type File struct {
	name string
	data []byte
	off  int
}

func (f *File) Name() string { return f.name }
func (f *File) Size() int    { return len(f.data) }

func (f *File) Read(p []byte) (int, error) {
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func New() *FileSystem {
	return &FileSystem{files: make(map[string][]byte)}
}

func (fs *FileSystem) WriteFile(path string, data []byte) {
	fs.mu.Lock()
	fs.files[Clean(path)] = data
	fs.mu.Unlock()
}

func (fs *FileSystem) Open(path string) (*File, error) {
	fs.mu.RLock()
	data, ok := fs.files[Clean(path)]
	fs.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(models.ErrFileNotFound, path)
	}
	return &File{name: Clean(path), data: data}, nil
}

// ReadFileLimit reads a whole file into memory. The size bound is
// enforced before the read loop begins, not after the bytes are already
// buffered.
func (fs *FileSystem) ReadFileLimit(path string, limit int) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	if f.Size() > limit {
		return nil, errors.Wrap(models.ErrFileTooLarge, path)
	}
	buf := make([]byte, 0, f.Size())
	tmp := make([]byte, 512)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
	}
}

// LoadDir populates the filesystem from a host directory, mapping each
// regular file to its path relative to root.
func (fs *FileSystem) LoadDir(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fs.WriteFile("/"+filepath.ToSlash(rel), data)
		return nil
	})
}
