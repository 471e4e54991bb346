// Package linker maps shared objects into an in-progress address space.
// It reuses the same page-mapping callback as the main image, so library
// segments land in the table being built, never a side table.
package linker

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/pharos-os/pharos/loader"
	"github.com/pharos-os/pharos/models"
	"github.com/pharos-os/pharos/vfs"
)

var log = logrus.WithField("subsys", "linker")

// DefaultBase is where the first library of an image lands when no base
// is forced; later libraries stack above it.
const DefaultBase = 0x7000_0000

const maxLibSize = 16 << 20

var searchPath = []string{"/lib", "/usr/lib"}

// Linker resolves needed-library names for one exec. The cache is keyed
// by content hash, so the same object reached through two names is read
// and mapped once per image build.
type Linker struct {
	fs       *vfs.FileSystem
	machine  uint16
	nextBase uint64
	loaded   map[[blake2b.Size256]byte]uint64
}

func New(fs *vfs.FileSystem, machine uint16) *Linker {
	return &Linker{
		fs:       fs,
		machine:  machine,
		nextBase: DefaultBase,
		loaded:   make(map[[blake2b.Size256]byte]uint64),
	}
}

func (l *Linker) resolve(name string) (string, []byte, error) {
	if len(name) > 0 && name[0] == '/' {
		data, err := l.fs.ReadFileLimit(name, maxLibSize)
		return name, data, err
	}
	for _, dir := range searchPath {
		path := vfs.Join(dir, name)
		if data, err := l.fs.ReadFileLimit(path, maxLibSize); err == nil {
			return path, data, nil
		}
	}
	return "", nil, errors.Wrap(models.ErrFileNotFound, name)
}

// LoadLibrary maps one shared object through mapPage and returns its load
// base. Resolution failure is reported to the caller, which may choose to
// continue; it never unwinds pages mapped for earlier libraries.
func (l *Linker) LoadLibrary(name string, mapPage loader.MapPage) (uint64, error) {
	path, data, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	sum := blake2b.Sum256(data)
	if base, ok := l.loaded[sum]; ok {
		return base, nil
	}
	img, err := loader.NewImage(data, l.machine)
	if err != nil {
		return 0, errors.Wrap(err, path)
	}
	base := l.nextBase
	info, err := loader.Load(img, base, mapPage)
	if err != nil {
		return 0, errors.Wrap(err, path)
	}
	l.nextBase = info.Brk
	l.loaded[sum] = base
	log.WithFields(logrus.Fields{"lib": path, "base": base}).Debug("library mapped")
	return base, nil
}
