package loader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog answers which library files exist. Loaders that serve virtual
// paths implement it; everything else is backed by the file system.
type Catalog interface {
	// Exists reports whether path names a library.
	Exists(path string) bool
	// List returns the library paths directly inside dir, sorted. A missing
	// directory yields fs.ErrNotExist.
	List(dir string) ([]string, error)
}

// CatalogOf returns l's own catalog, or the file system.
func CatalogOf(l Loader) Catalog {
	if c, ok := l.(Catalog); ok {
		return c
	}
	return FS{}
}

// FS is the file-system catalog.
type FS struct{}

func (FS) Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func (FS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !HasExt(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// HasExt reports whether name carries the platform library extension.
func HasExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Ext)
}

// Stem returns the file name of path without its extension, the default plugin name.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsNotExist reports whether err means a missing directory or file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
