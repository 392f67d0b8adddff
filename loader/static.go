package loader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-lynx/vectorium/plugins"
)

// Entry is a compiled-in library. A nil field behaves like a missing symbol.
type Entry struct {
	Descriptor DescriptorFunc
	Factory    FactoryFunc
	// OpenErr, when set, is returned from Open.
	OpenErr error
}

// StaticLoader serves compiled-in plugins under virtual paths. It is its
// own Catalog, so scanning and loading never touch the disk.
type StaticLoader struct {
	mu      sync.Mutex
	entries map[string]Entry
	opens   map[string]int
	closes  map[string]int
}

func NewStaticLoader() *StaticLoader {
	return &StaticLoader{
		entries: make(map[string]Entry),
		opens:   make(map[string]int),
		closes:  make(map[string]int),
	}
}

// Add registers e under path.
func (s *StaticLoader) Add(path string, e Entry) {
	s.mu.Lock()
	s.entries[filepath.Clean(path)] = e
	s.mu.Unlock()
}

// AddPlugin registers a well-formed library under dir/name+Ext and returns its path.
func (s *StaticLoader) AddPlugin(dir string, d *plugins.Descriptor, factory FactoryFunc) string {
	path := filepath.Join(dir, d.Name+Ext)
	s.Add(path, Entry{Descriptor: func() *plugins.Descriptor { return d }, Factory: factory})
	return path
}

// Remove forgets path.
func (s *StaticLoader) Remove(path string) {
	s.mu.Lock()
	delete(s.entries, filepath.Clean(path))
	s.mu.Unlock()
}

// Opens returns how many times path was opened successfully.
func (s *StaticLoader) Opens(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[filepath.Clean(path)]
}

// Closes returns how many library handles for path were closed.
func (s *StaticLoader) Closes(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes[filepath.Clean(path)]
}

func (s *StaticLoader) Open(path string) (Library, error) {
	key := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if e.OpenErr != nil {
		return nil, fmt.Errorf("open %s: %w", path, e.OpenErr)
	}
	s.opens[key]++
	return &staticLibrary{owner: s, path: key, entry: e}, nil
}

func (s *StaticLoader) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[filepath.Clean(path)]
	return ok
}

func (s *StaticLoader) List(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.entries {
		if filepath.Dir(p) == dir && HasExt(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

type staticLibrary struct {
	owner *StaticLoader
	path  string
	entry Entry

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (l *staticLibrary) Path() string { return l.path }

func (l *staticLibrary) Lookup(symbol string) (any, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrLibraryClosed
	}
	switch {
	case symbol == DescriptorSymbol && l.entry.Descriptor != nil:
		return l.entry.Descriptor, nil
	case symbol == FactorySymbol && l.entry.Factory != nil:
		return l.entry.Factory, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", plugins.ErrSymbolNotFound, symbol, l.path)
}

func (l *staticLibrary) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.owner.mu.Lock()
		l.owner.closes[l.path]++
		l.owner.mu.Unlock()
	})
	return nil
}
