//go:build (linux || darwin || freebsd) && cgo

package loader

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/go-lynx/vectorium/plugins"
)

// NativeLoader opens libraries built with go build -buildmode=plugin. The
// library must be built with the same toolchain and module versions as the host.
type NativeLoader struct{}

func (NativeLoader) Open(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &nativeLibrary{path: path, p: p}, nil
}

// nativeLibrary wraps a Go plugin. The Go runtime never unmaps a plugin, so
// Close only drops the reference and fails later lookups.
type nativeLibrary struct {
	path string

	mu sync.Mutex
	p  *plugin.Plugin
}

func (l *nativeLibrary) Path() string { return l.path }

func (l *nativeLibrary) Lookup(symbol string) (any, error) {
	l.mu.Lock()
	p := l.p
	l.mu.Unlock()
	if p == nil {
		return nil, ErrLibraryClosed
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", plugins.ErrSymbolNotFound, symbol, l.path, err)
	}
	return sym, nil
}

func (l *nativeLibrary) Close() error {
	l.mu.Lock()
	l.p = nil
	l.mu.Unlock()
	return nil
}
