// Package loader opens plugin libraries and resolves their exported symbols.
//
// A library exports two functions:
//
//	func GetPluginDescriptor() *plugins.Descriptor
//	func LoadPlugin() plugins.Plugin
//
// NativeLoader opens Go libraries built with -buildmode=plugin. StaticLoader
// serves plugins compiled into the host binary under virtual paths.
package loader

import (
	"errors"
	"fmt"

	"github.com/go-lynx/vectorium/plugins"
)

const (
	// DescriptorSymbol is the exported descriptor function.
	DescriptorSymbol = "GetPluginDescriptor"
	// FactorySymbol is the exported factory function.
	FactorySymbol = "LoadPlugin"
)

// ErrLibraryClosed is returned by Lookup after Close.
var ErrLibraryClosed = errors.New("library closed")

// ErrUnsupported is returned by loaders that cannot open libraries on this platform.
var ErrUnsupported = errors.New("native plugin loading is not supported on this platform")

// Loader opens a library by path.
type Loader interface {
	Open(path string) (Library, error)
}

// Library is an open plugin library.
type Library interface {
	// Path returns the path the library was opened from.
	Path() string
	// Lookup resolves an exported symbol. A missing symbol wraps plugins.ErrSymbolNotFound.
	Lookup(symbol string) (any, error)
	// Close releases the handle. It is safe to call more than once.
	Close() error
}

// DescriptorFunc and FactoryFunc are the signatures of the two exported symbols.
type (
	DescriptorFunc = func() *plugins.Descriptor
	FactoryFunc    = func() plugins.Plugin
)

// Descriptor resolves and calls the descriptor symbol of lib.
func Descriptor(lib Library) (*plugins.Descriptor, error) {
	fn, err := lookupFunc[DescriptorFunc](lib, DescriptorSymbol)
	if err != nil {
		return nil, err
	}
	d := fn()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Factory resolves the factory symbol of lib.
func Factory(lib Library) (FactoryFunc, error) {
	return lookupFunc[FactoryFunc](lib, FactorySymbol)
}

func lookupFunc[F any](lib Library, symbol string) (F, error) {
	var zero F
	sym, err := lib.Lookup(symbol)
	if err != nil {
		return zero, err
	}
	// The stdlib plugin package returns function symbols by value and
	// variables by pointer.
	switch fn := sym.(type) {
	case F:
		return fn, nil
	case *F:
		if fn != nil {
			return *fn, nil
		}
	}
	return zero, fmt.Errorf("%w: %s has unexpected type %T", plugins.ErrSymbolNotFound, symbol, sym)
}
