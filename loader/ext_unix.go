//go:build !windows && !darwin

package loader

// Ext is the library file extension on this platform.
const Ext = ".so"
