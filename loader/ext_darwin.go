package loader

// Ext is the library file extension on this platform.
const Ext = ".dylib"
