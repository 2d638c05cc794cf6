// Package filesystem provides filesystem implementations for dotsync.
//
// This package contains the afero-backed implementation of the types.FS
// interface. Production code runs on the OS filesystem through NewOS; tests
// that never touch symlinks can run against an in-memory filesystem through
// NewMemory.
package filesystem
