// Package testutil provides test environments and assertions shared by the
// dotsync package tests.
//
// NewTestEnvironment lays out a home directory with a repository inside it;
// EnvIsolated uses the real filesystem under t.TempDir and supports
// symlinks, EnvMemoryOnly uses an in-memory filesystem for tests that never
// link.
package testutil
