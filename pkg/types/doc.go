// Package types defines the core data model and interfaces used throughout dotsync.
// This includes the Config and State documents persisted as JSON, the
// HistoryEntry records appended by every setup run, and the FS interface
// that all filesystem-touching packages are written against.
package types
