// Package state owns the durable state file: the user's configuration as
// captured by init, the active profile and the append-only setup history.
//
// The file is never edited in place. Load reads and validates it against an
// embedded JSON schema, AppendHistory derives a new value without touching the
// old one, and Save replaces the whole file through a temp file and rename.
// A crash at any point leaves either the previous file or the new one.
package state
