// Package engine composes profile resolution, backup, symlink installation
// and the state store into the dotsync operations.
//
// A setup run moves through these phases:
//
//	Idle -> Resolving -> BackingUp -> Installing -> Committing -> Done
//
// Any phase after Idle may end in Aborted instead. The run holds the lock
// next to the state file from before Resolving until after Committing, and
// the state file is replaced only in Committing. An aborted run leaves the
// home directory as its last successful step left it; the next run picks up
// from there because correct links are never backed up again.
package engine
