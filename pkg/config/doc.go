// Package config loads the user's dotsync configuration.
//
// Configuration is layered with koanf, lowest priority first:
//
//  1. Embedded defaults (embedded/defaults.toml)
//  2. The user's config file, parsed by extension (.json, .yaml/.yml, .toml)
//  3. Environment variables: DOTSYNC_URL, DOTSYNC_BRANCH, DOTSYNC_PATH,
//     DOTSYNC_BACKUP_PATH
//  4. Explicit overrides supplied by the caller (command line flags)
//
// The merged result is decoded into types.Config and validated. The config is
// read once by init and copied into the state file; later runs only consult
// the state.
package config
