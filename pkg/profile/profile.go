// Package profile resolves profile names to the ordered list of relative
// paths they synchronize.
package profile

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/paths"
)

// Resolve returns the files declared for name, in declared order.
// The returned slice is a copy; callers may modify it freely.
func Resolve(name string, profiles map[string][]string) ([]string, error) {
	files, ok := profiles[name]
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownProfile, "profile %q not found (available: %s)",
			name, strings.Join(Names(profiles), ", ")).
			WithDetail("profile", name)
	}
	return append([]string(nil), files...), nil
}

// Names returns the sorted profile names.
func Names(profiles map[string][]string) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks profile names and every path they declare. Within one
// profile no entry may lie inside another, since linking the outer entry
// would make the inner one resolve into the repository.
func Validate(profiles map[string][]string) error {
	if len(profiles) == 0 {
		return errors.New(errors.ErrInvalidInput, "at least one profile is required")
	}
	for _, name := range Names(profiles) {
		if strings.TrimSpace(name) == "" {
			return errors.Newf(errors.ErrInvalidInput, "invalid profile name %q", name).
				WithDetail("profile", name)
		}
		seen := make(map[string]struct{}, len(profiles[name]))
		for _, file := range profiles[name] {
			if err := paths.ValidateRelPath(file); err != nil {
				return errors.Wrapf(err, errors.ErrInvalidInput, "profile %q", name).
					WithDetail("profile", name).
					WithDetail("path", file)
			}
			if _, dup := seen[file]; dup {
				return errors.Newf(errors.ErrInvalidInput, "profile %q lists %q twice", name, file).
					WithDetail("profile", name).
					WithDetail("path", file)
			}
			seen[file] = struct{}{}
		}
		if outer, inner, ok := overlap(profiles[name]); ok {
			return errors.Newf(errors.ErrInvalidInput, "profile %q lists %q inside %q", name, inner, outer).
				WithDetail("profile", name).
				WithDetail("path", inner)
		}
	}
	return nil
}

// overlap finds an entry that names the same path as another entry or a
// parent directory of it.
func overlap(files []string) (outer, inner string, ok bool) {
	cleaned := make([]string, len(files))
	for i, f := range files {
		cleaned[i] = filepath.Clean(f)
	}
	for i, a := range cleaned {
		for j, b := range cleaned {
			if i != j && (a == b || strings.HasPrefix(b, a+string(filepath.Separator))) {
				return files[i], files[j], true
			}
		}
	}
	return "", "", false
}
