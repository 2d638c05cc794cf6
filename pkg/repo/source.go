// Package repo fetches the dotfiles repository that profile files link into.
package repo

import (
	"strings"

	"github.com/neelabalan/dotsync/pkg/types"
)

// DetectSourceType infers how url is fetched. Release and archive download
// URLs are zip archives; git@ and ssh:// URLs are git over SSH; anything else
// is git over HTTPS.
func DetectSourceType(url string) types.SourceType {
	switch {
	case strings.Contains(url, "/archive/"),
		strings.Contains(url, "/zipball/"),
		strings.Contains(url, "/releases/download/"),
		strings.HasSuffix(strings.ToLower(url), ".zip"):
		return types.SourceZip
	case strings.HasPrefix(url, "git@"), strings.HasPrefix(url, "ssh://"):
		return types.SourceGitSSH
	default:
		return types.SourceGitHTTPS
	}
}
