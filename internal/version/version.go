package version

// Build information set by ldflags
var (
	Version = "dev"     // -X github.com/neelabalan/dotsync/internal/version.Version={{.Version}}
	Commit  = "unknown" // -X github.com/neelabalan/dotsync/internal/version.Commit={{.Commit}}
	Date    = "unknown" // -X github.com/neelabalan/dotsync/internal/version.Date={{.Date}}
)
