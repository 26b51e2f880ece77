package version

// Version is set at build time via -ldflags "-X github.com/clipfetch/clipfetch/internal/version.Version=..."
var Version = "0.1.0-dev"
