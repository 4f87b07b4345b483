package version

// Value is the release tag, set at build time via
// -ldflags "-X sltk-monitor/internal/version.Value=v1.2.3".
var Value = "dev"
