package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the backend used when nothing else is configured. Release
// builds override it with -ldflags "-X sltk-monitor/internal/config.DefaultAPIURL=...".
var DefaultAPIURL = "http://localhost:44001"

const (
	DefaultPushPath       = "/ws"
	DefaultRequestTimeout = 30 * time.Second
	DefaultLinkageDelay   = 2 * time.Second
	DefaultReportDir      = "."
)

type Settings struct {
	APIURL         string
	PushPath       string
	RequestTimeout time.Duration
	LinkageDelay   time.Duration
	LogLevel       string
	LogFile        string
	ReportDir      string
	DropDir        string
	// ConfigFile is the YAML file that was read, empty when none.
	ConfigFile string
}

// Overrides carries command-line values; empty fields fall through to the
// environment, then the config file, then defaults.
type Overrides struct {
	ConfigFile string
	APIURL     string
	PushPath   string
	LogLevel   string
}

// Load resolves settings from flags, the environment (including an optional
// .env file), a YAML config file and built-in defaults, in that order.
func Load(o Overrides) (Settings, error) {
	_ = godotenv.Load()

	fc, path, err := resolveFile(o.ConfigFile)
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		APIURL:     firstNonEmpty(o.APIURL, os.Getenv("SLTK_API_URL"), os.Getenv("VITE_API_URL"), fc.APIURL, DefaultAPIURL),
		PushPath:   firstNonEmpty(o.PushPath, os.Getenv("SLTK_PUSH_PATH"), fc.PushPath, DefaultPushPath),
		LogLevel:   firstNonEmpty(o.LogLevel, os.Getenv("SLTK_LOG_LEVEL"), fc.LogLevel),
		LogFile:    firstNonEmpty(os.Getenv("SLTK_LOG_FILE"), fc.LogFile),
		ReportDir:  firstNonEmpty(os.Getenv("SLTK_REPORT_DIR"), fc.ReportDir, DefaultReportDir),
		DropDir:    firstNonEmpty(os.Getenv("SLTK_DROP_DIR"), fc.DropDir),
		ConfigFile: path,
	}

	if s.RequestTimeout, err = duration("SLTK_REQUEST_TIMEOUT", fc.RequestTimeout, DefaultRequestTimeout); err != nil {
		return Settings{}, err
	}
	if s.LinkageDelay, err = duration("SLTK_LINKAGE_DELAY", fc.LinkageDelay, DefaultLinkageDelay); err != nil {
		return Settings{}, err
	}
	return s.normalize()
}

func (s Settings) normalize() (Settings, error) {
	norm := s
	norm.APIURL = strings.TrimRight(strings.TrimSpace(norm.APIURL), "/")
	u, err := url.Parse(norm.APIURL)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid api url %q: %w", s.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Settings{}, fmt.Errorf("invalid api url %q: scheme must be http or https", s.APIURL)
	}
	if u.Host == "" {
		return Settings{}, fmt.Errorf("invalid api url %q: missing host", s.APIURL)
	}

	norm.PushPath = strings.TrimSpace(norm.PushPath)
	if norm.PushPath == "" {
		norm.PushPath = DefaultPushPath
	}
	if !strings.HasPrefix(norm.PushPath, "/") {
		norm.PushPath = "/" + norm.PushPath
	}
	if norm.RequestTimeout <= 0 {
		norm.RequestTimeout = DefaultRequestTimeout
	}
	if norm.LinkageDelay <= 0 {
		return Settings{}, fmt.Errorf("linkage delay must be positive, got %s", norm.LinkageDelay)
	}
	return norm, nil
}

// PushURL derives the WebSocket endpoint from the API base URL.
func (s Settings) PushURL() string {
	u, err := url.Parse(s.APIURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + s.PushPath
	return u.String()
}

// duration reads key from the environment, falling back to the config file
// value and then def.
func duration(key, fileValue string, def time.Duration) (time.Duration, error) {
	raw := firstNonEmpty(os.Getenv(key), fileValue)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
