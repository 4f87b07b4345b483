package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SLTK_API_URL", "VITE_API_URL", "SLTK_PUSH_PATH", "SLTK_LOG_LEVEL", "SLTK_LOG_FILE", "SLTK_REQUEST_TIMEOUT", "SLTK_LINKAGE_DELAY", "SLTK_CONFIG", "SLTK_REPORT_DIR", "SLTK_DROP_DIR"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	prevWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:44001", s.APIURL)
	assert.Equal(t, "/ws", s.PushPath)
	assert.Equal(t, DefaultLinkageDelay, s.LinkageDelay)
	assert.Equal(t, "ws://localhost:44001/ws", s.PushURL())
	assert.Equal(t, ".", s.ReportDir)
	assert.Empty(t, s.ConfigFile)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_API_URL", "http://vite:1")
	t.Setenv("SLTK_API_URL", "http://env:2/")

	s, err := Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", s.APIURL)

	s, err = Load(Overrides{APIURL: "https://flag.example/base", PushPath: "socket"})
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example/base", s.APIURL)
	assert.Equal(t, "wss://flag.example/base/socket", s.PushURL())
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("SLTK_API_URL")
	os.Unsetenv("SLTK_LINKAGE_DELAY")
	dir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SLTK_API_URL=http://dotenv:9\nSLTK_LINKAGE_DELAY=250ms\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SLTK_API_URL")
		os.Unsetenv("SLTK_LINKAGE_DELAY")
	})

	s, err := Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv:9", s.APIURL)
	assert.Equal(t, 250*time.Millisecond, s.LinkageDelay)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(Overrides{APIURL: "ftp://host"})
	require.Error(t, err)

	_, err = Load(Overrides{APIURL: "http://"})
	require.Error(t, err)

	t.Setenv("SLTK_LINKAGE_DELAY", "soon")
	_, err = Load(Overrides{})
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveLinkageDelay(t *testing.T) {
	clearEnv(t)

	for _, raw := range []string{"0", "0s", "-1s"} {
		t.Setenv("SLTK_LINKAGE_DELAY", raw)
		_, err := Load(Overrides{})
		assert.ErrorContains(t, err, "linkage delay must be positive", raw)
	}

	t.Setenv("SLTK_LINKAGE_DELAY", "")
	writeConfig(t, DefaultConfigFile, "linkage_delay: 0s\n")
	_, err := Load(Overrides{})
	assert.ErrorContains(t, err, "linkage delay must be positive")
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultConfigFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, DefaultConfigFile, "api_url: http://file:3\nlinkage_delay: 500ms\nreport_dir: reports\ndrop_dir: inbox\n")

	s, err := Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http://file:3", s.APIURL)
	assert.Equal(t, 500*time.Millisecond, s.LinkageDelay)
	assert.Equal(t, "reports", s.ReportDir)
	assert.Equal(t, "inbox", s.DropDir)
	assert.Equal(t, DefaultConfigFile, s.ConfigFile)

	t.Setenv("SLTK_API_URL", "http://env:4")
	t.Setenv("SLTK_LINKAGE_DELAY", "1s")
	s, err = Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http://env:4", s.APIURL, "environment wins over the file")
	assert.Equal(t, time.Second, s.LinkageDelay)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "other.yml", "push_path: socket\n")

	s, err := Load(Overrides{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "/socket", s.PushPath)
	assert.Equal(t, path, s.ConfigFile)

	_, err = Load(Overrides{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestLoadFileStrict(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(writeConfig(t, "bad.yaml", "api_url: http://x\nunknown_key: 1\n"))
	require.Error(t, err)

	_, err = LoadFile(writeConfig(t, "multi.yaml", "api_url: http://x\n---\napi_url: http://y\n"))
	assert.ErrorContains(t, err, "multiple documents")

	_, err = LoadFile(writeConfig(t, "conf.json", "{}"))
	assert.ErrorContains(t, err, "only YAML")

	fc, err := LoadFile(writeConfig(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, FileConfig{}, fc)
}
