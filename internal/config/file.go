package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when present and no
// other file is named.
const DefaultConfigFile = "sltk-monitor.yaml"

// FileConfig is the YAML config file. Every key is optional; environment
// variables and flags take precedence over it.
type FileConfig struct {
	APIURL         string `yaml:"api_url"`
	PushPath       string `yaml:"push_path"`
	RequestTimeout string `yaml:"request_timeout"`
	LinkageDelay   string `yaml:"linkage_delay"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	ReportDir      string `yaml:"report_dir"`
	DropDir        string `yaml:"drop_dir"`
}

// LoadFile parses path strictly: unknown keys and trailing documents are errors.
func LoadFile(path string) (FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return FileConfig{}, fmt.Errorf("unsupported config format %q (only YAML)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parse config %s: multiple documents or trailing content", path)
	}
	return fc, nil
}

// resolveFile returns the config file to use. An explicitly named file
// must exist; the default one is optional.
func resolveFile(explicit string) (FileConfig, string, error) {
	if path := firstNonEmpty(explicit, os.Getenv("SLTK_CONFIG")); path != "" {
		fc, err := LoadFile(path)
		return fc, path, err
	}
	if _, err := os.Stat(DefaultConfigFile); err != nil {
		return FileConfig{}, "", nil
	}
	fc, err := LoadFile(DefaultConfigFile)
	return fc, DefaultConfigFile, err
}
