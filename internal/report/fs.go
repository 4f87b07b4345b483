package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically, creating its directory first.
func WriteBytes(path string, data []byte) error {
	if err := Mkdir(filepath.Dir(path)); err != nil {
		return err
	}
	return writeFile(path, data)
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	return WriteBytes(path, append(data, '\n'))
}

// CheckWritable creates and removes a probe file in dir.
func CheckWritable(dir string) error {
	if err := Mkdir(dir); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".sltk-check-*.tmp")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	_ = f.Close()
	return os.Remove(f.Name())
}
