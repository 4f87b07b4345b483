package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotSpreadsheet = errors.New("not an Excel file (.xlsx or .xls)")

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

// SelectedFile is a workbook chosen for upload. It lives only in the client
// until the upload cycle that consumes it.
type SelectedFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Ext  string `json:"ext"`
	Size int64  `json:"size"`
}

func IsSpreadsheetName(name string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(strings.TrimSpace(name)))]
}

// SelectFile validates a user supplied path. Terminals paste dropped files
// with quotes or escaped spaces, both are stripped.
func SelectFile(raw string) (SelectedFile, error) {
	path := cleanDroppedPath(raw)
	if path == "" {
		return SelectedFile{}, errors.New("file path is required")
	}
	name := filepath.Base(path)
	if !IsSpreadsheetName(name) {
		return SelectedFile{}, fmt.Errorf("%s: %w", name, ErrNotSpreadsheet)
	}
	info, err := os.Stat(path)
	if err != nil {
		return SelectedFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return SelectedFile{}, fmt.Errorf("%s is not a regular file", path)
	}
	return SelectedFile{
		Path: path,
		Name: name,
		Ext:  strings.ToLower(filepath.Ext(name)),
		Size: info.Size(),
	}, nil
}

func cleanDroppedPath(raw string) string {
	p := strings.TrimSpace(raw)
	if len(p) >= 2 {
		if (p[0] == '\'' && p[len(p)-1] == '\'') || (p[0] == '"' && p[len(p)-1] == '"') {
			p = p[1 : len(p)-1]
		}
	}
	p = strings.TrimPrefix(p, "file://")
	return strings.ReplaceAll(p, `\ `, " ")
}
