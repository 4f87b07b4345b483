package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sltk-monitor/internal/model"
)

// ErrorReport is the on-disk export of a group's error details.
type ErrorReport struct {
	GroupID     string              `json:"group_id"`
	GeneratedAt string              `json:"generated_at"`
	APIURL      string              `json:"api_url,omitempty"`
	ErrorCount  int                 `json:"error_count"`
	Errors      []model.ErrorRecord `json:"errors"`
}

func NewErrorReport(groupID, apiURL string, records []model.ErrorRecord, now time.Time) ErrorReport {
	if records == nil {
		records = []model.ErrorRecord{}
	}
	return ErrorReport{
		GroupID:     groupID,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		APIURL:      apiURL,
		ErrorCount:  len(records),
		Errors:      records,
	}
}

// DefaultPath names the export for a group inside dir.
func DefaultPath(dir, groupID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, groupID)
	return filepath.Join(dir, "sltk-errors-"+name+".json")
}

func WriteErrorReport(path string, r ErrorReport) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("report path is required")
	}
	if strings.TrimSpace(r.GroupID) == "" {
		return errors.New("report group id is required")
	}
	return WriteJSON(path, r)
}

// ReadErrorReport loads a report written by WriteErrorReport, rejecting
// files that do not match the report schema.
func ReadErrorReport(path string) (ErrorReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorReport{}, fmt.Errorf("read report %s: %w", path, err)
	}
	if err := ValidateErrorReport(data); err != nil {
		return ErrorReport{}, fmt.Errorf("report %s: %w", path, err)
	}
	var r ErrorReport
	if err := json.Unmarshal(data, &r); err != nil {
		return ErrorReport{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	if r.ErrorCount != len(r.Errors) {
		return ErrorReport{}, fmt.Errorf("report %s: error_count %d does not match %d records", path, r.ErrorCount, len(r.Errors))
	}
	return r, nil
}
