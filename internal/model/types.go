package model

import "strings"

// UploadStatus is one snapshot of a backend upload group, as pushed on the
// status channel and returned by the status endpoint.
type UploadStatus struct {
	GroupID     string   `json:"groupId"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	StatusText  string   `json:"statusText"`
	ChangeDate  any      `json:"changeDate,omitempty"`
	ChangeTime  any      `json:"changeTime,omitempty"`
	User        string   `json:"user,omitempty"`
	Progress    Progress `json:"progress"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Errors     int `json:"errors"`
	Processing int `json:"processing"`
	Pending    int `json:"pending"`
	Percentage int `json:"percentage"`
}

// ClampedPercentage returns the backend percentage bounded to [0,100].
func (p Progress) ClampedPercentage() int {
	if p.Percentage < 0 {
		return 0
	}
	if p.Percentage > 100 {
		return 100
	}
	return p.Percentage
}

// Label returns the human readable status, falling back to the code table
// when the backend left statusText empty.
func (s UploadStatus) Label() string {
	if t := strings.TrimSpace(s.StatusText); t != "" {
		return t
	}
	return StatusText(s.Status)
}

type ErrorRecord struct {
	Token       string     `json:"token"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status,omitempty"`
	MessageFile string     `json:"messageFile,omitempty"`
	MessageID   string     `json:"messageId,omitempty"`
	MessageData string     `json:"messageData,omitempty"`
	MessageText string     `json:"messageText,omitempty"`
	Resolution  Resolution `json:"resolution"`
}

type Resolution struct {
	Issue string  `json:"issue"`
	Fix   string  `json:"fix"`
	SQL   *string `json:"sql"`
}

func (r ErrorRecord) Headline() string {
	if t := strings.TrimSpace(r.MessageText); t != "" {
		return t
	}
	if id := strings.TrimSpace(r.MessageID); id != "" {
		return id
	}
	return "(no message)"
}

func (r Resolution) Command() string {
	if r.SQL == nil {
		return ""
	}
	return strings.TrimSpace(*r.SQL)
}

type HistoryEntry struct {
	GroupID     string `json:"groupId"`
	Description string `json:"description"`
	Status      string `json:"status"`
	StatusText  string `json:"statusText"`
	ChangeDate  any    `json:"changeDate,omitempty"`
	ChangeTime  any    `json:"changeTime,omitempty"`
	User        string `json:"user,omitempty"`
}

type Load struct {
	LoadID      string `json:"load_id"`
	Description string `json:"description"`
}

type HealthReport struct {
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Endpoints []string `json:"endpoints,omitempty"`
}
