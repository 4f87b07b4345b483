package controller

import "sltk-monitor/internal/model"

type MessageKind int

const (
	KindNone MessageKind = iota
	KindInfo
	KindSuccess
	KindWarning
	KindError
)

func (k MessageKind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindSuccess:
		return "success"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	default:
		return "none"
	}
}

// Message is the single user-facing line the controller keeps.
type Message struct {
	Text string
	Kind MessageKind
}

// Activity tracks which operation holds the busy flag.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityUploading
	ActivityLinking
	ActivityMonitoring
)

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseFileReady          Phase = "file-ready"
	PhaseUploading          Phase = "uploading"
	PhaseAwaitingJobLinkage Phase = "awaiting-job-linkage"
	PhaseMonitoring         Phase = "monitoring"
	PhaseFinished           Phase = "finished"
)

// State is a value snapshot. The controller replaces it as a whole on
// every event, so a State handed to an observer is never mutated later.
type State struct {
	File           *model.SelectedFile
	Busy           bool
	Activity       Activity
	Message        Message
	Status         *model.UploadStatus
	Errors         []model.ErrorRecord
	ShowErrors     bool
	// FetchingErrors is set while an error detail request is in flight.
	FetchingErrors bool
	// Completed is set once processing-complete was applied for Status.
	Completed bool
	Watching       string
	Connected      bool
	Health         string
	Cycle          uint64
}

func (s State) Phase() Phase {
	if s.Busy {
		switch s.Activity {
		case ActivityUploading:
			return PhaseUploading
		case ActivityLinking:
			return PhaseAwaitingJobLinkage
		case ActivityMonitoring:
			return PhaseMonitoring
		}
	}
	if s.Completed || (s.Status != nil && model.IsTerminal(s.Status.Status)) {
		return PhaseFinished
	}
	if s.File != nil {
		return PhaseFileReady
	}
	return PhaseIdle
}

// CanUpload reports whether an upload may start from this state.
func (s State) CanUpload() bool {
	return s.File != nil && !s.Busy
}

// CanFetchErrors reports whether the current status has error details to load.
func (s State) CanFetchErrors() bool {
	return s.Status != nil && s.Status.Progress.Errors > 0
}
