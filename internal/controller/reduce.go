package controller

import (
	"errors"
	"fmt"
	"strings"

	"sltk-monitor/internal/model"
	"sltk-monitor/internal/sltkapi"
)

const (
	MsgNotSpreadsheet = "Please upload an Excel file (.xlsx or .xls)"
	MsgUploading      = "Uploading file to IBM i..."
	MsgUploaded       = "File uploaded! Waiting for SLTKDRP to process..."
	MsgEnterGroupID   = "File uploaded. Enter Group ID to monitor, or check history."
)

// ErrIgnored marks events that do not apply to the current state.
var ErrIgnored = errors.New("event ignored")

// Step admits ev against s and, when admitted, returns the next state and
// the effects to run. A non-nil error means s is returned unchanged.
func Step(s State, ev Event) (State, []Effect, error) {
	if err := admit(s, ev); err != nil {
		return s, nil, err
	}
	next, effects := reduce(s, ev)
	return next, effects, nil
}

// admit drops stale results and out-of-order status notifications.
func admit(s State, ev Event) error {
	switch e := ev.(type) {
	case FileSelected, ClearFile:
		if s.Busy {
			return fmt.Errorf("%w: file selection locked while busy", ErrIgnored)
		}
	case StartUpload:
		if !s.CanUpload() {
			return fmt.Errorf("%w: no file selected or already busy", ErrIgnored)
		}
	case UploadFinished:
		if e.Cycle != s.Cycle || s.Activity != ActivityUploading {
			return fmt.Errorf("%w: stale upload result for cycle %d", ErrIgnored, e.Cycle)
		}
	case LinkageElapsed:
		if e.Cycle != s.Cycle || s.Activity != ActivityLinking {
			return fmt.Errorf("%w: stale job linkage for cycle %d", ErrIgnored, e.Cycle)
		}
	case StatusUpdated:
		return model.CheckTransition(s.Status, e.Status)
	case ProcessingCompleted:
		return model.CheckTransition(s.Status, e.Status)
	case Monitor:
		if strings.TrimSpace(e.GroupID) == "" {
			return fmt.Errorf("%w: empty group id", ErrIgnored)
		}
	case MonitorSent:
		if e.GroupID != s.Watching {
			return fmt.Errorf("%w: monitor result for %q while watching %q", ErrIgnored, e.GroupID, s.Watching)
		}
	case StopMonitor:
		if s.Watching == "" {
			return fmt.Errorf("%w: not monitoring", ErrIgnored)
		}
	case FetchErrors:
		if !s.CanFetchErrors() {
			return fmt.Errorf("%w: no errors to fetch", ErrIgnored)
		}
	case ErrorsFetched:
		if s.Status == nil || s.Status.GroupID != e.GroupID {
			return fmt.Errorf("%w: error details for %q no longer current", ErrIgnored, e.GroupID)
		}
	}
	return nil
}

func reduce(s State, ev Event) (State, []Effect) {
	next := s
	switch e := ev.(type) {
	case FileSelected:
		if e.Err != nil {
			next.Message = selectionWarning(e.Err)
			return next, nil
		}
		next.File = e.File
		next.Message = Message{}
		next.Status = nil
		next.Completed = false
		next.Errors = nil
		next.ShowErrors = false
		next.FetchingErrors = false
		return next, nil

	case ClearFile:
		next.File = nil
		return next, nil

	case StartUpload:
		next.Cycle++
		next.Busy = true
		next.Activity = ActivityUploading
		next.Message = Message{Text: MsgUploading, Kind: KindInfo}
		next.Status = nil
		next.Completed = false
		next.Errors = nil
		next.ShowErrors = false
		next.FetchingErrors = false
		return next, []Effect{
			CancelLinkage{},
			UploadFile{Cycle: next.Cycle, File: *s.File, LoadID: strings.TrimSpace(e.LoadID)},
		}

	case UploadFinished:
		if e.Err != nil {
			next.Busy = false
			next.Activity = ActivityNone
			if msg, ok := sltkapi.RejectionMessage(e.Err); ok {
				next.Message = Message{Text: "Upload failed: " + msg, Kind: KindError}
			} else {
				next.Message = Message{Text: "Error: " + e.Err.Error(), Kind: KindError}
			}
			return next, nil
		}
		next.Activity = ActivityLinking
		next.Message = Message{Text: MsgUploaded, Kind: KindSuccess}
		return next, []Effect{ScheduleLinkage{Cycle: s.Cycle}}

	case LinkageElapsed:
		next.Busy = false
		next.Activity = ActivityNone
		next.Message = Message{Text: MsgEnterGroupID, Kind: KindInfo}
		return next, nil

	case StatusUpdated:
		st := e.Status
		next.Status = &st
		next.Completed = false
		next.Message = Message{
			Text: fmt.Sprintf("%s - %d%% complete", st.Label(), st.Progress.ClampedPercentage()),
			Kind: KindInfo,
		}
		return next, nil

	case ProcessingCompleted:
		st := e.Status
		next.Status = &st
		next.Completed = true
		next = release(next)
		switch model.NormalizeStatus(st.Status) {
		case model.StatusSuccess:
			next.Message = Message{
				Text: fmt.Sprintf("Upload complete! %d/%d transactions processed", st.Progress.Completed, st.Progress.Total),
				Kind: KindSuccess,
			}
			return next, nil
		case model.StatusError:
			next.Message = Message{
				Text: fmt.Sprintf("Upload completed with %d errors", st.Progress.Errors),
				Kind: KindWarning,
			}
			next.FetchingErrors = true
			return next, []Effect{LoadGroupErrors{GroupID: st.GroupID}}
		default:
			next.Message = Message{Text: "Processing finished: " + st.Label(), Kind: KindWarning}
			return next, nil
		}

	case ChannelConnected:
		next.Connected = true
		return next, nil

	case ChannelFailed:
		if e.GroupID == "" {
			next.Connected = false
		}
		return channelFailed(next, e.GroupID, e.Message), nil

	case Monitor:
		id := strings.TrimSpace(e.GroupID)
		next.Busy = true
		next.Activity = ActivityMonitoring
		next.Watching = id
		next.Completed = false
		next.Message = Message{Text: fmt.Sprintf("Monitoring group %s...", id), Kind: KindInfo}
		return next, []Effect{CancelLinkage{}, SendMonitor{GroupID: id}}

	case MonitorSent:
		if e.Err == nil {
			next.Connected = true
			return next, nil
		}
		next.Connected = false
		return channelFailed(next, e.GroupID, e.Err.Error()), nil

	case StopMonitor:
		id := next.Watching
		next.Watching = ""
		if next.Activity == ActivityMonitoring {
			next.Busy = false
			next.Activity = ActivityNone
		}
		next.Message = Message{Text: fmt.Sprintf("Stopped monitoring group %s", id), Kind: KindInfo}
		return next, []Effect{SendStopMonitor{GroupID: id}}

	case FetchErrors:
		next.FetchingErrors = true
		return next, []Effect{LoadGroupErrors{GroupID: s.Status.GroupID}}

	case ErrorsFetched:
		next.FetchingErrors = false
		if e.Err != nil {
			next.Message = Message{Text: "Could not load error details: " + e.Err.Error(), Kind: KindError}
			return next, nil
		}
		next.Errors = e.Records
		next.ShowErrors = true
		return next, nil

	case DismissErrors:
		next.ShowErrors = false
		return next, nil

	case CheckHealth:
		return next, []Effect{ProbeHealth{}}

	case HealthChecked:
		if e.Err != nil {
			next.Health = ""
			return next, nil
		}
		next.Health = e.Report.Status
		return next, nil
	}
	return next, nil
}

func selectionWarning(err error) Message {
	if errors.Is(err, model.ErrNotSpreadsheet) {
		return Message{Text: MsgNotSpreadsheet, Kind: KindWarning}
	}
	return Message{Text: "Cannot use file: " + err.Error(), Kind: KindWarning}
}

// release clears Busy. Monitoring ends; an upload result or a pending job
// linkage of the current cycle is still admitted later. Status is kept.
func release(s State) State {
	s.Busy = false
	if s.Activity == ActivityMonitoring {
		s.Activity = ActivityNone
	}
	return s
}

func channelFailed(s State, groupID, msg string) State {
	s = release(s)
	s.Message = Message{Text: "Error: " + msg, Kind: KindError}
	if groupID == "" || groupID == s.Watching {
		s.Watching = ""
	}
	return s
}
