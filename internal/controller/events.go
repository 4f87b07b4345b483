package controller

import (
	"sltk-monitor/internal/model"
	"sltk-monitor/internal/sltkapi"
)

// Event is anything the controller reacts to: user intents, I/O results
// and push channel notifications.
type Event interface {
	eventName() string
}

// FileSelected carries the outcome of validating a picked path.
type FileSelected struct {
	File *model.SelectedFile
	Err  error
}

type ClearFile struct{}

type StartUpload struct {
	LoadID string
}

type UploadFinished struct {
	Cycle  uint64
	Result sltkapi.UploadResult
	Err    error
}

type LinkageElapsed struct {
	Cycle uint64
}

type StatusUpdated struct {
	Status model.UploadStatus
}

type ProcessingCompleted struct {
	Status model.UploadStatus
}

type ChannelConnected struct {
	Message string
}

type ChannelFailed struct {
	GroupID string
	Message string
}

type Monitor struct {
	GroupID string
}

type MonitorSent struct {
	GroupID string
	Err     error
}

type StopMonitor struct{}

type FetchErrors struct{}

type ErrorsFetched struct {
	GroupID string
	Records []model.ErrorRecord
	Err     error
}

type DismissErrors struct{}

type CheckHealth struct{}

type HealthChecked struct {
	Report model.HealthReport
	Err    error
}

func (FileSelected) eventName() string        { return "file-selected" }
func (ClearFile) eventName() string           { return "clear-file" }
func (StartUpload) eventName() string         { return "start-upload" }
func (UploadFinished) eventName() string      { return "upload-finished" }
func (LinkageElapsed) eventName() string      { return "linkage-elapsed" }
func (StatusUpdated) eventName() string       { return "status-update" }
func (ProcessingCompleted) eventName() string { return "processing-complete" }
func (ChannelConnected) eventName() string    { return "channel-connected" }
func (ChannelFailed) eventName() string       { return "channel-error" }
func (Monitor) eventName() string             { return "monitor" }
func (MonitorSent) eventName() string         { return "monitor-sent" }
func (StopMonitor) eventName() string         { return "stop-monitor" }
func (FetchErrors) eventName() string         { return "fetch-errors" }
func (ErrorsFetched) eventName() string       { return "errors-fetched" }
func (DismissErrors) eventName() string       { return "dismiss-errors" }
func (CheckHealth) eventName() string         { return "check-health" }
func (HealthChecked) eventName() string       { return "health-checked" }

// Effect is I/O the runtime performs on behalf of a transition.
type Effect interface {
	effectName() string
}

type UploadFile struct {
	Cycle  uint64
	File   model.SelectedFile
	LoadID string
}

type ScheduleLinkage struct {
	Cycle uint64
}

type CancelLinkage struct{}

type SendMonitor struct {
	GroupID string
}

type SendStopMonitor struct {
	GroupID string
}

type LoadGroupErrors struct {
	GroupID string
}

type ProbeHealth struct{}

func (UploadFile) effectName() string      { return "upload" }
func (ScheduleLinkage) effectName() string { return "schedule-linkage" }
func (CancelLinkage) effectName() string   { return "cancel-linkage" }
func (SendMonitor) effectName() string     { return "send-monitor" }
func (SendStopMonitor) effectName() string { return "send-stop-monitor" }
func (LoadGroupErrors) effectName() string { return "load-group-errors" }
func (ProbeHealth) effectName() string     { return "probe-health" }
