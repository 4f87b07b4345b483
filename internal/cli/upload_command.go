package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"sltk-monitor/internal/config"
	"sltk-monitor/internal/controller"
	"sltk-monitor/internal/model"
	"sltk-monitor/internal/report"
)

type jobOptions struct {
	file       *model.SelectedFile
	loadID     string
	groupID    string
	reportPath string
	jsonOut    bool
	timeout    time.Duration
}

type jobSummary struct {
	File       string              `json:"file,omitempty"`
	GroupID    string              `json:"group_id,omitempty"`
	Status     string              `json:"status,omitempty"`
	StatusText string              `json:"status_text,omitempty"`
	Progress   *model.Progress     `json:"progress,omitempty"`
	Message    string              `json:"message"`
	Errors     []model.ErrorRecord `json:"errors,omitempty"`
	ReportPath string              `json:"report_path,omitempty"`
}

func runUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	common := addCommonFlags(fs)
	file := fs.String("file", "", "Excel workbook to upload (.xlsx or .xls); may also be given as the first argument")
	loadID := fs.String("load-id", "", "optional load id passed to the backend")
	group := fs.String("group", "", "group id to monitor once the upload is accepted")
	reportPath := fs.String("report", "", "write error details to this JSON file when the job ends with errors")
	timeout := fs.Duration("timeout", 0, "give up after this long (0 = no limit)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		path = strings.TrimSpace(fs.Arg(0))
	}
	if path == "" {
		return errors.New("upload requires a file: sltk-monitor upload <file.xlsx>")
	}
	selected, err := model.SelectFile(path)
	if err != nil {
		if errors.Is(err, model.ErrNotSpreadsheet) {
			return errors.New(controller.MsgNotSpreadsheet)
		}
		return err
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	closeLog, err := configureLogging(settings, false)
	if err != nil {
		return err
	}
	defer closeLog()

	return runJob(settings, jobOptions{
		file:       &selected,
		loadID:     *loadID,
		groupID:    strings.TrimSpace(*group),
		reportPath: strings.TrimSpace(*reportPath),
		jsonOut:    *jsonOut,
		timeout:    *timeout,
	})
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	common := addCommonFlags(fs)
	group := fs.String("group", "", "group id to monitor")
	reportPath := fs.String("report", "", "write error details to this JSON file when the job ends with errors")
	timeout := fs.Duration("timeout", 0, "give up after this long (0 = no limit)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	groupID := strings.TrimSpace(*group)
	if groupID == "" {
		v, err := promptRequired("Group ID")
		if err != nil {
			return err
		}
		groupID = v
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	closeLog, err := configureLogging(settings, false)
	if err != nil {
		return err
	}
	defer closeLog()

	return runJob(settings, jobOptions{
		groupID:    groupID,
		reportPath: strings.TrimSpace(*reportPath),
		jsonOut:    *jsonOut,
		timeout:    *timeout,
	})
}

func runJob(settings config.Settings, opts jobOptions) error {
	var hook func(prev, next controller.State)
	if !opts.jsonOut {
		hook = messagePrinter()
	}
	ms := newMonitorSession(settings, hook)

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	stop := ms.start(ctx, false)
	final, driveErr := drive(ctx, ms.ctrl, opts)
	if err := stop(); err != nil && driveErr == nil {
		driveErr = err
	}

	summary := summarize(final, opts)
	if len(final.Errors) > 0 && opts.reportPath != "" {
		rep := report.NewErrorReport(summary.GroupID, settings.APIURL, final.Errors, time.Now())
		if err := report.WriteErrorReport(opts.reportPath, rep); err != nil {
			return err
		}
		summary.ReportPath = opts.reportPath
	}

	if opts.jsonOut {
		if err := printJSON(summary); err != nil {
			return err
		}
	} else {
		if len(final.Errors) > 0 {
			printErrorRecords(stdout, final.Errors)
		}
		if summary.ReportPath != "" {
			fmt.Fprintf(stdout, "error report written to %s\n", summary.ReportPath)
		}
		if opts.groupID == "" && driveErr == nil {
			fmt.Fprintln(stdout, "next: sltk-monitor watch --group <id>")
		}
	}

	if driveErr != nil {
		return driveErr
	}
	return jobOutcome(final)
}

// drive issues the upload and/or monitor request and waits for each to
// settle.
func drive(ctx context.Context, ctrl *controller.Controller, opts jobOptions) (controller.State, error) {
	if opts.file != nil {
		ctrl.Dispatch(controller.FileSelected{File: opts.file})
		ctrl.Upload(opts.loadID)
		s, err := waitForState(ctx, ctrl, uploadSettled)
		if err != nil {
			return s, err
		}
		if s.Message.Kind == controller.KindError {
			return s, errors.New("upload was not accepted")
		}
	}
	if opts.groupID == "" {
		return ctrl.Snapshot(), nil
	}

	ctrl.Monitor(opts.groupID)
	s, err := waitForState(ctx, ctrl, jobSettled(opts.groupID))
	if err != nil {
		return s, err
	}
	if !completedGroup(s, opts.groupID) {
		if s.Message.Kind == controller.KindError {
			return s, errors.New(s.Message.Text)
		}
		return s, errors.New("monitoring stopped before the job finished")
	}
	return s, nil
}

func uploadSettled(s controller.State) bool {
	return s.Cycle > 0 && !s.Busy
}

// jobSettled waits for the group's completion notification, and any error
// detail fetch it started, or for a channel failure.
func jobSettled(groupID string) func(controller.State) bool {
	return func(s controller.State) bool {
		if s.Busy || s.FetchingErrors {
			return false
		}
		return completedGroup(s, groupID) || s.Message.Kind == controller.KindError
	}
}

// completedGroup reports whether processing-complete was applied for groupID.
// A progress update followed by a channel failure is not a completion.
func completedGroup(s controller.State, groupID string) bool {
	return s.Completed && s.Status != nil && s.Status.GroupID == groupID
}

func jobOutcome(s controller.State) error {
	if s.Status == nil {
		return nil
	}
	switch model.NormalizeStatus(s.Status.Status) {
	case model.StatusSuccess:
		return nil
	case model.StatusError:
		return fmt.Errorf("group %s finished with %d errors", s.Status.GroupID, s.Status.Progress.Errors)
	default:
		return fmt.Errorf("group %s finished: %s", s.Status.GroupID, s.Status.Label())
	}
}

func summarize(s controller.State, opts jobOptions) jobSummary {
	out := jobSummary{
		GroupID: opts.groupID,
		Message: s.Message.Text,
		Errors:  s.Errors,
	}
	if opts.file != nil {
		out.File = opts.file.Path
	}
	if s.Status != nil {
		p := s.Status.Progress
		out.GroupID = s.Status.GroupID
		out.Status = s.Status.Status
		out.StatusText = s.Status.Label()
		out.Progress = &p
	}
	return out
}

func messagePrinter() func(prev, next controller.State) {
	return func(prev, next controller.State) {
		if next.Message == prev.Message || next.Message.Text == "" {
			return
		}
		fmt.Fprintln(stdout, next.Message.Text)
	}
}
