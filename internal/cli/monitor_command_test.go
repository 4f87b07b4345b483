package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sltk-monitor/internal/controller"
	"sltk-monitor/internal/model"
)

type fakeDriver struct {
	calls   []string
	updates chan controller.State
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{updates: make(chan controller.State, 1)}
}

func (f *fakeDriver) SelectFile(path string)           { f.calls = append(f.calls, "select:"+path) }
func (f *fakeDriver) ClearFile()                       { f.calls = append(f.calls, "clear") }
func (f *fakeDriver) Upload(loadID string)             { f.calls = append(f.calls, "upload:"+loadID) }
func (f *fakeDriver) Monitor(groupID string)           { f.calls = append(f.calls, "monitor:"+groupID) }
func (f *fakeDriver) StopMonitor()                     { f.calls = append(f.calls, "stop") }
func (f *fakeDriver) FetchErrors()                     { f.calls = append(f.calls, "fetch") }
func (f *fakeDriver) DismissErrors()                   { f.calls = append(f.calls, "dismiss") }
func (f *fakeDriver) Updates() <-chan controller.State { return f.updates }

func (f *fakeDriver) last() string {
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeInto(t *testing.T, m monitorModel, text string) monitorModel {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(monitorModel)
	}
	return m
}

func press(t *testing.T, m monitorModel, msg tea.Msg) monitorModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(monitorModel)
}

func TestMonitorFileInputSelectsPath(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "http://localhost:44001", "")

	m = press(t, m, runes("f"))
	if m.mode != monitorModeFileInput {
		t.Fatalf("expected file input mode, got %v", m.mode)
	}
	m = typeInto(t, m, "/data/loads.xlsx")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != monitorModeMain {
		t.Fatalf("expected main mode after enter, got %v", m.mode)
	}
	if got := d.last(); got != "select:/data/loads.xlsx" {
		t.Fatalf("unexpected call %q", got)
	}
}

func TestMonitorPastedPathSelectsFile(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'/tmp/GL Loads.xlsx'"), Paste: true})
	if got := d.last(); got != "select:'/tmp/GL Loads.xlsx'" {
		t.Fatalf("unexpected call %q", got)
	}
}

func TestMonitorUploadRequiresFile(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "L7")

	m = press(t, m, runes("u"))
	if len(d.calls) != 0 {
		t.Fatalf("upload without file should not reach the controller: %v", d.calls)
	}
	if m.statusMessage == "" {
		t.Fatal("expected a hint")
	}

	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{File: &model.SelectedFile{Name: "a.xlsx", Path: "/a.xlsx"}}})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := d.last(); got != "upload:L7" {
		t.Fatalf("unexpected call %q", got)
	}
}

func TestMonitorFileInputLockedWhileBusy(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")
	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{Busy: true, Activity: controller.ActivityUploading}})

	m = press(t, m, runes("f"))
	if m.mode != monitorModeMain {
		t.Fatal("file input should stay closed while busy")
	}
}

func TestMonitorGroupInputAndStop(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")

	m = press(t, m, runes("g"))
	m = typeInto(t, m, "G123")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := d.last(); got != "monitor:G123" {
		t.Fatalf("unexpected call %q", got)
	}

	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{Busy: true, Activity: controller.ActivityMonitoring, Watching: "G123"}})
	m = press(t, m, runes("s"))
	if got := d.last(); got != "stop" {
		t.Fatalf("unexpected call %q", got)
	}
}

func TestMonitorGroupInputRequiresValue(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")

	m = press(t, m, runes("g"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(d.calls) != 0 {
		t.Fatalf("unexpected calls %v", d.calls)
	}
	if m.statusMessage != "group id is required" {
		t.Fatalf("status message = %q", m.statusMessage)
	}
}

func TestMonitorEscCancelsInput(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")

	m = press(t, m, runes("l"))
	m = typeInto(t, m, "L9")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != monitorModeMain || m.loadID != "" {
		t.Fatalf("mode=%v loadID=%q", m.mode, m.loadID)
	}

	m = press(t, m, runes("l"))
	m = typeInto(t, m, "L9")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.loadID != "L9" {
		t.Fatalf("loadID = %q", m.loadID)
	}
}

func TestMonitorErrorModal(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")
	st := model.UploadStatus{GroupID: "G5", Status: model.StatusError, Progress: model.Progress{Total: 3, Completed: 1, Errors: 2}}

	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{Status: &st}})
	m = press(t, m, runes("e"))
	if got := d.last(); got != "fetch" {
		t.Fatalf("unexpected call %q", got)
	}

	records := []model.ErrorRecord{
		{Token: "T1", Sequence: 1, MessageText: "Invalid account"},
		{Token: "T2", Sequence: 2, MessageText: "Missing cost center", Resolution: model.Resolution{Fix: "Add a cost center"}},
	}
	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{Status: &st, Errors: records, ShowErrors: true}})
	view := m.View()
	if !strings.Contains(view, "Error Details (2)") || !strings.Contains(view, "Invalid account") {
		t.Fatalf("modal not rendered:\n%s", view)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.errCursor != 1 {
		t.Fatalf("errCursor = %d", m.errCursor)
	}
	if view := m.View(); !strings.Contains(view, "Add a cost center") {
		t.Fatalf("selected record details missing:\n%s", view)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := d.last(); got != "dismiss" {
		t.Fatalf("unexpected call %q", got)
	}
}

func TestMonitorFetchWithoutErrorsShowsHint(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")
	m = press(t, m, runes("e"))
	if len(d.calls) != 0 || m.statusMessage == "" {
		t.Fatalf("calls=%v status=%q", d.calls, m.statusMessage)
	}
}

func TestMonitorViewShowsProgressAndMessage(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "http://ibmi:44001", "")
	m.dropDir = "/srv/inbox"
	st := model.UploadStatus{
		GroupID:    "G8",
		Status:     model.StatusProcessing,
		StatusText: "Processing",
		Progress:   model.Progress{Total: 10, Completed: 4, Percentage: 40},
	}
	m = press(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = press(t, m, monitorStateMsg{ok: true, state: controller.State{
		Status:    &st,
		Busy:      true,
		Activity:  controller.ActivityMonitoring,
		Watching:  "G8",
		Connected: true,
		Health:    "running",
		Message:   controller.Message{Text: "Processing - 40% complete", Kind: controller.KindInfo},
	}})

	view := m.View()
	for _, want := range []string{"G8", "Processing - 40% complete", "4/10 done", "connected", "http://ibmi:44001", "drop folder: /srv/inbox"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorQuitsWhenControllerStops(t *testing.T) {
	d := newFakeDriver()
	m := newMonitorModel(d, "", "")
	_, cmd := m.Update(monitorStateMsg{ok: false})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
