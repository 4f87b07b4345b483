package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sltk-monitor/internal/controller"
	"sltk-monitor/internal/model"
)

func (m monitorModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}
	if m.state.ShowErrors && m.mode == monitorModeMain {
		return m.viewErrors()
	}

	header := m.renderHeader()
	var body string
	if m.width < 90 {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderFilePanel(m.width), m.renderJobPanel(m.width))
	} else {
		leftW := clampInt(m.width/2, 34, 56)
		rightW := m.width - leftW - 1
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderFilePanel(leftW), m.renderJobPanel(rightW))
	}

	parts := []string{header, body, m.renderMessageLine(m.width)}
	if m.mode != monitorModeMain {
		parts = append(parts, m.renderInputPanel(m.width))
	}
	parts = append(parts, m.renderStatusLine(m.width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m monitorModel) renderHeader() string {
	conn := monitorMutedStyle.Render("○ offline")
	switch {
	case m.state.Connected && m.state.Health == "running":
		conn = monitorOKStyle.Render("● connected")
	case m.state.Connected || m.state.Health != "":
		conn = monitorWarnStyle.Render("◐ partial")
	}
	title := monitorTitleStyle.Render("SLTK Upload Monitor") + "  " + conn + "  " + monitorMutedStyle.Render(m.apiURL)
	hints := "f: file | x: clear | l: load id | u/enter: upload | g: monitor group | s: stop | e: errors | q: quit"
	return title + "\n" + monitorMutedStyle.Render(truncateRunes(hints, maxInt(m.width, 20)))
}

func (m monitorModel) renderFilePanel(width int) string {
	lines := []string{"Upload Excel File", ""}
	if f := m.state.File; f != nil {
		lines = append(lines,
			kv("file", f.Name),
			kv("size", formatBytesIEC(f.Size)),
			kv("path", f.Path),
		)
	} else {
		lines = append(lines,
			monitorMutedStyle.Render("No file selected."),
			monitorMutedStyle.Render("Press f or drop a .xlsx/.xls file here."),
		)
	}
	if m.dropDir != "" {
		lines = append(lines, kv("drop folder", m.dropDir))
	}
	lines = append(lines, kv("load id", defaultIfEmpty(m.loadID, "(none)")), "")

	switch {
	case m.state.Busy && m.state.Activity == controller.ActivityUploading:
		lines = append(lines, m.spin.View()+" uploading...")
	case m.state.CanUpload():
		lines = append(lines, monitorOKStyle.Render("Ready: press u to upload"))
	}

	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return monitorPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m monitorModel) renderJobPanel(width int) string {
	lines := []string{"Processing Status", ""}
	st := m.state.Status
	switch {
	case st != nil:
		lines = append(lines,
			kv("group", st.GroupID),
			kv("status", statusStyle(st.Status).Render(st.Label())),
		)
		if st.Description != "" {
			lines = append(lines, kv("description", st.Description))
		}
		if st.User != "" {
			lines = append(lines, kv("user", st.User))
		}
		lines = append(lines, "", m.bar.ViewAs(float64(st.Progress.ClampedPercentage())/100))
		lines = append(lines, progressCounts(st.Progress))
		if st.Progress.Errors > 0 && !m.state.ShowErrors {
			lines = append(lines, "", monitorWarnStyle.Render(fmt.Sprintf("%d error(s): press e for details", st.Progress.Errors)))
		}
	case m.state.Watching != "":
		lines = append(lines, kv("group", m.state.Watching), "", m.spin.View()+" waiting for the first update...")
	default:
		lines = append(lines, monitorMutedStyle.Render("Not monitoring a group."), monitorMutedStyle.Render("Press g to enter a Group ID."))
	}
	if m.state.Watching != "" && m.state.Busy {
		lines = append(lines, "", monitorMutedStyle.Render("monitoring "+m.state.Watching+" (s to stop)"))
	}

	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return monitorPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m monitorModel) renderMessageLine(width int) string {
	msg := m.state.Message
	if strings.TrimSpace(msg.Text) == "" {
		return ""
	}
	text := truncateRunes(msg.Text, maxInt(width-4, 10))
	if m.state.Busy {
		text = m.spin.View() + " " + text
	}
	return messageStyle(msg.Kind).Render(text)
}

func (m monitorModel) renderInputPanel(width int) string {
	label := ""
	switch m.mode {
	case monitorModeFileInput:
		label = "Excel file path (paste or drop a file)"
	case monitorModeGroupInput:
		label = "Group ID to monitor"
	case monitorModeLoadInput:
		label = "Load ID for the next upload"
	}
	hint := monitorMutedStyle.Render("enter: confirm | esc: cancel")
	return monitorPanelStyle.Width(maxInt(width, 40)).Render(label + "\n" + m.input.View() + "\n" + hint)
}

func (m monitorModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		return ""
	}
	return monitorMutedStyle.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func (m monitorModel) viewErrors() string {
	records := m.state.Errors
	boxW := clampInt(m.width-8, 40, 120)
	boxH := clampInt(m.height-4, 10, 40)

	title := monitorErrorStyle.Render(fmt.Sprintf("Error Details (%d)", len(records)))
	if m.state.Status != nil {
		title += monitorMutedStyle.Render("  group " + m.state.Status.GroupID)
	}
	lines := []string{title, ""}
	if len(records) == 0 {
		lines = append(lines, monitorMutedStyle.Render("The backend returned no error records."))
	}

	listRows := clampInt(boxH/2-2, 3, 12)
	start, end := listWindow(len(records), m.errCursor, listRows)
	if start > 0 {
		lines = append(lines, monitorMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		r := records[i]
		line := truncateRunes(fmt.Sprintf("#%d %s  %s", r.Sequence, r.Token, r.Headline()), maxInt(boxW-6, 10))
		if i == m.errCursor {
			line = monitorSelStyle.Width(maxInt(boxW-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(records) {
		lines = append(lines, monitorMutedStyle.Render("..."))
	}

	if len(records) > 0 {
		lines = append(lines, "")
		lines = append(lines, errorDetailLines(records[m.errCursor], boxW-6)...)
	}
	lines = append(lines, "", monitorMutedStyle.Render("up/down: move | esc/enter: close"))

	panel := monitorPanelStyle.Width(boxW).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func errorDetailLines(r model.ErrorRecord, width int) []string {
	lines := []string{
		kv("token", r.Token),
		kv("sequence", fmt.Sprint(r.Sequence)),
	}
	if r.MessageID != "" {
		lines = append(lines, kv("message", strings.TrimSpace(r.MessageFile+" "+r.MessageID)))
	}
	if r.MessageText != "" {
		lines = append(lines, kv("text", r.MessageText))
	}
	if r.MessageData != "" {
		lines = append(lines, kv("data", r.MessageData))
	}
	if r.Resolution.Issue != "" {
		lines = append(lines, kv("issue", r.Resolution.Issue))
	}
	if r.Resolution.Fix != "" {
		lines = append(lines, monitorOKStyle.Render(kv("fix", r.Resolution.Fix)))
	}
	if cmd := r.Resolution.Command(); cmd != "" {
		lines = append(lines, kv("sql", cmd))
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width, 12))
	}
	return lines
}

func messageStyle(kind controller.MessageKind) lipgloss.Style {
	switch kind {
	case controller.KindSuccess:
		return monitorOKStyle
	case controller.KindWarning:
		return monitorWarnStyle
	case controller.KindError:
		return monitorErrorStyle
	default:
		return lipgloss.NewStyle()
	}
}

func statusStyle(code string) lipgloss.Style {
	switch model.NormalizeStatus(code) {
	case model.StatusSuccess:
		return monitorOKStyle
	case model.StatusError, model.StatusValidationError:
		return monitorErrorStyle
	case model.StatusCancelled:
		return monitorWarnStyle
	default:
		return lipgloss.NewStyle()
	}
}
