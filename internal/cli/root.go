package cli

import (
	"fmt"

	"sltk-monitor/internal/config"
	"sltk-monitor/internal/version"
)

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "monitor":
		return runMonitor(args[1:])
	case "upload":
		return runUpload(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "errors":
		return runErrors(args[1:])
	case "status":
		return runStatus(args[1:])
	case "history":
		return runHistory(args[1:])
	case "loads":
		return runLoads(args[1:])
	case "health":
		return runHealth(args[1:])
	case "report":
		return runReport(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "version", "--version":
		fmt.Fprintln(stdout, "sltk-monitor "+version.Value)
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	w := stdout
	fmt.Fprintln(w, "sltk-monitor: upload SLTK workbooks and follow their processing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Quick Start:")
	fmt.Fprintln(w, "  sltk-monitor doctor")
	fmt.Fprintln(w, "  sltk-monitor monitor [--file <book.xlsx>] [--group <id>]")
	fmt.Fprintln(w, "  sltk-monitor upload <book.xlsx> --group <id>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Interactive:")
	fmt.Fprintln(w, "  monitor   terminal UI: pick a file, upload, watch progress, browse errors")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Batch Commands:")
	fmt.Fprintln(w, "  upload    upload a workbook; with --group, follow the job to completion")
	fmt.Fprintln(w, "  watch     follow a group until it finishes")
	fmt.Fprintln(w, "  errors    show (and export) error details for a group")
	fmt.Fprintln(w, "  status    show the current status of a group")
	fmt.Fprintln(w, "  history   list recent uploads")
	fmt.Fprintln(w, "  loads     list load definitions")
	fmt.Fprintln(w, "  report    print a saved error report file")
	fmt.Fprintln(w, "  health    check the backend")
	fmt.Fprintln(w, "  doctor    run connectivity and filesystem preflight checks")
	fmt.Fprintln(w, "  version   print the client version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Backend URL: --api-url, $SLTK_API_URL, $VITE_API_URL, .env or "+config.DefaultConfigFile)
	fmt.Fprintln(w, "  - Use --json on commands for machine-readable output")
	fmt.Fprintln(w, "  - Set SLTK_LOG_FILE to keep logs from the interactive monitor")
}
