package cli

import (
	"flag"
	"fmt"
	"strings"

	"sltk-monitor/internal/report"
)

// runReport prints an error report previously saved by errors --out,
// upload --report or watch --report.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	file := fs.String("file", "", "error report JSON file; may also be given as the first argument")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())

	var positional string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := strings.TrimSpace(*file)
	if path == "" {
		path = strings.TrimSpace(positional)
	}
	if path == "" && fs.NArg() > 0 {
		path = strings.TrimSpace(fs.Arg(0))
	}
	if path == "" {
		return fmt.Errorf("report file is required")
	}

	rep, err := report.ReadErrorReport(path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(rep)
	}
	fmt.Fprintf(stdout, "%s\n", kv("group", rep.GroupID))
	fmt.Fprintf(stdout, "%s\n", kv("generated", rep.GeneratedAt))
	if rep.APIURL != "" {
		fmt.Fprintf(stdout, "%s\n", kv("api", rep.APIURL))
	}
	fmt.Fprintf(stdout, "%s\n", kv("errors", fmt.Sprint(rep.ErrorCount)))
	printErrorRecords(stdout, rep.Errors)
	return nil
}
