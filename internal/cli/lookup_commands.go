package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"sltk-monitor/internal/model"
	"sltk-monitor/internal/report"
	"sltk-monitor/internal/sltkapi"
)

func runErrors(args []string) error {
	fs := flag.NewFlagSet("errors", flag.ContinueOnError)
	common := addCommonFlags(fs)
	group := fs.String("group", "", "group id")
	out := fs.String("out", "", "write an error report JSON file to this path")
	outDir := fs.String("out-dir", "", "write the error report into this directory using a default name")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := requireGroup(*group)
	if err != nil {
		return err
	}
	api, closeLog, err := openAPI(common)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := lookupContext()
	defer cancel()
	res, err := api.GroupErrors(ctx, groupID)
	if err != nil {
		return err
	}

	path := strings.TrimSpace(*out)
	if path == "" && strings.TrimSpace(*outDir) != "" {
		path = report.DefaultPath(strings.TrimSpace(*outDir), groupID)
	}
	if path != "" {
		rep := report.NewErrorReport(groupID, api.BaseURL(), res.Errors, time.Now())
		if err := report.WriteErrorReport(path, rep); err != nil {
			return err
		}
	}

	if *jsonOut {
		return printJSON(res)
	}
	fmt.Fprintf(stdout, "group %s: %d error(s)\n", groupID, len(res.Errors))
	printErrorRecords(stdout, res.Errors)
	if path != "" {
		fmt.Fprintf(stdout, "error report written to %s\n", path)
	}
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	common := addCommonFlags(fs)
	group := fs.String("group", "", "group id")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupID, err := requireGroup(*group)
	if err != nil {
		return err
	}
	api, closeLog, err := openAPI(common)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := lookupContext()
	defer cancel()
	st, err := api.GroupStatus(ctx, groupID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(st)
	}

	fmt.Fprintf(stdout, "%s [%s]\n", st.GroupID, st.Label())
	if st.Description != "" {
		fmt.Fprintf(stdout, "  %s\n", kv("description", st.Description))
	}
	if st.User != "" {
		fmt.Fprintf(stdout, "  %s\n", kv("user", st.User))
	}
	if stamp := formatChangeStamp(st.ChangeDate, st.ChangeTime); stamp != "" {
		fmt.Fprintf(stdout, "  %s\n", kv("changed", stamp))
	}
	fmt.Fprintf(stdout, "  %s\n", kv("progress", fmt.Sprintf("%d%%", st.Progress.ClampedPercentage())))
	fmt.Fprintf(stdout, "  %s\n", progressCounts(st.Progress))
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	common := addCommonFlags(fs)
	user := fs.String("user", "", "only uploads by this user")
	status := fs.String("status", "", "only groups with this status code (P,R,O,X,E,C,V)")
	from := fs.Int("from", 0, "from change date (backend numeric date)")
	to := fs.Int("to", 0, "to change date (backend numeric date)")
	limit := fs.Int("limit", 50, "max rows")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	code := model.NormalizeStatus(*status)
	if code != "" && !model.IsKnownStatus(code) {
		return fmt.Errorf("unknown status code %q", *status)
	}
	api, closeLog, err := openAPI(common)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := lookupContext()
	defer cancel()
	rows, err := api.History(ctx, sltkapi.HistoryQuery{
		User:     strings.TrimSpace(*user),
		Status:   code,
		FromDate: *from,
		ToDate:   *to,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "no uploads found")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSTATUS\tUSER\tCHANGED\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.GroupID,
			defaultIfEmpty(r.StatusText, model.StatusText(r.Status)),
			defaultIfEmpty(r.User, "-"),
			defaultIfEmpty(formatChangeStamp(r.ChangeDate, r.ChangeTime), "-"),
			truncateRunes(r.Description, 48),
		)
	}
	return tw.Flush()
}

func runLoads(args []string) error {
	fs := flag.NewFlagSet("loads", flag.ContinueOnError)
	common := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	api, closeLog, err := openAPI(common)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := lookupContext()
	defer cancel()
	loads, err := api.Loads(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(loads)
	}
	if len(loads) == 0 {
		fmt.Fprintln(stdout, "no load definitions")
		return nil
	}
	for _, l := range loads {
		fmt.Fprintf(stdout, "%-12s %s\n", l.LoadID, l.Description)
	}
	return nil
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	common := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	api, closeLog, err := openAPI(common)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := lookupContext()
	defer cancel()
	h, err := api.Health(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(h)
	}
	fmt.Fprintf(stdout, "%s: %s\n", api.BaseURL(), h.Status)
	if h.Message != "" {
		fmt.Fprintf(stdout, "  %s\n", h.Message)
	}
	for _, e := range h.Endpoints {
		fmt.Fprintf(stdout, "  %s\n", e)
	}
	return nil
}

func requireGroup(raw string) (string, error) {
	if id := strings.TrimSpace(raw); id != "" {
		return id, nil
	}
	return promptRequired("Group ID")
}

func openAPI(common commonFlags) (*sltkapi.Client, func(), error) {
	settings, err := common.load()
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := configureLogging(settings, false)
	if err != nil {
		return nil, nil, err
	}
	return newAPIClient(settings), closeLog, nil
}

// lookupContext ends a one-shot request early on Ctrl-C.
func lookupContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
