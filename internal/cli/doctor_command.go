package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"sltk-monitor/internal/doctor"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	common := addCommonFlags(fs)
	reportDir := fs.String("report-dir", "", "directory error reports are written to (default from config, else .)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
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

	dir := strings.TrimSpace(*reportDir)
	if dir == "" {
		dir = settings.ReportDir
	}

	ctx, cancel := lookupContext()
	defer cancel()
	res, err := doctor.Run(ctx, newAPIClient(settings), doctor.Options{
		PushURL:   settings.PushURL(),
		ReportDir: dir,
		Timeout:   settings.RequestTimeout,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Fprintf(stdout, "%s\n", kv("api", settings.APIURL))
	if settings.ConfigFile != "" {
		fmt.Fprintf(stdout, "%s\n", kv("config", settings.ConfigFile))
	}
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Fprintf(stdout, "%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Fprintln(stdout, "doctor: all checks passed")
	return nil
}
