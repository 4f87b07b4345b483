package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sltk-monitor/internal/model"
	"sltk-monitor/internal/push"
	"sltk-monitor/internal/report"
)

type HealthProber interface {
	Health(ctx context.Context) (model.HealthReport, error)
}

type Options struct {
	PushURL   string
	ReportDir string
	Timeout   time.Duration
}

type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Run executes the preflight checks. Individual failures are reported in
// the result; the error is reserved for a cancelled context.
func Run(ctx context.Context, api HealthProber, opts Options) (Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reportDir := strings.TrimSpace(opts.ReportDir)
	if reportDir == "" {
		reportDir = "."
	}

	checks := make([]Check, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checks[0] = checkHealth(gctx, api, timeout)
		return nil
	})
	g.Go(func() error {
		checks[1] = checkPush(gctx, opts.PushURL, timeout)
		return nil
	})
	g.Go(func() error {
		checks[2] = checkReportDir(reportDir)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return Result{OK: ok, Checks: checks}, nil
}

func checkHealth(ctx context.Context, api HealthProber, timeout time.Duration) Check {
	c := Check{Name: "backend:health"}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	h, err := api.Health(ctx)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	c.Message = "status " + h.Status
	if h.Message != "" {
		c.Message += " (" + h.Message + ")"
	}
	return c
}

func checkPush(ctx context.Context, url string, timeout time.Duration) Check {
	c := Check{Name: "backend:push-channel"}
	if strings.TrimSpace(url) == "" {
		c.Message = "no push URL configured"
		return c
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := push.Dial(ctx, url, push.Options{HandshakeTimeout: timeout})
	if err != nil {
		c.Message = err.Error()
		return c
	}
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	c.Message = fmt.Sprintf("connected to %s", url)
	return c
}

func checkReportDir(dir string) Check {
	c := Check{Name: "directory:reports"}
	if err := report.CheckWritable(dir); err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	c.Message = "writable"
	return c
}
