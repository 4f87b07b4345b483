package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sltk-monitor/internal/config"
	"sltk-monitor/internal/controller"
	"sltk-monitor/internal/dropdir"
	xlog "sltk-monitor/internal/log"
	"sltk-monitor/internal/push"
	"sltk-monitor/internal/sltkapi"
)

const pushPingInterval = 30 * time.Second

var errControllerStopped = errors.New("controller stopped")

type commonFlags struct {
	config   *string
	apiURL   *string
	pushPath *string
	logLevel *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:   fs.String("config", "", "YAML config file (default $SLTK_CONFIG or ./"+config.DefaultConfigFile+" when present)"),
		apiURL:   fs.String("api-url", "", "backend base URL (default $SLTK_API_URL or "+config.DefaultAPIURL+")"),
		pushPath: fs.String("push-path", "", "push channel path on the backend (default "+config.DefaultPushPath+")"),
		logLevel: fs.String("log-level", "", "log level: debug|info|warn|error"),
	}
}

func (f commonFlags) load() (config.Settings, error) {
	return config.Load(config.Overrides{
		ConfigFile: *f.config,
		APIURL:     *f.apiURL,
		PushPath:   *f.pushPath,
		LogLevel:   *f.logLevel,
	})
}

// configureLogging sends logs to SLTK_LOG_FILE when set. Otherwise batch
// commands log to stderr and the TUI, which owns the terminal, drops them.
func configureLogging(s config.Settings, interactive bool) (func(), error) {
	var out io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case s.LogFile != "":
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", s.LogFile, err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	case interactive:
		out = io.Discard
	}
	xlog.Configure(xlog.Config{Level: s.LogLevel, Output: out})
	return closeFn, nil
}

func newAPIClient(s config.Settings) *sltkapi.Client {
	return sltkapi.New(s.APIURL, s.RequestTimeout)
}

// monitorSession wires one controller to the backend client and a push
// channel session.
type monitorSession struct {
	settings config.Settings
	api      *sltkapi.Client
	push     *push.Session
	ctrl     *controller.Controller
	// dropDir, when set, is watched for new workbooks to select.
	dropDir  string
	log      zerolog.Logger
}

func newMonitorSession(s config.Settings, onState func(prev, next controller.State)) *monitorSession {
	ms := &monitorSession{settings: s, api: newAPIClient(s), log: xlog.WithComponent("cli")}
	ms.push = push.NewSession(s.PushURL(), push.Options{PingInterval: pushPingInterval}, func(ev push.Event) {
		ms.ctrl.HandlePush(ev)
	})
	ms.ctrl = controller.New(ms.api, ms.push, controller.Options{
		LinkageDelay: s.LinkageDelay,
		OnState:      onState,
	})
	return ms
}

// start runs the controller until the returned stop func is called. With
// connect set the push channel is opened right away and the backend health
// probed; a failed connect surfaces as a channel error.
func (ms *monitorSession) start(ctx context.Context, connect bool) (stop func() error) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ms.ctrl.Run(gctx)
	})
	if connect {
		ms.ctrl.CheckHealth()
		g.Go(func() error {
			if err := ms.push.Connect(gctx); err != nil && gctx.Err() == nil {
				ms.log.Warn().Err(err).Str(xlog.FieldURL, ms.push.URL()).Msg("push channel connect failed")
				ms.ctrl.Dispatch(controller.ChannelFailed{Message: err.Error()})
			}
			return nil
		})
	}
	if ms.dropDir != "" {
		g.Go(func() error {
			err := dropdir.Watch(gctx, ms.dropDir, dropdir.Options{}, ms.ctrl.SelectFile)
			if err != nil && gctx.Err() == nil {
				ms.ctrl.Dispatch(controller.FileSelected{Err: err})
			}
			return nil
		})
	}
	return func() error {
		cancel()
		_ = ms.push.Close()
		return g.Wait()
	}
}

// waitForState blocks until done accepts a published state.
func waitForState(ctx context.Context, ctrl *controller.Controller, done func(controller.State) bool) (controller.State, error) {
	if s := ctrl.Snapshot(); done(s) {
		return s, nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctrl.Snapshot(), ctx.Err()
		case s, ok := <-ctrl.Updates():
			if !ok {
				return ctrl.Snapshot(), errControllerStopped
			}
			if done(s) {
				return s, nil
			}
		}
	}
}
