package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	xlog "sltk-monitor/internal/log"
	"sltk-monitor/internal/model"
	"sltk-monitor/internal/push"
	"sltk-monitor/internal/sltkapi"
)

const DefaultLinkageDelay = 2 * time.Second

var (
	ErrAlreadyRunning = errors.New("controller already running")
	ErrNoPushChannel  = errors.New("push channel not configured")
)

// API is the subset of the backend client the controller drives.
type API interface {
	UploadExcel(ctx context.Context, path string, opts sltkapi.UploadOptions) (sltkapi.UploadResult, error)
	GroupErrors(ctx context.Context, groupID string) (sltkapi.GroupErrors, error)
	Health(ctx context.Context) (model.HealthReport, error)
}

// Watcher subscribes to progress notifications for a group.
type Watcher interface {
	Monitor(ctx context.Context, groupID string) error
	StopMonitor(ctx context.Context, groupID string) error
}

type Options struct {
	LinkageDelay time.Duration
	// OnState runs on the controller goroutine after every applied event.
	// It must not block or dispatch synchronously.
	OnState func(prev, next State)
}

// Controller owns the session state. Events are applied one at a time by
// Run; I/O happens on separate goroutines that dispatch their results back.
type Controller struct {
	api     API
	watcher Watcher
	opts    Options
	log     zerolog.Logger

	events  chan Event
	updates chan State
	done    chan struct{}
	running atomic.Bool

	mu    sync.Mutex
	state State

	// owned by the Run goroutine
	linkage *time.Timer
	io      sync.WaitGroup
}

func New(api API, watcher Watcher, opts Options) *Controller {
	if opts.LinkageDelay <= 0 {
		opts.LinkageDelay = DefaultLinkageDelay
	}
	return &Controller{
		api:     api,
		watcher: watcher,
		opts:    opts,
		log:     xlog.WithComponent("controller"),
		events:  make(chan Event, 64),
		updates: make(chan State, 1),
		done:    make(chan struct{}),
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates yields state snapshots, latest wins. The channel is closed when
// Run returns.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Dispatch queues ev for Run. It reports false once the controller stopped.
func (c *Controller) Dispatch(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) SelectFile(path string) {
	f, err := model.SelectFile(path)
	if err != nil {
		c.Dispatch(FileSelected{Err: err})
		return
	}
	c.Dispatch(FileSelected{File: &f})
}

func (c *Controller) ClearFile()             { c.Dispatch(ClearFile{}) }
func (c *Controller) Upload(loadID string)   { c.Dispatch(StartUpload{LoadID: loadID}) }
func (c *Controller) Monitor(groupID string) { c.Dispatch(Monitor{GroupID: groupID}) }
func (c *Controller) StopMonitor()           { c.Dispatch(StopMonitor{}) }
func (c *Controller) FetchErrors()           { c.Dispatch(FetchErrors{}) }
func (c *Controller) DismissErrors()         { c.Dispatch(DismissErrors{}) }
func (c *Controller) CheckHealth()           { c.Dispatch(CheckHealth{}) }

func (c *Controller) HandlePush(ev push.Event) {
	if e := FromPush(ev); e != nil {
		c.Dispatch(e)
	}
}

// FromPush maps a push channel notification to a controller event.
func FromPush(ev push.Event) Event {
	switch ev.Kind {
	case push.EventConnected:
		return ChannelConnected{Message: ev.Message}
	case push.EventStatusUpdate:
		return StatusUpdated{Status: ev.Status}
	case push.EventProcessingComplete:
		return ProcessingCompleted{Status: ev.Status}
	case push.EventError:
		return ChannelFailed{GroupID: ev.GroupID, Message: ev.Message}
	default:
		return nil
	}
}

// Run applies events until ctx is cancelled. Pending I/O is cancelled and
// awaited before it returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.stopLinkage()
		close(c.done)
		c.io.Wait()
		close(c.updates)
	}()

	c.publish(c.Snapshot())
	for {
		select {
		case <-runCtx.Done():
			return nil
		case ev := <-c.events:
			c.apply(runCtx, ev)
		}
	}
}

func (c *Controller) apply(ctx context.Context, ev Event) {
	prev := c.Snapshot()
	next, effects, err := Step(prev, ev)
	if err != nil {
		lvl := zerolog.DebugLevel
		if !errors.Is(err, ErrIgnored) {
			lvl = zerolog.WarnLevel
		}
		c.log.WithLevel(lvl).Err(err).Str(xlog.FieldEvent, ev.eventName()).Msg("event dropped")
		return
	}

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	if prev.Phase() != next.Phase() {
		c.log.Debug().
			Str(xlog.FieldEvent, ev.eventName()).
			Str(xlog.FieldOldState, string(prev.Phase())).
			Str(xlog.FieldNewState, string(next.Phase())).
			Uint64(xlog.FieldCycle, next.Cycle).
			Msg("state transition")
	}
	if c.opts.OnState != nil {
		c.opts.OnState(prev, next)
	}
	c.publish(next)

	for _, eff := range effects {
		c.perform(ctx, eff)
	}
}

func (c *Controller) publish(s State) {
	select {
	case c.updates <- s:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- s:
	default:
	}
}

func (c *Controller) perform(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case CancelLinkage:
		c.stopLinkage()

	case ScheduleLinkage:
		c.stopLinkage()
		cycle := e.Cycle
		c.linkage = time.AfterFunc(c.opts.LinkageDelay, func() {
			c.Dispatch(LinkageElapsed{Cycle: cycle})
		})

	case UploadFile:
		c.goIO(ctx, func(ctx context.Context) {
			log := c.log.With().Str(xlog.FieldFile, e.File.Name).Uint64(xlog.FieldCycle, e.Cycle).Logger()
			log.Info().Msg("uploading workbook")
			res, err := c.api.UploadExcel(ctx, e.File.Path, sltkapi.UploadOptions{LoadID: e.LoadID})
			if err != nil {
				log.Warn().Err(err).Msg("upload failed")
			}
			c.Dispatch(UploadFinished{Cycle: e.Cycle, Result: res, Err: err})
		})

	case SendMonitor:
		c.goIO(ctx, func(ctx context.Context) {
			err := ErrNoPushChannel
			if c.watcher != nil {
				err = c.watcher.Monitor(ctx, e.GroupID)
			}
			if err != nil {
				c.log.Warn().Err(err).Str(xlog.FieldGroupID, e.GroupID).Msg("monitor request failed")
			}
			c.Dispatch(MonitorSent{GroupID: e.GroupID, Err: err})
		})

	case SendStopMonitor:
		if c.watcher == nil {
			return
		}
		c.goIO(ctx, func(ctx context.Context) {
			if err := c.watcher.StopMonitor(ctx, e.GroupID); err != nil {
				c.log.Warn().Err(err).Str(xlog.FieldGroupID, e.GroupID).Msg("stop-monitor request failed")
			}
		})

	case LoadGroupErrors:
		c.goIO(ctx, func(ctx context.Context) {
			res, err := c.api.GroupErrors(ctx, e.GroupID)
			if err != nil {
				c.log.Warn().Err(err).Str(xlog.FieldGroupID, e.GroupID).Msg("fetching error details failed")
			}
			c.Dispatch(ErrorsFetched{GroupID: e.GroupID, Records: res.Errors, Err: err})
		})

	case ProbeHealth:
		c.goIO(ctx, func(ctx context.Context) {
			report, err := c.api.Health(ctx)
			if err != nil {
				c.log.Debug().Err(err).Msg("health probe failed")
			}
			c.Dispatch(HealthChecked{Report: report, Err: err})
		})
	}
}

func (c *Controller) goIO(ctx context.Context, fn func(context.Context)) {
	c.io.Add(1)
	go func() {
		defer c.io.Done()
		fn(ctx)
	}()
}

func (c *Controller) stopLinkage() {
	if c.linkage != nil {
		c.linkage.Stop()
		c.linkage = nil
	}
}
