// Package dropdir watches a folder for spreadsheets saved or moved into it.
package dropdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	xlog "sltk-monitor/internal/log"
	"sltk-monitor/internal/model"
)

const DefaultSettle = 500 * time.Millisecond

type Options struct {
	// Settle is how long a file must go without writes before it is reported.
	Settle time.Duration
}

type stamp struct {
	size int64
	mod  time.Time
}

// Watch calls found with the path of every spreadsheet that is created or
// rewritten in dir until ctx is done. found runs on the calling goroutine.
// Files already present when Watch starts are not reported.
func Watch(ctx context.Context, dir string, opts Options, found func(path string)) error {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	log := xlog.WithComponent("dropdir").With().Str(xlog.FieldDir, dir).Logger()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("drop folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("drop folder %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	log.Info().Msg("watching drop folder")

	ready := make(chan string)
	pending := map[string]*time.Timer{}
	seen := map[string]stamp{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("drop folder watcher closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !candidate(ev.Name) {
				continue
			}
			path := ev.Name
			if t, ok := pending[path]; ok {
				t.Reset(opts.Settle)
				continue
			}
			pending[path] = time.AfterFunc(opts.Settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			st, ok := settled(path)
			if !ok {
				continue
			}
			if prev, dup := seen[path]; dup && prev.same(st) {
				continue
			}
			seen[path] = st
			log.Debug().Str(xlog.FieldFile, path).Msg("spreadsheet dropped")
			found(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("drop folder watcher closed")
			}
			log.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

// candidate skips hidden files and Office lock files such as ~$book.xlsx.
func candidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return model.IsSpreadsheetName(name)
}

func (s stamp) same(o stamp) bool {
	return s.size == o.size && s.mod.Equal(o.mod)
}

func settled(path string) (stamp, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return stamp{}, false
	}
	return stamp{size: info.Size(), mod: info.ModTime()}, true
}
