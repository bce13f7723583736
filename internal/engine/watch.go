package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// WatchFunc receives the outcome of every resolution triggered by Watch.
type WatchFunc func(res *Result, err error)

// Watch resolves once, then again whenever the rules file or the catalog snapshot
// changes, until ctx is cancelled. Events within debounce of each other trigger
// one resolution. Resolutions never overlap; a change arriving during a run
// queues exactly one more.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, fn WatchFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// directories are watched so files replaced by rename keep being seen
	targets := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range []string{e.rulesPath, e.catalogPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()
		for {
			select {
			case <-egctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if abs, _ := filepath.Abs(event.Name); !targets[abs] {
					continue
				}
				e.logger.Debug("input changed", "file", event.Name, "op", event.Op.String())

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				e.logger.Error("watcher error", "error", err)
			}
		}
	})

	eg.Go(func() error {
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-trigger:
				res, err := e.Run(egctx)
				if errors.Is(err, context.Canceled) && egctx.Err() != nil {
					return nil
				}
				fn(res, err)
			}
		}
	})

	return eg.Wait()
}
