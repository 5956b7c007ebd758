// Package watch rebuilds the system image whenever the source tree changes.
// It batches rapid edits behind a debounce window and can additionally
// rebuild on a fixed interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/esque-os/esquebuild/internal/config"
	"github.com/esque-os/esquebuild/internal/logfields"
	"github.com/esque-os/esquebuild/internal/metrics"
)

// Rebuild causes for the metrics counter and logs.
const (
	TriggerInitial  = "initial"
	TriggerChange   = "change"
	TriggerInterval = "interval"
)

// Rebuild runs one full pipeline pass. Errors are logged and watching
// continues.
type Rebuild func(ctx context.Context, trigger string) error

// Watcher drives rebuilds from filesystem events.
type Watcher struct {
	cfg      *config.Config
	root     string
	rebuild  Rebuild
	recorder metrics.Recorder
}

// New returns a watcher rooted at the project directory. A nil recorder
// disables metrics.
func New(cfg *config.Config, root string, rebuild Rebuild, recorder metrics.Recorder) *Watcher {
	if root == "" {
		root = "."
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Watcher{cfg: cfg, root: root, rebuild: rebuild, recorder: recorder}
}

// Run builds once, then blocks rebuilding on changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := 0
	for _, p := range w.cfg.Watch.Paths {
		dir := p
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.root, dir)
		}
		st, statErr := os.Stat(dir)
		if statErr != nil || !st.IsDir() {
			slog.Warn("skipping unwatchable path", logfields.Path(dir))
			continue
		}
		addDirsRecursive(watcher, dir)
		watched++
	}
	if watched == 0 {
		return errors.New("no watchable directories configured")
	}

	rebuildReq := make(chan string, 1)
	trigger := debouncedTrigger(w.cfg.Watch.DebounceDuration(), rebuildReq)

	if interval := w.cfg.Watch.IntervalDuration(); interval > 0 {
		scheduler, schedErr := gocron.NewScheduler()
		if schedErr != nil {
			return fmt.Errorf("create scheduler: %w", schedErr)
		}
		_, schedErr = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { requestRebuild(rebuildReq, TriggerInterval) }),
			gocron.WithName("interval-rebuild"),
		)
		if schedErr != nil {
			return fmt.Errorf("schedule interval rebuild: %w", schedErr)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
		slog.Info("interval rebuilds enabled", slog.Duration("interval", interval))
	}

	slog.Info("watching for source changes", slog.Int("directories", watched))
	w.runBuild(ctx, TriggerInitial)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watch mode")
			return nil
		case trig := <-rebuildReq:
			w.runBuild(ctx, trig)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, ev, trigger)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(watchErr))
		}
	}
}

// runBuild executes one pipeline pass. Rebuilds are serialized by the event
// loop, so a change arriving mid-build lands in the queue for the next pass.
func (w *Watcher) runBuild(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("rebuilding", slog.String("trigger", trigger))
	w.recorder.IncRebuild(trigger)
	if err := w.rebuild(ctx, trigger); err != nil {
		slog.Warn("rebuild failed", slog.String("trigger", trigger), logfields.Error(err))
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnore(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			addDirsRecursive(watcher, ev.Name)
		}
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	slog.Debug("source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

// debouncedTrigger collapses bursts of events into a single rebuild request
// once the tree has been quiet for delay.
func debouncedTrigger(delay time.Duration, rebuildReq chan<- string) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			requestRebuild(rebuildReq, TriggerChange)
		})
	}
}

func requestRebuild(rebuildReq chan<- string, trigger string) {
	select {
	case rebuildReq <- trigger:
	default:
	}
}

// addDirsRecursive watches root and every directory below it, skipping
// hidden trees and cargo output directories.
func addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "target" || name == "build") {
			return filepath.SkipDir
		}
		if addErr := w.Add(path); addErr != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(addErr))
		}
		return nil
	})
}

// shouldIgnore reports whether a filesystem event path is noise: hidden
// files or editor temp/swap files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return false
}
