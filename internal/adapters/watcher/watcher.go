// Package watcher reports tile changes below local tile trees.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/s2tile/internal/domain"
)

// DefaultDebounce is the quiet period applied when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Operation is what happened to a tile.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a debounced tile change. Path is always the tile's metadata.xml.
type Event struct {
	Path      string
	Operation Operation
}

// Handler is called once per debounced event. Events of one flush are
// delivered sequentially.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Roots    []string      // Tile trees to watch recursively
	Debounce time.Duration // Quiet period before an event is delivered
}

type change struct {
	op   Operation
	last time.Time
}

// Watcher watches tile trees for metadata.xml and tileInfo.json changes.
// fsnotify is not recursive, so every directory below a root is watched
// and directories created later are added as they appear.
type Watcher struct {
	notify   *fsnotify.Watcher
	handler  Handler
	logger   *slog.Logger
	roots    []string
	debounce time.Duration

	mu      sync.Mutex
	changes map[string]*change
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		notify:   notify,
		handler:  handler,
		logger:   logger,
		roots:    cfg.Roots,
		debounce: cfg.Debounce,
		changes:  make(map[string]*change),
	}, nil
}

// Start watches every configured root and delivers events until ctx is done.
// Unreadable roots are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.logger.Warn("invalid watch root", "path", root, "error", err)
			continue
		}
		n, err := w.addTree(abs, false)
		if err != nil {
			w.logger.Warn("failed to watch tile tree", "path", abs, "error", err)
			continue
		}
		w.logger.Info("watching tile tree", "path", abs, "directories", n)
	}

	go w.receive(ctx)
	go w.flushLoop(ctx)
	return nil
}

// Stop releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.notify.Close()
}

// addTree watches root and every directory below it. With announce set,
// metadata files already present are queued as created tiles; they may
// have been written before the watch was in place.
func (w *Watcher) addTree(root string, announce bool) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := w.notify.Add(path); err != nil {
				return err
			}
			count++
			return nil
		}
		if announce && d.Name() == domain.MetadataFilename {
			w.record(path, OpCreate)
		}
		return nil
	})
	return count, err
}

func (w *Watcher) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.notify.Events:
			if !ok {
				return
			}
			w.observe(ev)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// observe turns one fsnotify event into a pending tile change.
func (w *Watcher) observe(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(ev.Name, true); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	metadataPath, ok := tileEvent(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())

	op := operationOf(ev.Op)
	if metadataPath != ev.Name {
		// A sidecar change rebuilds the tile; only metadata.xml decides its existence.
		op = OpModify
	}
	w.record(metadataPath, op)
}

func (w *Watcher) record(path string, op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.changes[path]; ok {
		c.op = mergeOp(c.op, op)
		c.last = time.Now()
		return
	}
	w.changes[path] = &change{op: op, last: time.Now()}
}

// mergeOp folds a new operation into a pending one.
// A delete always wins; a create after a delete is a create.
func mergeOp(pending, next Operation) Operation {
	switch {
	case next == OpDelete:
		return OpDelete
	case pending == OpDelete && next == OpCreate:
		return OpCreate
	default:
		return pending
	}
}

func (w *Watcher) flushLoop(ctx context.Context) {
	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.deliver(ctx, w.due(time.Now()))
		}
	}
}

// due removes and returns the changes quiet for at least the debounce period,
// ordered by path.
func (w *Watcher) due(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, c := range w.changes {
		if now.Sub(c.last) < w.debounce {
			continue
		}
		delete(w.changes, path)
		events = append(events, Event{Path: path, Operation: c.op})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func (w *Watcher) deliver(ctx context.Context, events []Event) {
	for _, e := range events {
		w.logger.Info("processing tile event", "path", e.Path, "operation", e.Operation.String())
		if err := w.handler(ctx, e); err != nil {
			w.logger.Error("tile event failed", "path", e.Path, "operation", e.Operation.String(), "error", err)
		}
	}
}

func operationOf(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

// tileEvent maps a changed file to the metadata.xml of its tile.
// tileInfo.json maps to its sibling metadata.xml; other files are ignored.
func tileEvent(path string) (string, bool) {
	switch filepath.Base(path) {
	case domain.MetadataFilename:
		return path, true
	case domain.SidecarFilename:
		return filepath.Join(filepath.Dir(path), domain.MetadataFilename), true
	default:
		return "", false
	}
}
