// Package watcher wraps fsnotify with a debouncer that coalesces bursts of
// filesystem events into change batches.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/logfields"
)

// DefaultWindow is the quiescence interval after which a cluster of events
// becomes one batch.
const DefaultWindow = 250 * time.Millisecond

// batchBuffer bounds the outgoing channel; on overflow the producer
// coalesces with the pending batch instead of blocking.
const batchBuffer = 16

// Kind classifies one change within a batch.
type Kind int

const (
	Delete Kind = iota
	Create
	Modify
)

func (k Kind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Create:
		return "create"
	default:
		return "modify"
	}
}

// Change is one coalesced filesystem mutation.
type Change struct {
	Path string
	Kind Kind
}

// Batch is a set of changes coalesced within one quiescence window. Each
// path appears at most once; changes are ordered delete, create, modify,
// lexicographic by path within each kind.
type Batch struct {
	ID      string
	Changes []Change
}

// Watcher owns the fsnotify instance and the debounce state. Run drives it.
type Watcher struct {
	fs     *fsnotify.Watcher
	roots  []string
	window time.Duration
	out    chan Batch

	pending  map[string]Kind
	overflow map[string]Kind

	errTimes []time.Time
}

// New creates a watcher over the given root directories. Roots that do not
// exist yet are skipped; directories created later under a watched root are
// picked up automatically.
func New(roots []string, window time.Duration) (*Watcher, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindWatcher, lerrors.SeverityFatal, "create filesystem watcher")
	}
	w := &Watcher{
		fs:       fsw,
		roots:    roots,
		window:   window,
		out:      make(chan Batch, batchBuffer),
		pending:  map[string]Kind{},
		overflow: map[string]Kind{},
	}
	for _, root := range roots {
		st, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !st.IsDir() {
			// Single files (the config file) are watched directly.
			if err := fsw.Add(root); err != nil {
				slog.Warn("Watch add failed", logfields.Path(root), logfields.Error(err))
			}
			continue
		}
		if err := addDirsRecursive(fsw, root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Batches is the stream of debounced change batches.
func (w *Watcher) Batches() <-chan Batch { return w.out }

// Run processes raw events until the context is canceled. It survives
// transient watcher errors (logged); it returns an error only when the OS
// layer fails repeatedly (three times within a minute) or every watched
// root has disappeared.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()
	defer close(w.out)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	timerActive := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				if timerActive && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.window)
				timerActive = true
			}

		case <-timer.C:
			timerActive = false
			if retry := w.flush(); retry {
				timer.Reset(w.window)
				timerActive = true
			}
			if err := w.checkRoots(); err != nil {
				return err
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
			if w.recordError() {
				return lerrors.Wrap(err, lerrors.KindWatcher, lerrors.SeverityFatal,
					"watcher failed repeatedly")
			}
		}
	}
}

// handleEvent folds one raw event into the pending batch. Returns false for
// ignored events so they do not reset the quiescence timer.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if shouldIgnore(ev.Name) {
		return false
	}

	// New directories must be registered before their contents settle.
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w.fs, ev.Name)
			return false
		}
	}

	var kind Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Create
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename is a delete of the old path; the new path arrives as
		// its own create event.
		kind = Delete
	case ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		kind = Modify
	default:
		return false
	}

	slog.Debug("File change detected", logfields.Path(ev.Name), logfields.Kind(kind.String()))
	w.coalesce(w.pending, ev.Name, kind)
	return true
}

// coalesce folds a new event kind into the per-path collapsed kind:
// create+delete annihilate, modify collapses into whatever preceded it,
// delete+create reads as modify (the file was replaced).
func (w *Watcher) coalesce(dst map[string]Kind, path string, kind Kind) {
	prev, seen := dst[path]
	if !seen {
		dst[path] = kind
		return
	}
	switch {
	case prev == Create && kind == Delete:
		delete(dst, path)
	case prev == Delete && kind == Create:
		dst[path] = Modify
	case kind == Modify:
		dst[path] = prev
	default:
		dst[path] = kind
	}
}

// flush emits the pending batch. When the channel is full the batch is
// parked and merged with the next window rather than blocking the
// producer; the returned retry flag keeps the timer armed until the parked
// changes drain.
func (w *Watcher) flush() (retry bool) {
	for path, kind := range w.overflow {
		w.coalesce(w.pending, path, kind)
		delete(w.overflow, path)
	}
	if len(w.pending) == 0 {
		return false
	}

	batch := Batch{ID: uuid.NewString(), Changes: sortChanges(w.pending)}
	select {
	case w.out <- batch:
		w.pending = map[string]Kind{}
		slog.Debug("Change batch emitted", logfields.BatchID(batch.ID), slog.Int("changes", len(batch.Changes)))
		return false
	default:
		w.overflow, w.pending = w.pending, map[string]Kind{}
		slog.Debug("Batch channel full; coalescing with next window")
		return true
	}
}

// sortChanges orders a batch deterministically: delete before create before
// modify, lexicographic by path within each kind.
func sortChanges(pending map[string]Kind) []Change {
	changes := make([]Change, 0, len(pending))
	for path, kind := range pending {
		changes = append(changes, Change{Path: path, Kind: kind})
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Kind != changes[j].Kind {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].Path < changes[j].Path
	})
	return changes
}

// checkRoots is the fatal-root check: watching a site whose top-level
// directories vanished cannot recover.
func (w *Watcher) checkRoots() error {
	alive := 0
	for _, root := range w.roots {
		if _, err := os.Stat(root); err == nil {
			alive++
		}
	}
	if alive == 0 && len(w.roots) > 0 {
		return lerrors.New(lerrors.KindWatcher, lerrors.SeverityFatal, "watched directories disappeared")
	}
	return nil
}

// recordError reports whether three errors occurred within the last minute.
func (w *Watcher) recordError() bool {
	now := time.Now()
	cutoff := now.Add(-time.Minute)
	kept := w.errTimes[:0]
	for _, t := range w.errTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.errTimes = append(kept, now)
	return len(w.errTimes) >= 3
}

func addDirsRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnore filters editor temp/swap files and other noise that must not
// trigger rebuilds.
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
	return base == "Thumbs.db"
}
