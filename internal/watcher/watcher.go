// Package watcher monitors locked secret files for out-of-band
// modification. Any write, chmod, rename, or removal touching a
// locked file bypassed the gate, so it is recorded as a tamper
// decision in the audit store and reported on stderr.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quantops/secretgate/internal/audit"
	"github.com/quantops/secretgate/internal/filelock"
)

// debounceDefault coalesces bursts of events on the same file.
const debounceDefault = 200 * time.Millisecond

// TamperOutcome is the audit outcome label for detected tampering.
const TamperOutcome = "tamper"

// Watcher observes the directories containing the configured secret
// files.
type Watcher struct {
	files    []string
	audit    *audit.Store
	debounce time.Duration
}

// New creates a Watcher over the given secret file paths.
func New(files []string, auditStore *audit.Store) *Watcher {
	return &Watcher{
		files:    files,
		audit:    auditStore,
		debounce: debounceDefault,
	}
}

// Run blocks until ctx is cancelled, reporting tamper events as they
// happen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range w.files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fmt.Fprintf(os.Stderr, "watch: cannot watch %s: %v\n", dir, err)
		}
	}

	// One timer per path, reset on each event, so a burst of writes
	// reports once. The drain on return stops unfired timers and waits
	// for in-flight reports, so no callback outlives Run and touches a
	// closed audit store.
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		pending = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for path, t := range pending {
			if t.Stop() {
				wg.Done()
			}
			delete(pending, path)
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(ev.Name)
			if !watched[path] {
				continue
			}
			if !filelock.IsLocked(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Chmod|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			op := ev.Op.String()
			mu.Lock()
			if t, ok := pending[path]; ok && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			pending[path] = time.AfterFunc(w.debounce, func() {
				defer wg.Done()
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				w.report(ctx, path, op)
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

func (w *Watcher) report(ctx context.Context, path, op string) {
	fmt.Fprintf(os.Stderr, "TAMPER: %s on locked file %s\n", op, path)
	if w.audit == nil {
		return
	}
	d := audit.Decision{
		Timestamp: time.Now().UTC(),
		Action:    "watch",
		Outcome:   TamperOutcome,
		Detail:    fmt.Sprintf("%s on %s", op, path),
	}
	if err := w.audit.Record(ctx, d); err != nil {
		fmt.Fprintf(os.Stderr, "watch: cannot record tamper event: %v\n", err)
	}
}
