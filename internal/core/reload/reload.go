// internal/core/reload/reload.go
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/solatis/overseer/internal/core/logging"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/ruleset"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Rule-set hot reload.
 *
 * The live rule set is the rule-set file overlaid with rules registered
 * through the API and persisted in the database; a persisted rule wins over
 * a file rule with the same id. Every reload re-reads both and swaps the
 * engine's rule set in one step, so evaluations see either the old set or
 * the new one.
 *
 * A reload that fails to parse or validate leaves the engine untouched.
 *
 * The watcher observes the file's directory rather than the file itself:
 * editors that save by writing a temp file and renaming it over the
 * original would otherwise detach the watch after the first save.
 */

// PersistedRules supplies rules stored outside the rule-set file.
type PersistedRules interface {
	List(ctx context.Context) ([]types.Rule, error)
}

// Reloader rebuilds the engine's rule set from the file and the store.
type Reloader struct {
	path    string
	engine  *rules.Engine
	store   PersistedRules
	metrics *metrics.Collector
	logger  *slog.Logger

	mu sync.Mutex
}

// NewReloader creates a reloader. store and m may be nil.
func NewReloader(path string, engine *rules.Engine, store PersistedRules, m *metrics.Collector, logger *slog.Logger) *Reloader {
	return &Reloader{
		path:    path,
		engine:  engine,
		store:   store,
		metrics: m,
		logger:  logging.Component(logger, "reload"),
	}
}

// Load re-reads the rule set and makes it the engine's complete rule set.
func (r *Reloader) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.load(ctx)
	r.metrics.RecordReload(err == nil)
	if err != nil {
		r.logger.Error("rule set reload failed", "path", r.path, "error", err)
		return err
	}

	loaded := len(r.engine.ListRules())
	r.metrics.SetRulesLoaded(loaded)
	r.logger.Info("rule set loaded", "path", r.path, "rules", loaded, "removed", len(removed))
	return nil
}

func (r *Reloader) load(ctx context.Context) ([]types.RuleID, error) {
	rs, err := ruleset.LoadFile(r.path)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		persisted, err := r.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list persisted rules: %w", err)
		}
		rs.Merge(persisted)
	}
	return rs.Replace(r.engine)
}

// Watcher reloads the rule set whenever its file changes.
type Watcher struct {
	reloader *Reloader
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher. Bursts of file events closer together than
// debounce trigger a single reload.
func NewWatcher(r *Reloader, debounce time.Duration) *Watcher {
	return &Watcher{
		reloader: r,
		debounce: debounce,
		logger:   r.logger,
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation and
// an error only if the watch cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.reloader.path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	w.logger.Info("watching rule set", "path", target, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !relevant(ev) {
				continue
			}
			w.logger.Debug("rule set changed", "op", ev.Op.String())
			timer.Reset(w.debounce)
			pending = timer.C

		case <-pending:
			pending = nil
			// Failures are logged and counted by Load; keep watching.
			_ = w.reloader.Load(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
