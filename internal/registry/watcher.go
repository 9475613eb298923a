package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/strategy"
)

// reloadDebounce is how long a changed file must stay quiet before it is
// reloaded. A new change within the window cancels and reschedules the
// pending reload, so editor save storms produce one reload.
const reloadDebounce = time.Second

// watcher reloads strategy definition files on change. Reloads go through
// Register, which swaps definitions copy-on-write, so an in-flight execution
// keeps the definition it started with.
type watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer // path -> debounce timer

	done chan struct{}
	once sync.Once
}

// LoadDir loads every strategy definition under dir into the registry.
// Invalid files are skipped and returned as errors; valid files register.
// Each registered file's path is remembered so a watcher can unregister the
// strategy if the file is later removed.
func (r *Registry) LoadDir(dir string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []error{fmt.Errorf("failed to read strategies dir %s: %w", dir, err)}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		def, err := strategy.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Register(def); err != nil {
			errs = append(errs, err)
			continue
		}
		r.rememberPath(path, def.ID)
		r.events.Emit(events.Event{Type: events.StrategyLoaded, StrategyID: def.ID})
	}
	return errs
}

// WatchDir starts watching dir for definition changes, reloading changed
// files after the debounce window. Call Close to stop.
func (r *Registry) WatchDir(dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return err
	}

	w := &watcher{
		registry: r,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	r.watcherMu.Lock()
	if r.watcher != nil {
		r.watcher.stop()
	}
	r.watcher = w
	r.watcherMu.Unlock()

	go w.loop()
	return nil
}

func (w *watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.registry.events.Emit(events.Event{
				Type:   events.RegistryError,
				Fields: map[string]any{"error": err.Error()},
			})
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.forget(event.Name)
	}
}

// schedule arms (or re-arms) the debounce timer for a changed file.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(reloadDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.reload(path)
	})
}

// reload parses and registers one changed file.
func (w *watcher) reload(path string) {
	def, err := strategy.LoadFile(path)
	if err != nil {
		w.registry.events.Emit(events.Event{
			Type:   events.RegistryError,
			Fields: map[string]any{"path": path, "error": err.Error()},
		})
		return
	}
	if err := w.registry.Register(def); err != nil {
		w.registry.events.Emit(events.Event{
			Type:       events.RegistryError,
			StrategyID: def.ID,
			Fields:     map[string]any{"path": path, "error": err.Error()},
		})
		return
	}

	w.registry.rememberPath(path, def.ID)

	w.registry.events.Emit(events.Event{
		Type:       events.StrategyLoaded,
		StrategyID: def.ID,
		Fields:     map[string]any{"path": filepath.Base(path), "reload": true},
	})
}

// forget drops a pending reload and unregisters the strategy a removed file
// had loaded, whether it arrived via LoadDir at startup or a later reload.
func (w *watcher) forget(path string) {
	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if id, ok := w.registry.forgetPath(path); ok {
		w.registry.Unregister(id)
	}
}

func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.done)
		w.fsw.Close()

		w.mu.Lock()
		for _, timer := range w.pending {
			timer.Stop()
		}
		w.pending = map[string]*time.Timer{}
		w.mu.Unlock()
	})
}
