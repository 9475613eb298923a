// Package registry holds the known strategies, resolves the best match for a
// job's domain, and dispatches execution, optionally through an AI automation
// path before the deterministic strategy implementation.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/apply-agent/internal/engine"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/store"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// Config configures a Registry. Zero values get sensible defaults: an
// in-memory store, a fresh event emitter, and a default supervisor.
type Config struct {
	// FallbackStrategyID is returned with confidence 0.5 when no domain
	// matches. Empty disables the fallback tier.
	FallbackStrategyID string
	// DisableTracking turns off performance-metric recording.
	DisableTracking bool
	// AIFallbackToStrategy controls whether an AI-automation failure
	// falls through to the deterministic strategy (default) or aborts
	// the attempt. nil means true.
	AIFallbackToStrategy *bool
	// DefaultImplementation builds the implementation used for a
	// definition with no explicitly registered one. nil (or a nil
	// return) falls back to the generic strategy.
	DefaultImplementation func(def *strategy.Definition) engine.Implementation

	Store      store.Store
	AI         AIAutomator
	Events     *events.Emitter
	Supervisor *engine.Supervisor
}

// Registry owns the set of strategy definitions and implementations, the
// per-strategy metrics caches, and the A/B aggregates. Safe for concurrent
// use; reloads swap definitions copy-on-write so in-flight executions keep
// the definition they started with.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*strategy.Definition
	impls   map[string]engine.Implementation
	metrics map[string]*strategy.MetricsWindow
	paths   map[string]string // definition file path -> strategy id

	defaultImpl func(*strategy.Definition) engine.Implementation

	fallbackID   string
	tracking     bool
	aiFallThru   bool
	store        store.Store
	ai           AIAutomator
	events       *events.Emitter
	supervisor   *engine.Supervisor
	watcher      *watcher
	watcherMu    sync.Mutex
}

// New creates a Registry from the config, filling defaults.
func New(cfg Config) *Registry {
	emitter := cfg.Events
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	st := cfg.Store
	if st == nil {
		st = store.NewMemory()
	}
	supervisor := cfg.Supervisor
	if supervisor == nil {
		supervisor = &engine.Supervisor{Events: emitter}
	}
	aiFallThru := true
	if cfg.AIFallbackToStrategy != nil {
		aiFallThru = *cfg.AIFallbackToStrategy
	}

	r := &Registry{
		defs:        make(map[string]*strategy.Definition),
		impls:       make(map[string]engine.Implementation),
		metrics:     make(map[string]*strategy.MetricsWindow),
		paths:       make(map[string]string),
		defaultImpl: cfg.DefaultImplementation,
		fallbackID:  cfg.FallbackStrategyID,
		tracking:    !cfg.DisableTracking,
		aiFallThru:  aiFallThru,
		store:       st,
		ai:          cfg.AI,
		events:      emitter,
		supervisor:  supervisor,
	}
	r.events.Emit(events.Event{Type: events.RegistryInitialized})
	return r
}

// Subscribe registers an event handler for all registry and execution events.
func (r *Registry) Subscribe(h events.Handler) {
	r.events.Subscribe(h)
}

// Events returns the registry's event emitter so collaborators can share it.
func (r *Registry) Events() *events.Emitter {
	return r.events
}

// Register validates and stores a strategy definition. A definition with the
// same id replaces the previous one but keeps its metrics window, so history
// survives reloads.
func (r *Registry) Register(def *strategy.Definition) error {
	if def == nil {
		return &strategy.ValidationError{Message: "definition is nil"}
	}

	clone := def.Clone()
	clone.Normalize()
	if err := clone.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if existing, ok := r.defs[clone.ID]; ok && existing.Metrics != nil {
		clone.Metrics = existing.Metrics
	}
	r.defs[clone.ID] = clone
	if _, ok := r.metrics[clone.ID]; !ok {
		r.metrics[clone.ID] = strategy.NewMetricsWindow()
	}
	r.mu.Unlock()

	r.cacheDefinition(clone)
	r.events.Emit(events.Event{Type: events.StrategyRegistered, StrategyID: clone.ID})
	return nil
}

// RegisterImplementation binds a site-specific implementation to a strategy id.
func (r *Registry) RegisterImplementation(id string, impl engine.Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[id] = impl
}

// Unregister removes a strategy. Returns true if it existed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.defs[id]
	delete(r.defs, id)
	delete(r.impls, id)
	return ok
}

// Definitions returns all registered definitions sorted by id.
func (r *Registry) Definitions() []*strategy.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*strategy.Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Metrics returns the registry-level metrics window for a strategy id.
func (r *Registry) Metrics(id string) (*strategy.MetricsWindow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	window, ok := r.metrics[id]
	return window, ok
}

// FindStrategy resolves the best strategy for a job. Resolution order:
// exact/substring domain match (0.95), fuzzy token match above the threshold
// (0.8, remainder as alternates), the configured fallback (0.5), otherwise
// no match with every known strategy as an alternate. Never returns an error.
func (r *Registry) FindStrategy(job *types.Job) Match {
	host := ""
	if job != nil {
		host = jobHost(job.URL)
	}
	defs := r.Definitions()

	match := r.resolve(host, defs)
	if match.Matched {
		jobID := ""
		if job != nil {
			jobID = job.ID
		}
		r.events.Emit(events.Event{
			Type:       events.StrategyMatched,
			StrategyID: match.Strategy.ID,
			JobID:      jobID,
			Fields:     map[string]any{"confidence": match.Confidence},
		})
	}
	return match
}

func (r *Registry) resolve(host string, defs []*strategy.Definition) Match {
	// Tier 1: exact or substring domain match.
	if host != "" {
		for _, def := range defs {
			if exactDomainMatch(host, def) {
				return Match{Matched: true, Strategy: def, Confidence: ConfidenceExact}
			}
		}

		// Tier 2: fuzzy token-containment match.
		var candidates []scoredDef
		for _, def := range defs {
			if score := domainScore(host, def); score > fuzzyThreshold {
				candidates = append(candidates, scoredDef{def: def, score: score})
			}
		}
		if len(candidates) > 0 {
			sortScored(candidates)
			alternates := make([]*strategy.Definition, 0, len(candidates)-1)
			for _, candidate := range candidates[1:] {
				alternates = append(alternates, candidate.def)
			}
			return Match{
				Matched:    true,
				Strategy:   candidates[0].def,
				Confidence: ConfidenceFuzzy,
				Alternates: alternates,
			}
		}
	}

	// Tier 3: configured fallback strategy.
	if r.fallbackID != "" {
		r.mu.RLock()
		fallback, ok := r.defs[r.fallbackID]
		r.mu.RUnlock()
		if ok {
			return Match{Matched: true, Strategy: fallback, Confidence: ConfidenceFallback}
		}
	}

	// No match: expose everything so the caller can prompt for manual handling.
	return Match{Alternates: defs}
}

// ExecuteStrategy resolves a strategy for the context's job and executes it.
// When an AI automator is attached and the profile does not disable it, the
// AI path runs first; on AI failure execution falls through to the
// deterministic implementation unless configured to abort. The only error
// returned is NoStrategyFoundError; every other failure is a failed result.
func (r *Registry) ExecuteStrategy(ctx context.Context, ec *types.ExecutionContext) (*types.ExecutionResult, error) {
	var job *types.Job
	if ec != nil {
		job = ec.Job
	}

	match := r.FindStrategy(job)
	if !match.Matched {
		host := ""
		if job != nil {
			host = jobHost(job.URL)
		}
		return nil, &NoStrategyFoundError{Domain: host}
	}
	def := match.Strategy

	jobID := ""
	if job != nil {
		jobID = job.ID
	}

	var result *types.ExecutionResult
	usedAI := false
	if r.ai != nil && ec != nil && ec.Profile != nil && ec.Profile.Preferences.AIAutomationEnabled() {
		usedAI = true
		r.events.Emit(events.Event{Type: events.AIAutomationStart, StrategyID: def.ID, JobID: jobID})

		aiResult, err := r.ai.Execute(ctx, ec, def)
		switch {
		case err == nil && aiResult != nil && aiResult.Success:
			r.events.Emit(events.Event{Type: events.AIAutomationDone, StrategyID: def.ID, JobID: jobID})
			result = aiResult
		default:
			r.events.Emit(events.Event{
				Type:       events.AIAutomationError,
				StrategyID: def.ID,
				JobID:      jobID,
				Fields:     map[string]any{"error": fmt.Sprint(err)},
			})
			if !r.aiFallThru {
				result = aiResult
				if result == nil {
					result = &types.ExecutionResult{Error: fmt.Sprintf("ai automation failed: %v", err)}
				}
			} else {
				usedAI = false
			}
		}
	}

	if result == nil {
		impl := r.implementationFor(def)
		result = r.supervisor.Execute(ctx, impl, ec)
	} else if def.Metrics != nil {
		// The supervisor stamps the definition's own window; when the AI
		// result short-circuits it, the registry has to do the same.
		def.Metrics.Append(types.PerformanceMetric{
			Timestamp: time.Now(),
			Success:   result.Success,
			Duration:  result.ExecutionTime,
			ErrorKind: result.Error,
			Captcha:   result.CaptchaEncountered,
		})
	}

	if r.tracking {
		r.recordMetric(def.ID, result)
	}
	if def.ABTesting {
		r.recordABMetric(ctx, def.ID, usedAI, result.Success)
	}
	return result, nil
}

// implementationFor returns the registered implementation for a definition,
// else one built by the configured default factory, else a minimal generic
// implementation bound to it.
func (r *Registry) implementationFor(def *strategy.Definition) engine.Implementation {
	r.mu.RLock()
	impl, ok := r.impls[def.ID]
	r.mu.RUnlock()
	if ok {
		return impl
	}
	if r.defaultImpl != nil {
		if impl := r.defaultImpl(def); impl != nil {
			return impl
		}
	}
	generic := engine.NewGenericStrategy(def)
	generic.Events = r.events
	return generic
}

// rememberPath records which strategy id a definition file produced, so a
// later file removal can unregister it.
func (r *Registry) rememberPath(path, id string) {
	r.mu.Lock()
	r.paths[path] = id
	r.mu.Unlock()
}

// forgetPath drops the path mapping and reports the id it held.
func (r *Registry) forgetPath(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.paths[path]
	delete(r.paths, path)
	return id, ok
}

// recordMetric appends to the registry-level metrics cache.
func (r *Registry) recordMetric(id string, result *types.ExecutionResult) {
	r.mu.RLock()
	window, ok := r.metrics[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	window.Append(types.PerformanceMetric{
		Timestamp: time.Now(),
		Success:   result.Success,
		Duration:  result.ExecutionTime,
		ErrorKind: result.Error,
		Captcha:   result.CaptchaEncountered,
	})
}

// cacheDefinition persists the definition to the store, best-effort.
func (r *Registry) cacheDefinition(def *strategy.Definition) {
	data, err := json.Marshal(def)
	if err != nil {
		return
	}
	if err := r.store.Set(context.Background(), "strategy:"+def.ID, data); err != nil {
		r.events.Emit(events.Event{
			Type:       events.RegistryError,
			StrategyID: def.ID,
			Fields:     map[string]any{"error": err.Error()},
		})
	}
}

// Close stops the directory watcher if one is running.
func (r *Registry) Close() {
	r.watcherMu.Lock()
	defer r.watcherMu.Unlock()
	if r.watcher != nil {
		r.watcher.stop()
		r.watcher = nil
	}
}
