package registry

import (
	"context"
	"encoding/json"

	"github.com/jonathan/apply-agent/internal/events"
)

// ABAggregate accumulates A/B-test counters for one strategy: how often each
// automation path was taken and how often it succeeded.
type ABAggregate struct {
	AIAttempts        int `json:"ai_attempts"`
	AISuccesses       int `json:"ai_successes"`
	StrategyAttempts  int `json:"strategy_attempts"`
	StrategySuccesses int `json:"strategy_successes"`
}

// abKey is the store key for a strategy's A/B aggregate.
func abKey(id string) string {
	return "abtest:" + id
}

// ABAggregateFor reads the persisted A/B aggregate for a strategy id.
func (r *Registry) ABAggregateFor(ctx context.Context, id string) (ABAggregate, error) {
	var agg ABAggregate
	data, ok, err := r.store.Get(ctx, abKey(id))
	if err != nil || !ok {
		return agg, err
	}
	if err := json.Unmarshal(data, &agg); err != nil {
		return ABAggregate{}, err
	}
	return agg, nil
}

// recordABMetric merges one outcome into the persisted aggregate,
// read-modify-write. Failures are reported as registry-error events, never
// propagated into the execution path.
func (r *Registry) recordABMetric(ctx context.Context, id string, usedAI, success bool) {
	agg, err := r.ABAggregateFor(ctx, id)
	if err != nil {
		r.emitStoreError(id, err)
		return
	}

	if usedAI {
		agg.AIAttempts++
		if success {
			agg.AISuccesses++
		}
	} else {
		agg.StrategyAttempts++
		if success {
			agg.StrategySuccesses++
		}
	}

	data, err := json.Marshal(agg)
	if err != nil {
		r.emitStoreError(id, err)
		return
	}
	if err := r.store.Set(ctx, abKey(id), data); err != nil {
		r.emitStoreError(id, err)
	}
}

func (r *Registry) emitStoreError(id string, err error) {
	r.events.Emit(events.Event{
		Type:       events.RegistryError,
		StrategyID: id,
		Fields:     map[string]any{"error": err.Error()},
	})
}
