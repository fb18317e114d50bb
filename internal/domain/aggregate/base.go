package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/chefmarket/internal/infrastructure/store"
)

// Aggregate is anything rebuilt by replaying its event stream: orders,
// group orders, actors.
type Aggregate interface {
	GetID() string
	GetVersion() int
	SetVersion(int)
	ApplyEvent(store.Event) error
}

// LoadAggregate rehydrates an aggregate from the newest snapshot plus the
// events recorded after it. The boolean reports whether any state existed
// at all; a false with nil error means the id is unknown.
func LoadAggregate[T Aggregate](
	ctx context.Context,
	eventStore store.EventStoreInterface,
	id string,
	newAggregate func() T,
) (T, bool, error) {
	var zero T
	agg := newAggregate()

	snapshot, err := eventStore.GetSnapshot(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get snapshot for %s: %w", id, err)
	}

	var events []store.Event
	if snapshot != nil {
		if err := json.Unmarshal(snapshot.State, agg); err != nil {
			return zero, false, fmt.Errorf("failed to unmarshal snapshot for %s: %w", id, err)
		}
		agg.SetVersion(snapshot.Version)
		events = eventStore.GetEventsFromVersion(ctx, id, snapshot.Version)
	} else {
		events = eventStore.GetEvents(id)
	}

	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			return zero, false, fmt.Errorf("failed to apply %s: %w", event.EventType, err)
		}
	}

	return agg, snapshot != nil || len(events) > 0, nil
}

// MaybeCreateSnapshot persists the current state every SnapshotThreshold
// events. Failures here are safe to surface or ignore; replay from the
// previous snapshot still works.
func MaybeCreateSnapshot(
	ctx context.Context,
	eventStore store.EventStoreInterface,
	agg Aggregate,
	aggregateType string,
) error {
	version := agg.GetVersion()
	if version == 0 || version%store.SnapshotThreshold != 0 {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate state: %w", err)
	}

	return eventStore.SaveSnapshot(ctx, &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now(),
	})
}
