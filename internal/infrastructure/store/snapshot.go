package store

import (
	"encoding/json"
	"time"
)

// SnapshotThreshold is how many events an aggregate accrues between
// snapshots. Orders rarely exceed a handful of transitions; the threshold
// mostly matters for long-lived group orders.
const SnapshotThreshold = 10

// Snapshot is a serialized aggregate state at a known version. Replay
// resumes from Version rather than from the first event.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}
