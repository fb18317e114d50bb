package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/chefmarket/internal/readmodel"
	_ "github.com/lib/pq"
)

// PostgresReadStore persists read models as JSON documents keyed by
// (collection, id). Rehydration into concrete read model types happens on
// read, so callers get the same pointers they would from the in-memory store.
type PostgresReadStore struct {
	db *sql.DB

	// Per-(collection,id) update serialization. The read-modify-write in
	// Update is not atomic at the SQL level; the projector is the single
	// writer but may be sharded per process, so guard within the process.
	mu sync.Mutex
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// newModel returns an empty read model for a collection, used to unmarshal
// stored documents back into their concrete types.
func newModel(collection string) (any, error) {
	switch collection {
	case readmodel.CollectionOrders:
		return &readmodel.OrderReadModel{}, nil
	case readmodel.CollectionGroupOrders:
		return &readmodel.GroupOrderReadModel{}, nil
	case readmodel.CollectionProgress:
		return &readmodel.ProgressReadModel{}, nil
	case readmodel.CollectionCourses:
		return &readmodel.CourseReadModel{}, nil
	case readmodel.CollectionActors:
		return &readmodel.ActorReadModel{}, nil
	case readmodel.CollectionSessions:
		return &readmodel.SessionReadModel{}, nil
	default:
		return nil, fmt.Errorf("unknown read model collection %q", collection)
	}
}

// Set stores a read model
func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	doc, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = rs.db.ExecContext(context.Background(),
		`INSERT INTO read_models (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (collection, id) DO UPDATE
		 SET data = $3, updated_at = NOW()`,
		collection, id, doc,
	)
	return err
}

// Get retrieves a read model by id
func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	var doc []byte
	err := rs.db.QueryRowContext(context.Background(),
		`SELECT data FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	model, err := newModel(collection)
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(doc, model); err != nil {
		return nil, false, err
	}
	return model, true, nil
}

// GetAll retrieves all items in a collection
func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	rows, err := rs.db.QueryContext(context.Background(),
		`SELECT data FROM read_models WHERE collection = $1 ORDER BY updated_at ASC`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		model, err := newModel(collection)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(doc, model); err != nil {
			return nil, err
		}
		items = append(items, model)
	}
	return items, rows.Err()
}

// Delete removes a read model
func (rs *PostgresReadStore) Delete(collection, id string) error {
	_, err := rs.db.ExecContext(context.Background(),
		`DELETE FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	return err
}

// Update modifies a read model using an update function
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok, err := rs.Get(collection, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := rs.Set(collection, id, updateFn(current)); err != nil {
		return false, err
	}
	return true, nil
}
