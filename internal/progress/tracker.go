package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/readmodel"
	"github.com/google/uuid"
)

const (
	// DebounceInterval is how long position updates are held so that a
	// scrubbing viewer produces one write instead of dozens.
	DebounceInterval = time.Second

	// DefaultQuizPassingScore applies when a module does not set its own.
	DefaultQuizPassingScore = 80
)

const (
	AggregateType        = "Progress"
	EventProgressUpdated = "ProgressUpdated"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrModuleNotFound = errors.New("module not found in course")
	ErrInvalidScore   = errors.New("quiz score must be between 0 and 100")
	ErrQuizNotPassed  = errors.New("quiz score below passing threshold")
)

// ProgressUpdated is published after a progress record is written
type ProgressUpdated struct {
	ActorID      string    `json:"actor_id"`
	CourseID     string    `json:"course_id"`
	ModuleID     string    `json:"module_id"`
	VideoIndex   int       `json:"video_index"`
	Completed    bool      `json:"completed"`
	QuizScore    *int      `json:"quiz_score,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Publisher pushes progress events to subscribers
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Key identifies one progress record
func Key(actorID, courseID, moduleID string) string {
	return actorID + ":" + courseID + ":" + moduleID
}

type pendingWrite struct {
	timer  *time.Timer
	record *readmodel.ProgressReadModel
}

// Tracker maintains per-module learning progress. Position writes are
// debounced and coalesced per record; completion writes go through
// immediately and are never undone.
type Tracker struct {
	readStore store.ReadStoreInterface
	publisher Publisher
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWrite
	now     func() time.Time
}

func NewTracker(rs store.ReadStoreInterface, publisher Publisher) *Tracker {
	return &Tracker{
		readStore: rs,
		publisher: publisher,
		debounce:  DebounceInterval,
		pending:   make(map[string]*pendingWrite),
		now:       time.Now,
	}
}

func (t *Tracker) module(courseID, moduleID string) (*readmodel.CourseModule, error) {
	raw, found, err := t.readStore.Get(readmodel.CollectionCourses, courseID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	}
	course, ok := raw.(*readmodel.CourseReadModel)
	if !ok {
		return nil, fmt.Errorf("unexpected course model type %T", raw)
	}
	for i := range course.Modules {
		if course.Modules[i].ModuleID == moduleID {
			return &course.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
}

func (t *Tracker) current(actorID, courseID, moduleID string) (*readmodel.ProgressReadModel, error) {
	raw, found, err := t.readStore.Get(readmodel.CollectionProgress, Key(actorID, courseID, moduleID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	record, ok := raw.(*readmodel.ProgressReadModel)
	if !ok {
		return nil, fmt.Errorf("unexpected progress model type %T", raw)
	}
	return record, nil
}

// RecordPosition notes where the viewer is in a module's video sequence. The
// index is clamped to the module's video range, the write is delayed by the
// debounce interval, and only the latest position in that window is kept.
func (t *Tracker) RecordPosition(ctx context.Context, actorID, courseID, moduleID string, videoIndex, timeSpentSeconds int) error {
	mod, err := t.module(courseID, moduleID)
	if err != nil {
		return err
	}

	if videoIndex < 0 {
		videoIndex = 0
	}
	if mod.VideoCount > 0 && videoIndex > mod.VideoCount-1 {
		videoIndex = mod.VideoCount - 1
	}
	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}

	existing, err := t.current(actorID, courseID, moduleID)
	if err != nil {
		return err
	}

	key := Key(actorID, courseID, moduleID)

	t.mu.Lock()
	defer t.mu.Unlock()

	pw := t.pending[key]
	if pw == nil {
		record := &readmodel.ProgressReadModel{
			ActorID:      actorID,
			CourseID:     courseID,
			ModuleID:     moduleID,
			ModuleNumber: mod.Number,
		}
		if existing != nil {
			*record = *existing
		}
		pw = &pendingWrite{record: record}
		t.pending[key] = pw
	} else {
		pw.timer.Stop()
	}

	pw.record.VideoIndex = videoIndex
	pw.record.TimeSpentSeconds += timeSpentSeconds
	pw.record.UpdatedAt = t.now()

	pw.timer = time.AfterFunc(t.debounce, func() {
		t.flushKey(key)
	})

	return nil
}

// flushKey writes the coalesced record for one key, if still pending
func (t *Tracker) flushKey(key string) {
	t.mu.Lock()
	pw, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	t.write(context.Background(), key, pw.record)
}

// Flush writes every pending record immediately. Called on shutdown so a
// debounce window never loses the last position.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]*pendingWrite)
	for _, pw := range pending {
		pw.timer.Stop()
	}
	t.mu.Unlock()

	for key, pw := range pending {
		t.write(ctx, key, pw.record)
	}
}

func (t *Tracker) write(ctx context.Context, key string, record *readmodel.ProgressReadModel) {
	// Completion is monotonic: a buffered position write must not clear a
	// completion that landed while it was waiting.
	if existing, err := t.current(record.ActorID, record.CourseID, record.ModuleID); err == nil && existing != nil {
		if existing.Completed {
			record.Completed = true
		}
		if record.QuizScore == nil {
			record.QuizScore = existing.QuizScore
		}
	}

	if err := t.readStore.Set(readmodel.CollectionProgress, key, record); err != nil {
		log.Printf("[Progress] Failed to write progress %s: %v", key, err)
		return
	}
	t.publish(ctx, record)
}

// publish wraps the update in the same envelope the event store uses, so
// downstream consumers see one wire format. Keyed by actor id: one
// learner's updates stay ordered.
func (t *Tracker) publish(ctx context.Context, record *readmodel.ProgressReadModel) {
	if t.publisher == nil {
		return
	}
	event := ProgressUpdated{
		ActorID:    record.ActorID,
		CourseID:   record.CourseID,
		ModuleID:   record.ModuleID,
		VideoIndex: record.VideoIndex,
		Completed:  record.Completed,
		QuizScore:  record.QuizScore,
		UpdatedAt:  record.UpdatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Progress] Failed to marshal update for %s: %v", Key(record.ActorID, record.CourseID, record.ModuleID), err)
		return
	}
	envelope := store.Event{
		ID:            uuid.New().String(),
		AggregateID:   record.ActorID,
		AggregateType: AggregateType,
		EventType:     EventProgressUpdated,
		Data:          data,
		Timestamp:     record.UpdatedAt,
	}
	if err := t.publisher.Publish(ctx, record.ActorID, envelope); err != nil {
		log.Printf("[Progress] Failed to publish update for %s: %v", Key(record.ActorID, record.CourseID, record.ModuleID), err)
	}
}

// MarkCompleted marks a module finished. Completion sticks: marking an
// already-completed module is a no-op. When the module carries a quiz the
// score must reach the passing threshold.
func (t *Tracker) MarkCompleted(ctx context.Context, actorID, courseID, moduleID string, quizScore *int) (*readmodel.ProgressReadModel, error) {
	mod, err := t.module(courseID, moduleID)
	if err != nil {
		return nil, err
	}

	if quizScore != nil && (*quizScore < 0 || *quizScore > 100) {
		return nil, ErrInvalidScore
	}
	if quizScore != nil {
		threshold := mod.QuizPassingScore
		if threshold == 0 {
			threshold = DefaultQuizPassingScore
		}
		if *quizScore < threshold {
			return nil, fmt.Errorf("%w: %d < %d", ErrQuizNotPassed, *quizScore, threshold)
		}
	}

	key := Key(actorID, courseID, moduleID)

	// Fold any buffered position into the completion write
	t.mu.Lock()
	var buffered *readmodel.ProgressReadModel
	if pw, ok := t.pending[key]; ok {
		pw.timer.Stop()
		delete(t.pending, key)
		buffered = pw.record
	}
	t.mu.Unlock()

	existing, err := t.current(actorID, courseID, moduleID)
	if err != nil {
		return nil, err
	}

	record := &readmodel.ProgressReadModel{
		ActorID:      actorID,
		CourseID:     courseID,
		ModuleID:     moduleID,
		ModuleNumber: mod.Number,
	}
	if existing != nil {
		*record = *existing
	}
	if buffered != nil {
		record.VideoIndex = buffered.VideoIndex
		record.TimeSpentSeconds = buffered.TimeSpentSeconds
	}

	if existing != nil && existing.Completed {
		// Idempotent replay, but a position buffered in the debounce window
		// still has to become durable.
		if buffered == nil {
			return existing, nil
		}
		record.UpdatedAt = t.now()
		if err := t.readStore.Set(readmodel.CollectionProgress, key, record); err != nil {
			return nil, err
		}
		t.publish(ctx, record)
		return record, nil
	}

	record.Completed = true
	if quizScore != nil {
		record.QuizScore = quizScore
	}
	record.UpdatedAt = t.now()

	if err := t.readStore.Set(readmodel.CollectionProgress, key, record); err != nil {
		return nil, err
	}
	t.publish(ctx, record)

	return record, nil
}

// NextModule resolves the next incomplete module after the given one, in
// module number order. Returns nil when everything after it is done.
func (t *Tracker) NextModule(ctx context.Context, actorID, courseID, currentModuleID string) (*readmodel.CourseModule, error) {
	raw, found, err := t.readStore.Get(readmodel.CollectionCourses, courseID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	}
	course, ok := raw.(*readmodel.CourseReadModel)
	if !ok {
		return nil, fmt.Errorf("unexpected course model type %T", raw)
	}

	currentNumber := -1
	for _, m := range course.Modules {
		if m.ModuleID == currentModuleID {
			currentNumber = m.Number
			break
		}
	}
	if currentNumber < 0 && currentModuleID != "" {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, currentModuleID)
	}

	// Modules are kept ordered by number
	for i := range course.Modules {
		m := &course.Modules[i]
		if m.Number <= currentNumber {
			continue
		}
		record, err := t.current(actorID, courseID, m.ModuleID)
		if err != nil {
			return nil, err
		}
		if record == nil || !record.Completed {
			return m, nil
		}
	}
	return nil, nil
}

// Get returns the stored progress record, or nil when nothing is recorded yet
func (t *Tracker) Get(ctx context.Context, actorID, courseID, moduleID string) (*readmodel.ProgressReadModel, error) {
	return t.current(actorID, courseID, moduleID)
}
