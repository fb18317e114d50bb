package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/chefmarket/internal/command"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/query"
)

// CourseHandlers serves the cooking course catalog and learning progress
type CourseHandlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	tracker      *progress.Tracker
}

func NewCourseHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, tracker *progress.Tracker) *CourseHandlers {
	return &CourseHandlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		tracker:      tracker,
	}
}

// ListCourses returns the course catalog
func (h *CourseHandlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.ListCourses())
}

// GetCourse returns a single course with its modules
func (h *CourseHandlers) GetCourse(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/courses/", 0)

	course, ok := h.queryHandler.GetCourse(id)
	if !ok {
		respondJSONError(w, "Course not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, course)
}

// GetCourseProgress returns the caller's per-module records for a course
func (h *CourseHandlers) GetCourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID := pathSegment(r.URL.Path, "/courses/", 0)
	actorID := getActorID(r)

	respondJSON(w, http.StatusOK, h.queryHandler.ListCourseProgress(actorID, courseID))
}

// RecordPosition buffers a viewing-position update. Returns 202 because the
// write is debounced, not immediate.
func (h *CourseHandlers) RecordPosition(w http.ResponseWriter, r *http.Request) {
	courseID := pathSegment(r.URL.Path, "/courses/", 0)
	moduleID := pathSegment(r.URL.Path, "/courses/", 2)

	var req struct {
		VideoIndex       int `json:"video_index"`
		TimeSpentSeconds int `json:"time_spent_seconds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.cmdHandler.RecordPosition(r.Context(), command.RecordPosition{
		ActorID:          getActorID(r),
		CourseID:         courseID,
		ModuleID:         moduleID,
		VideoIndex:       req.VideoIndex,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// CompleteModule marks a module finished, optionally with a quiz score
func (h *CourseHandlers) CompleteModule(w http.ResponseWriter, r *http.Request) {
	courseID := pathSegment(r.URL.Path, "/courses/", 0)
	moduleID := pathSegment(r.URL.Path, "/courses/", 2)

	var req struct {
		QuizScore *int `json:"quiz_score,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	record, err := h.cmdHandler.MarkModuleCompleted(r.Context(), command.MarkModuleCompleted{
		ActorID:   getActorID(r),
		CourseID:  courseID,
		ModuleID:  moduleID,
		QuizScore: req.QuizScore,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// NextModule resolves where the caller should resume in a course
func (h *CourseHandlers) NextModule(w http.ResponseWriter, r *http.Request) {
	courseID := pathSegment(r.URL.Path, "/courses/", 0)
	currentModuleID := r.URL.Query().Get("current")

	module, err := h.tracker.NextModule(r.Context(), getActorID(r), courseID, currentModuleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if module == nil {
		// Everything after the current module is complete
		respondJSON(w, http.StatusOK, map[string]any{"next_module": nil})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"next_module": module})
}
