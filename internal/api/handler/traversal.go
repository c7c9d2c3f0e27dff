package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderly/waypointd/internal/api/models"
	"github.com/wanderly/waypointd/internal/api/response"
	"github.com/wanderly/waypointd/internal/geo"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/scheduler"
	"github.com/wanderly/waypointd/internal/tour"
)

// TraversalHandler handles traversal lifecycle and narration-control
// endpoints.
type TraversalHandler struct {
	manager *scheduler.Manager
}

// NewTraversalHandler creates a new TraversalHandler.
func NewTraversalHandler(manager *scheduler.Manager) *TraversalHandler {
	return &TraversalHandler{manager: manager}
}

// StartTraversal handles POST /v1/traversals.
func (h *TraversalHandler) StartTraversal(w http.ResponseWriter, r *http.Request) {
	var req models.StartTraversalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if req.RouteID == "" {
		response.BadRequest(w, r, "routeId is required", []models.FieldError{
			{Field: "routeId", Message: "must not be empty", Code: "required"},
		})
		return
	}
	historyID := req.HistoryID
	if historyID == "" {
		historyID = "hist_" + uuid.New().String()[:22]
	}

	sched, err := h.manager.Start(r.Context(), req.RouteID, historyID)
	if err != nil {
		switch {
		case errors.Is(err, tour.ErrRouteNotFound):
			response.NotFound(w, r, "route not found")
		case errors.Is(err, scheduler.ErrTraversalActive):
			response.Conflict(w, r, "a traversal is already active for this route")
		case errors.Is(err, scheduler.ErrNoStops):
			response.BadRequest(w, r, "route has no stops", nil)
		default:
			response.InternalError(w, r, "failed to start traversal")
		}
		return
	}

	response.Created(w, r, "/v1/traversals/"+req.RouteID, toTraversal(sched.Snapshot()))
}

// GetTraversal handles GET /v1/traversals/{routeId}.
func (h *TraversalHandler) GetTraversal(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toTraversal(sched.Snapshot()))
}

// StopTraversal handles POST /v1/traversals/{routeId}/stop. Progress
// stays persisted so the traversal can be resumed.
func (h *TraversalHandler) StopTraversal(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	if err := h.manager.Stop(routeID); err != nil {
		response.NotFound(w, r, "no active traversal for this route")
		return
	}
	response.NoContent(w, r)
}

// AbandonTraversal handles DELETE /v1/traversals/{routeId}. All
// progress, persisted included, is discarded.
func (h *TraversalHandler) AbandonTraversal(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	if err := h.manager.Abandon(r.Context(), routeID); err != nil {
		response.NotFound(w, r, "no active traversal for this route")
		return
	}
	response.NoContent(w, r)
}

// Reorder handles POST /v1/traversals/{routeId}/reorder.
func (h *TraversalHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if !sched.Reorder(r.Context(), req.StopOrder) {
		response.BadRequest(w, r, "stopOrder must be a permutation of the route's stops", []models.FieldError{
			{Field: "stopOrder", Message: "not a permutation of the current stop set", Code: "invalid_permutation"},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, toTraversal(sched.Snapshot()))
}

// PushFix handles POST /v1/traversals/{routeId}/fixes, the HTTP ingest
// path for device location fixes.
func (h *TraversalHandler) PushFix(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	var req models.PushFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	sample := location.Sample{
		Coord:     geo.Point{Lat: req.Lat, Lon: req.Lon},
		Timestamp: time.Now(),
		AccuracyM: req.AccuracyM,
	}
	if req.Timestamp != nil {
		sample.Timestamp = req.Timestamp.Time()
	}
	if !sample.Coord.Valid() {
		response.BadRequest(w, r, "coordinate out of range", nil)
		return
	}

	if err := h.manager.PushFix(routeID, sample); err != nil {
		response.NotFound(w, r, "no active traversal for this route")
		return
	}
	response.Accepted(w, r, "", nil)
}

// Narration control endpoints. All operate on the route's active
// traversal and return the refreshed traversal view.

// PauseNarration handles POST /v1/traversals/{routeId}/narration/pause.
func (h *TraversalHandler) PauseNarration(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*scheduler.Scheduler).PauseNarration)
}

// ResumeNarration handles POST /v1/traversals/{routeId}/narration/resume.
func (h *TraversalHandler) ResumeNarration(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*scheduler.Scheduler).ResumeNarration)
}

// SkipNarration handles POST /v1/traversals/{routeId}/narration/skip.
func (h *TraversalHandler) SkipNarration(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*scheduler.Scheduler).SkipNarration)
}

// SkipBackNarration handles POST /v1/traversals/{routeId}/narration/skip-back.
func (h *TraversalHandler) SkipBackNarration(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*scheduler.Scheduler).SkipBackNarration)
}

// StopNarration handles POST /v1/traversals/{routeId}/narration/stop.
func (h *TraversalHandler) StopNarration(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*scheduler.Scheduler).StopNarration)
}

func (h *TraversalHandler) control(w http.ResponseWriter, r *http.Request, op func(*scheduler.Scheduler)) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	op(sched)
	response.JSON(w, r, http.StatusOK, toTraversal(sched.Snapshot()))
}

func (h *TraversalHandler) lookup(w http.ResponseWriter, r *http.Request) (*scheduler.Scheduler, bool) {
	routeID := chi.URLParam(r, "routeId")
	sched, err := h.manager.Get(routeID)
	if err != nil {
		response.NotFound(w, r, "no active traversal for this route")
		return nil, false
	}
	return sched, true
}

func toTraversal(snap scheduler.Snapshot) models.Traversal {
	t := models.Traversal{
		RouteID:             snap.RouteID,
		HistoryID:           snap.HistoryID,
		State:               string(snap.State),
		StartedAt:           models.Timestamp(snap.StartedAt),
		TrackingStatus:      string(snap.TrackingStatus),
		StopOrder:           snap.StopOrder,
		Unvisited:           snap.Unvisited,
		NextStopID:          snap.NextStopID,
		VisitedCount:        snap.VisitedCount,
		TotalStops:          snap.TotalStops,
		PersistenceDegraded: snap.PersistenceDegraded,
		Narration: models.NarrationStatus{
			State:         string(snap.Narration.State),
			CurrentStopID: snap.Narration.CurrentStopID,
			PendingCount:  snap.Narration.PendingCount,
			LastError:     snap.Narration.LastError,
		},
	}
	if snap.Position != nil {
		t.Position = &models.Point{Lat: snap.Position.Lat, Lon: snap.Position.Lon}
	}
	return t
}
