package models

// StartTraversalRequest begins a traversal of a route.
type StartTraversalRequest struct {
	RouteID   string `json:"routeId" validate:"required"`
	HistoryID string `json:"historyId,omitempty"`
}

// ReorderRequest replaces the traversal order of the remaining walk.
// The order must contain every stop of the route exactly once.
type ReorderRequest struct {
	StopOrder []string `json:"stopOrder" validate:"required,min=1"`
}

// PushFixRequest feeds a single location fix into a traversal, as an
// HTTP alternative to the Pub/Sub ingest.
type PushFixRequest struct {
	Lat       float64    `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64    `json:"lon" validate:"gte=-180,lte=180"`
	AccuracyM float64    `json:"accuracyM,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// Traversal is the API view of an active traversal.
type Traversal struct {
	RouteID   string    `json:"routeId"`
	HistoryID string    `json:"historyId,omitempty"`
	State     string    `json:"state"`
	StartedAt Timestamp `json:"startedAt"`

	TrackingStatus string `json:"trackingStatus"`
	Position       *Point `json:"position,omitempty"`

	StopOrder    []string `json:"stopOrder"`
	Unvisited    []string `json:"unvisited"`
	NextStopID   string   `json:"nextStopId,omitempty"`
	VisitedCount int      `json:"visitedCount"`
	TotalStops   int      `json:"totalStops"`

	PersistenceDegraded bool `json:"persistenceDegraded,omitempty"`

	Narration NarrationStatus `json:"narration"`
}

// NarrationStatus is the queue portion of a traversal view.
type NarrationStatus struct {
	State         string `json:"state"`
	CurrentStopID string `json:"currentStopId,omitempty"`
	PendingCount  int    `json:"pendingCount"`
	LastError     string `json:"lastError,omitempty"`
}
