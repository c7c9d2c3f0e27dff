package progress

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// snapshotVersion is the schema version written for new snapshots.
// Version 1 stored a per-stop state array; version 2 stores a visited-id
// array. Readers accept both, writers emit only version 2.
const snapshotVersion = 2

// snapshotV2 is the current wire format.
type snapshotV2 struct {
	Version   int       `json:"version"`
	RouteID   string    `json:"routeId"`
	HistoryID string    `json:"historyId,omitempty"`
	StopOrder []string  `json:"stopOrder"`
	Visited   []string  `json:"visited"`
	StartedAt time.Time `json:"startedAt"`
}

// snapshotV1 is the legacy wire format with per-stop state entries.
type snapshotV1 struct {
	RouteID   string        `json:"routeId"`
	HistoryID string        `json:"historyId,omitempty"`
	Stops     []stopStateV1 `json:"stops"`
	StartedAt time.Time     `json:"startedAt"`
}

type stopStateV1 struct {
	ID      string `json:"id"`
	Order   int    `json:"order"`
	Visited bool   `json:"visited"`
}

// EncodeSnapshot serializes a snapshot in the current schema version.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	v2 := snapshotV2{
		Version:   snapshotVersion,
		RouteID:   snap.RouteID,
		HistoryID: snap.HistoryID,
		StopOrder: snap.StopOrder,
		Visited:   snap.Visited,
		StartedAt: snap.StartedAt,
	}
	return json.Marshal(v2)
}

// DecodeSnapshot deserializes a snapshot, accepting the current format
// and falling back to the legacy per-stop state format.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var v2 snapshotV2
	if err := json.Unmarshal(data, &v2); err == nil && v2.Version == snapshotVersion {
		return &Snapshot{
			RouteID:   v2.RouteID,
			HistoryID: v2.HistoryID,
			StopOrder: v2.StopOrder,
			Visited:   v2.Visited,
			StartedAt: v2.StartedAt,
		}, nil
	}

	var v1 snapshotV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if v1.RouteID == "" {
		return nil, fmt.Errorf("decode snapshot: unrecognized schema")
	}

	stops := make([]stopStateV1, len(v1.Stops))
	copy(stops, v1.Stops)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Order < stops[j].Order })

	snap := &Snapshot{
		RouteID:   v1.RouteID,
		HistoryID: v1.HistoryID,
		StartedAt: v1.StartedAt,
	}
	for _, s := range stops {
		snap.StopOrder = append(snap.StopOrder, s.ID)
		if s.Visited {
			snap.Visited = append(snap.Visited, s.ID)
		}
	}
	return snap, nil
}
