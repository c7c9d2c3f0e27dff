package progress

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSnapshotCodec_RoundTrip(t *testing.T) {
	snap := &Snapshot{
		RouteID:   "rte_1",
		HistoryID: "hist_9",
		StopOrder: []string{"b", "a", "c"},
		Visited:   []string{"b"},
		StartedAt: time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
	}

	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, snap)
	}
}

func TestSnapshotCodec_LegacyFormat(t *testing.T) {
	// Version 1 stored per-stop state entries instead of a visited array.
	legacy := []byte(`{
		"routeId": "rte_1",
		"historyId": "hist_1",
		"stops": [
			{"id": "c", "order": 3, "visited": false},
			{"id": "a", "order": 1, "visited": true},
			{"id": "b", "order": 2, "visited": true}
		],
		"startedAt": "2026-08-30T14:00:00Z"
	}`)

	snap, err := DecodeSnapshot(legacy)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}

	if !reflect.DeepEqual(snap.StopOrder, []string{"a", "b", "c"}) {
		t.Errorf("expected order rebuilt from per-stop ranks, got %v", snap.StopOrder)
	}
	if !reflect.DeepEqual(snap.Visited, []string{"a", "b"}) {
		t.Errorf("expected visited [a b], got %v", snap.Visited)
	}
	if snap.HistoryID != "hist_1" {
		t.Errorf("expected history id carried over, got %q", snap.HistoryID)
	}
}

func TestSnapshotCodec_WritesCurrentVersionOnly(t *testing.T) {
	data, err := EncodeSnapshot(&Snapshot{RouteID: "rte_1", StopOrder: []string{"a"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// A re-encoded legacy snapshot must come out in the v2 schema.
	if !strings.Contains(string(data), `"version":2`) {
		t.Errorf("expected version 2 marker in %s", data)
	}
}

func TestSnapshotCodec_RejectsGarbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte(`{"unrelated": true}`)); err == nil {
		t.Error("expected unrecognized schema to be rejected")
	}
	if _, err := DecodeSnapshot([]byte(`not json`)); err == nil {
		t.Error("expected invalid JSON to be rejected")
	}
}
