package session

import (
	"testing"

	"github.com/runtrace/runtrace/internal/geo"
)

func TestDeltaMerge(t *testing.T) {
	a := fixAt(1, 1)
	b := fixAt(2, 2)
	c := fixAt(3, 3)

	first := Delta{ID: "r", Phase: Running, ElapsedMs: 1000, FromIndex: 4, Points: []geo.Fix{a}, LastFix: &a}
	second := Delta{ID: "r", Phase: Running, ElapsedMs: 2000, FromIndex: 5, Points: []geo.Fix{b, c}}

	merged, ok := first.Merge(second)
	if !ok {
		t.Fatal("contiguous deltas should merge")
	}
	if merged.FromIndex != 4 || len(merged.Points) != 3 {
		t.Errorf("merged FromIndex=%d len=%d, want 4 and 3", merged.FromIndex, len(merged.Points))
	}
	if merged.ElapsedMs != 2000 {
		t.Errorf("scalars should be latest-wins, ElapsedMs = %d", merged.ElapsedMs)
	}
	if merged.LastFix == nil || merged.LastFix.Lat != 1 {
		t.Error("missing LastFix in the later delta should keep the earlier one")
	}
}

func TestDeltaMergeTickOnly(t *testing.T) {
	a := fixAt(1, 1)
	first := Delta{ID: "r", FromIndex: 0, Points: []geo.Fix{a}}
	tick := Delta{ID: "r", ElapsedMs: 5000, FromIndex: 1}

	merged, ok := first.Merge(tick)
	if !ok {
		t.Fatal("a tick after a point delta should merge")
	}
	if len(merged.Points) != 1 || merged.ElapsedMs != 5000 {
		t.Errorf("merged = %+v", merged)
	}
}

func TestDeltaMergeRejects(t *testing.T) {
	a := fixAt(1, 1)
	tests := []struct {
		name        string
		first, next Delta
	}{
		{"different run", Delta{ID: "r1"}, Delta{ID: "r2"}},
		{"gap", Delta{ID: "r", FromIndex: 0, Points: []geo.Fix{a}}, Delta{ID: "r", FromIndex: 3, Points: []geo.Fix{a}}},
	}
	for _, tt := range tests {
		if _, ok := tt.first.Merge(tt.next); ok {
			t.Errorf("%s: Merge should fail", tt.name)
		}
	}
}

func TestSnapshotApply(t *testing.T) {
	a, b, c := fixAt(1, 1), fixAt(2, 2), fixAt(3, 3)
	snap := Snapshot{ID: "r", Phase: Running, Points: []geo.Fix{a}}

	got, ok := snap.Apply(Delta{ID: "r", Phase: Paused, ElapsedMs: 9000, DistanceM: 12, FromIndex: 1, Points: []geo.Fix{b, c}})
	if !ok {
		t.Fatal("Apply failed")
	}
	if got.Phase != Paused || got.ElapsedMs != 9000 || got.DistanceM != 12 {
		t.Errorf("scalars not applied: %+v", got)
	}
	if len(got.Points) != 3 {
		t.Errorf("len(Points) = %d, want 3", len(got.Points))
	}
	if len(snap.Points) != 1 {
		t.Error("Apply modified the original snapshot")
	}

	// Re-sending overlapping points replaces rather than duplicates.
	again, ok := got.Apply(Delta{ID: "r", FromIndex: 2, Points: []geo.Fix{c}})
	if !ok || len(again.Points) != 3 {
		t.Errorf("overlapping apply: ok=%v len=%d", ok, len(again.Points))
	}
}

func TestSnapshotApplyRejects(t *testing.T) {
	snap := Snapshot{ID: "r", Points: []geo.Fix{fixAt(1, 1)}}
	if _, ok := snap.Apply(Delta{ID: "other"}); ok {
		t.Error("delta for another run should not apply")
	}
	if _, ok := snap.Apply(Delta{ID: "r", FromIndex: 5, Points: []geo.Fix{fixAt(2, 2)}}); ok {
		t.Error("delta past the end of the track should not apply")
	}
}
