package builder

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/dataset"
	"github.com/rushteam/mallrec/store"
)

func newTestData(t *testing.T) *dataset.StoreDataAdapter {
	t.Helper()
	ms := store.NewMemoryStore()
	t.Cleanup(func() { ms.Close() })
	return dataset.NewStoreDataAdapter(ms, "test")
}

func appendEvents(t *testing.T, data *dataset.StoreDataAdapter, events []core.InteractionEvent) {
	t.Helper()
	ctx := context.Background()
	for _, ev := range events {
		if err := data.AppendInteraction(ctx, ev); err != nil {
			t.Fatalf("append interaction: %v", err)
		}
	}
}

func TestBuild_TwoUserCoOccurrence(t *testing.T) {
	// U viewed A (weight 1) and purchased B (weight 6);
	// V viewed A (weight 1) and liked B (weight 3).
	// dot(A,B) = 1*6 + 1*3 = 9
	// norm(A) = sqrt(1+1) = sqrt(2), norm(B) = sqrt(36+9) = sqrt(45)
	// sim(A,B) = 9 / sqrt(90) = 0.948683 (rounded to 6 digits)
	data := newTestData(t)
	now := time.Now().Unix()
	appendEvents(t, data, []core.InteractionEvent{
		{UserID: "U", ProductID: "A", Action: core.ActionView, Timestamp: now - 40},
		{UserID: "U", ProductID: "B", Action: core.ActionPurchase, Timestamp: now - 30},
		{UserID: "V", ProductID: "A", Action: core.ActionView, Timestamp: now - 20},
		{UserID: "V", ProductID: "B", Action: core.ActionLike, Timestamp: now - 10},
	})

	b := NewSimilarityBuilder(data)
	result, err := b.Build(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Events != 4 {
		t.Errorf("events = %d, want 4", result.Events)
	}
	if result.Products != 2 {
		t.Errorf("products = %d, want 2", result.Products)
	}
	if result.Users != 2 {
		t.Errorf("users = %d, want 2", result.Users)
	}

	rows, err := data.ReadSimilarityRows(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}

	wantSim := 0.948683
	for _, pid := range []string{"A", "B"} {
		row, ok := rows[pid]
		if !ok {
			t.Fatalf("missing similarity row for %s", pid)
		}
		if len(row.Neighbors) != 1 {
			t.Fatalf("row %s neighbors = %d, want 1", pid, len(row.Neighbors))
		}
		if row.Neighbors[0].Sim != wantSim {
			t.Errorf("sim(%s) = %v, want %v", pid, row.Neighbors[0].Sim, wantSim)
		}
	}
	if rows["A"].Neighbors[0].ProductID != "B" {
		t.Errorf("A's neighbor = %s, want B", rows["A"].Neighbors[0].ProductID)
	}
	if rows["B"].Neighbors[0].ProductID != "A" {
		t.Errorf("B's neighbor = %s, want A", rows["B"].Neighbors[0].ProductID)
	}
}

func TestBuild_NeighborInvariants(t *testing.T) {
	// Several overlapping users; verify structural invariants of every row:
	// length <= K, sorted descending, no self-reference, sims in (0, 1].
	data := newTestData(t)
	now := time.Now().Unix()
	events := []core.InteractionEvent{
		{UserID: "u1", ProductID: "p1", Action: core.ActionView},
		{UserID: "u1", ProductID: "p2", Action: core.ActionLike},
		{UserID: "u1", ProductID: "p3", Action: core.ActionPurchase},
		{UserID: "u2", ProductID: "p1", Action: core.ActionLike},
		{UserID: "u2", ProductID: "p3", Action: core.ActionView},
		{UserID: "u2", ProductID: "p4", Action: core.ActionAddToCart},
		{UserID: "u3", ProductID: "p2", Action: core.ActionView},
		{UserID: "u3", ProductID: "p4", Action: core.ActionView},
	}
	for i := range events {
		events[i].Timestamp = now - int64(len(events)-i)
	}
	appendEvents(t, data, events)

	b := NewSimilarityBuilder(data)
	b.TopK = 2
	if _, err := b.Build(context.Background(), "gen-1"); err != nil {
		t.Fatalf("build: %v", err)
	}

	ids := []string{"p1", "p2", "p3", "p4"}
	rows, err := data.ReadSimilarityRows(context.Background(), ids)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	for _, pid := range ids {
		row, ok := rows[pid]
		if !ok {
			t.Fatalf("missing row for %s", pid)
		}
		if len(row.Neighbors) > 2 {
			t.Errorf("row %s has %d neighbors, want <= 2", pid, len(row.Neighbors))
		}
		for i, nbr := range row.Neighbors {
			if nbr.ProductID == pid {
				t.Errorf("row %s contains self-reference", pid)
			}
			if nbr.Sim <= 0 || nbr.Sim > 1 {
				t.Errorf("row %s sim %v out of (0,1]", pid, nbr.Sim)
			}
			if i > 0 && row.Neighbors[i-1].Sim < nbr.Sim {
				t.Errorf("row %s not sorted descending", pid)
			}
		}
	}
}

func TestBuild_SingleItemUserContributesNoPairs(t *testing.T) {
	data := newTestData(t)
	now := time.Now().Unix()
	appendEvents(t, data, []core.InteractionEvent{
		{UserID: "loner", ProductID: "solo", Action: core.ActionPurchase, Timestamp: now - 10},
	})

	b := NewSimilarityBuilder(data)
	if _, err := b.Build(context.Background(), "gen-1"); err != nil {
		t.Fatalf("build: %v", err)
	}

	rows, err := data.ReadSimilarityRows(context.Background(), []string{"solo"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	row, ok := rows["solo"]
	if !ok {
		t.Fatal("expected a row for solo")
	}
	if len(row.Neighbors) != 0 {
		t.Errorf("solo neighbors = %d, want 0", len(row.Neighbors))
	}
}

func TestBuild_Idempotent(t *testing.T) {
	data := newTestData(t)
	now := time.Now().Unix()
	appendEvents(t, data, []core.InteractionEvent{
		{UserID: "u1", ProductID: "a", Action: core.ActionView, Timestamp: now - 30},
		{UserID: "u1", ProductID: "b", Action: core.ActionLike, Timestamp: now - 20},
		{UserID: "u2", ProductID: "a", Action: core.ActionPurchase, Timestamp: now - 10},
		{UserID: "u2", ProductID: "b", Action: core.ActionView, Timestamp: now - 5},
	})

	ctx := context.Background()
	b := NewSimilarityBuilder(data)
	if _, err := b.Build(ctx, "gen-1"); err != nil {
		t.Fatalf("first build: %v", err)
	}
	first, err := data.ReadSimilarityRows(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("read first: %v", err)
	}

	if _, err := b.Build(ctx, "gen-2"); err != nil {
		t.Fatalf("second build: %v", err)
	}
	second, err := data.ReadSimilarityRows(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("read second: %v", err)
	}

	for _, pid := range []string{"a", "b"} {
		if !reflect.DeepEqual(first[pid].Neighbors, second[pid].Neighbors) {
			t.Errorf("row %s differs between runs: %v vs %v", pid, first[pid].Neighbors, second[pid].Neighbors)
		}
	}
}

func TestBuild_TieBreakByProductID(t *testing.T) {
	// One user views a, b, c equally: sim(a,b) == sim(a,c) == 1.0.
	// With TopK=1 the kept neighbor must be the lexicographically smaller ID.
	data := newTestData(t)
	now := time.Now().Unix()
	appendEvents(t, data, []core.InteractionEvent{
		{UserID: "x", ProductID: "a", Action: core.ActionView, Timestamp: now - 30},
		{UserID: "x", ProductID: "b", Action: core.ActionView, Timestamp: now - 20},
		{UserID: "x", ProductID: "c", Action: core.ActionView, Timestamp: now - 10},
	})

	b := NewSimilarityBuilder(data)
	b.TopK = 1
	if _, err := b.Build(context.Background(), "gen-1"); err != nil {
		t.Fatalf("build: %v", err)
	}

	rows, err := data.ReadSimilarityRows(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	row := rows["a"]
	if len(row.Neighbors) != 1 || row.Neighbors[0].ProductID != "b" {
		t.Errorf("a's top neighbor = %+v, want b", row.Neighbors)
	}
	if row.Neighbors[0].Sim != 1.0 {
		t.Errorf("sim = %v, want 1.0", row.Neighbors[0].Sim)
	}
}

func TestBuild_WindowExcludesOldEvents(t *testing.T) {
	data := newTestData(t)
	now := time.Now()
	old := now.AddDate(0, -13, 0).Unix() // outside the 12-month window
	appendEvents(t, data, []core.InteractionEvent{
		{UserID: "u1", ProductID: "stale1", Action: core.ActionView, Timestamp: old},
		{UserID: "u1", ProductID: "stale2", Action: core.ActionView, Timestamp: old + 1},
		{UserID: "u2", ProductID: "fresh1", Action: core.ActionView, Timestamp: now.Unix() - 20},
		{UserID: "u2", ProductID: "fresh2", Action: core.ActionView, Timestamp: now.Unix() - 10},
	})

	b := NewSimilarityBuilder(data)
	result, err := b.Build(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Events != 2 {
		t.Errorf("events = %d, want 2 (stale events excluded)", result.Events)
	}

	rows, err := data.ReadSimilarityRows(context.Background(), []string{"stale1", "fresh1"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if _, ok := rows["stale1"]; ok {
		t.Error("stale1 should not have a row in the new generation")
	}
	if _, ok := rows["fresh1"]; !ok {
		t.Error("fresh1 should have a row")
	}
}

func TestRound6(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.9486832980505138, 0.948683},
		{0.0000004, 0},
		{1.0, 1.0},
		{0.1234565, 0.123457},
	}
	for _, tt := range tests {
		if got := round6(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("round6(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
