package dataset

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/store"
)

func newAdapter(t *testing.T) *StoreDataAdapter {
	t.Helper()
	ms := store.NewMemoryStore()
	t.Cleanup(func() { ms.Close() })
	return NewStoreDataAdapter(ms, "test")
}

func TestAppendInteraction_Validation(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ev   core.InteractionEvent
	}{
		{"missing user", core.InteractionEvent{ProductID: "p1", Action: core.ActionView, Timestamp: 100}},
		{"missing product", core.InteractionEvent{UserID: "u1", Action: core.ActionView, Timestamp: 100}},
		{"unknown action", core.InteractionEvent{UserID: "u1", ProductID: "p1", Action: "wave", Timestamp: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.AppendInteraction(ctx, tt.ev); !core.IsInvalidInput(err) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestReadUserInteractions_NewestFirst(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	for i, pid := range []string{"p1", "p2", "p3"} {
		ev := core.InteractionEvent{
			UserID: "u1", ProductID: pid, Action: core.ActionView, Timestamp: int64(100 + i),
		}
		if err := a.AppendInteraction(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := a.ReadUserInteractions(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := make([]string, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.ProductID)
	}
	if !reflect.DeepEqual(got, []string{"p3", "p2", "p1"}) {
		t.Errorf("order = %v, want newest first", got)
	}

	limited, err := a.ReadUserInteractions(ctx, "u1", 0, 2)
	if err != nil {
		t.Fatalf("read limited: %v", err)
	}
	if len(limited) != 2 || limited[0].ProductID != "p3" {
		t.Errorf("limited = %v, want 2 newest", limited)
	}

	since, err := a.ReadUserInteractions(ctx, "u1", 101, 0)
	if err != nil {
		t.Fatalf("read since: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("since 101 = %d events, want 2", len(since))
	}
}

func TestReadUserInteractions_DuplicateSameSecond(t *testing.T) {
	// two identical events in the same second must both survive
	a := newAdapter(t)
	ctx := context.Background()
	ev := core.InteractionEvent{UserID: "u1", ProductID: "p1", Action: core.ActionView, Timestamp: 100}
	if err := a.AppendInteraction(ctx, ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := a.AppendInteraction(ctx, ev); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := a.ReadUserInteractions(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestReadUserActionInteractions_SubsetView(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	events := []core.InteractionEvent{
		{UserID: "u1", ProductID: "p1", Action: core.ActionView, Timestamp: 100},
		{UserID: "u1", ProductID: "p2", Action: core.ActionLike, Timestamp: 101},
		{UserID: "u1", ProductID: "p3", Action: core.ActionPurchase, Timestamp: 102},
		{UserID: "u1", ProductID: "p4", Action: core.ActionView, Timestamp: 103},
	}
	for _, ev := range events {
		if err := a.AppendInteraction(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	views, err := a.ReadUserActionInteractions(ctx, "u1", []core.ActionType{core.ActionView}, 0)
	if err != nil {
		t.Fatalf("read views: %v", err)
	}
	if len(views) != 2 || views[0].ProductID != "p4" || views[1].ProductID != "p1" {
		t.Errorf("views = %v, want [p4 p1]", views)
	}

	affinity, err := a.ReadUserActionInteractions(ctx, "u1",
		[]core.ActionType{core.ActionLike, core.ActionPurchase}, 0)
	if err != nil {
		t.Fatalf("read affinity: %v", err)
	}
	if len(affinity) != 2 || affinity[0].ProductID != "p3" {
		t.Errorf("affinity = %v, want [p3 p2]", affinity)
	}
}

func TestReadItemActors_LikeAndPurchaseOnly(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	events := []core.InteractionEvent{
		{UserID: "u1", ProductID: "p1", Action: core.ActionLike, Timestamp: 100},
		{UserID: "u2", ProductID: "p1", Action: core.ActionPurchase, Timestamp: 101},
		{UserID: "u3", ProductID: "p1", Action: core.ActionView, Timestamp: 102},
	}
	for _, ev := range events {
		if err := a.AppendInteraction(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	actors, err := a.ReadItemActors(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("read actors: %v", err)
	}
	if !reflect.DeepEqual(actors, []string{"u2", "u1"}) {
		t.Errorf("actors = %v, want [u2 u1] (views excluded, newest first)", actors)
	}
}

func TestAppendOrder_WritesPurchaseEvents(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	o := core.Order{
		ID: "o1", UserID: "u1", Status: "paid", CreatedAt: 500,
		Items: []core.OrderItem{
			{ProductID: "p1", Qty: 1, Price: 10},
			{ProductID: "p2", Qty: 2, Price: 5},
		},
		Total: 20,
	}
	if err := a.AppendOrder(ctx, o); err != nil {
		t.Fatalf("append order: %v", err)
	}

	orders, err := a.ReadUserOrders(ctx, "u1")
	if err != nil {
		t.Fatalf("read orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Fatalf("orders = %v, want [o1]", orders)
	}

	withP2, err := a.ReadOrdersWithProduct(ctx, "p2")
	if err != nil {
		t.Fatalf("read orders with product: %v", err)
	}
	if len(withP2) != 1 || withP2[0].ID != "o1" {
		t.Errorf("orders with p2 = %v, want [o1]", withP2)
	}

	// each order item also lands in the interaction log as a purchase
	events, err := a.ReadUserActionInteractions(ctx, "u1", []core.ActionType{core.ActionPurchase}, 0)
	if err != nil {
		t.Fatalf("read purchases: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("purchase events = %d, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Value != 6 {
			t.Errorf("purchase value = %v, want 6", ev.Value)
		}
	}
}

func TestAppendOrder_Validation(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()
	if err := a.AppendOrder(ctx, core.Order{ID: "o1", UserID: "u1"}); !core.IsInvalidInput(err) {
		t.Errorf("empty items err = %v, want INVALID_INPUT", err)
	}
	if err := a.AppendOrder(ctx, core.Order{UserID: "u1", Items: []core.OrderItem{{ProductID: "p1"}}}); !core.IsInvalidInput(err) {
		t.Errorf("missing id err = %v, want INVALID_INPUT", err)
	}
}

func TestReadCatalog_MissingIDsAbsent(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	if err := a.PutProduct(ctx, core.ProductSummary{ID: "p1", Name: "Keyboard", Category: "peripherals"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := a.ReadCatalog(ctx, []string{"p1", "ghost"})
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d products, want 1", len(got))
	}
	if got["p1"].Name != "Keyboard" {
		t.Errorf("p1 = %+v", got["p1"])
	}
	if _, ok := got["ghost"]; ok {
		t.Error("missing id must be absent, not stubbed, at the adapter layer")
	}
}

func TestWishlist_RoundTrip(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	empty, err := a.ReadWishlist(ctx, "u1")
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty wishlist = %v", empty)
	}

	if err := a.PutWishlist(ctx, "u1", []string{"p1", "p2"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := a.ReadWishlist(ctx, "u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("wishlist = %v", got)
	}
}

func TestSimilarity_GenerationSwap(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	if _, err := a.CurrentGeneration(ctx); !core.IsStoreNotFound(err) {
		t.Errorf("pre-build generation err = %v, want store not found", err)
	}
	// before any commit the index reads as empty
	rows, err := a.ReadSimilarityRows(ctx, []string{"p1"})
	if err != nil {
		t.Fatalf("read rows pre-commit: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows before commit = %v, want empty", rows)
	}

	rowV1 := core.ItemSimilarityRow{
		ProductID: "p1",
		Neighbors: []core.NeighborEntry{{ProductID: "p2", Sim: 0.5}},
		UpdatedAt: 100,
	}
	if err := a.UpsertSimilarityRow(ctx, "gen1", rowV1); err != nil {
		t.Fatalf("upsert gen1: %v", err)
	}

	// uncommitted generations stay invisible
	rows, err = a.ReadSimilarityRows(ctx, []string{"p1"})
	if err != nil {
		t.Fatalf("read rows uncommitted: %v", err)
	}
	if len(rows) != 0 {
		t.Error("uncommitted generation must not be readable")
	}

	if err := a.CommitGeneration(ctx, "gen1"); err != nil {
		t.Fatalf("commit gen1: %v", err)
	}
	rows, err = a.ReadSimilarityRows(ctx, []string{"p1"})
	if err != nil {
		t.Fatalf("read rows gen1: %v", err)
	}
	if !reflect.DeepEqual(rows["p1"], rowV1) {
		t.Errorf("row = %+v, want %+v", rows["p1"], rowV1)
	}

	// a new generation replaces the old one only at commit time
	rowV2 := core.ItemSimilarityRow{
		ProductID: "p1",
		Neighbors: []core.NeighborEntry{{ProductID: "p3", Sim: 0.9}},
		UpdatedAt: 200,
	}
	if err := a.UpsertSimilarityRow(ctx, "gen2", rowV2); err != nil {
		t.Fatalf("upsert gen2: %v", err)
	}
	rows, _ = a.ReadSimilarityRows(ctx, []string{"p1"})
	if !reflect.DeepEqual(rows["p1"], rowV1) {
		t.Error("readers must keep seeing gen1 until gen2 commits")
	}

	if err := a.CommitGeneration(ctx, "gen2"); err != nil {
		t.Fatalf("commit gen2: %v", err)
	}
	rows, _ = a.ReadSimilarityRows(ctx, []string{"p1"})
	if !reflect.DeepEqual(rows["p1"], rowV2) {
		t.Errorf("after commit row = %+v, want %+v", rows["p1"], rowV2)
	}

	gen, err := a.CurrentGeneration(ctx)
	if err != nil {
		t.Fatalf("current generation: %v", err)
	}
	if gen != "gen2" {
		t.Errorf("generation = %s, want gen2", gen)
	}
}

func TestNewGeneration_UniquePerCall(t *testing.T) {
	a := newAdapter(t)

	// same timestamp must still yield distinct generation IDs
	g1 := a.NewGeneration(1700000000)
	g2 := a.NewGeneration(1700000000)
	if g1 == "" || g1 == g2 {
		t.Errorf("generations = %q, %q, want distinct non-empty", g1, g2)
	}
}

func TestUserRecCache_OverwriteAndClear(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()

	none, err := a.ReadUserRecCache(ctx, "u1")
	if err != nil {
		t.Fatalf("read empty cache: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("empty cache = %v", none)
	}

	entries := []core.CachedEntry{
		{ProductID: "p1", Score: 2.5, TS: 100},
		{ProductID: "p2", Score: 1.5, TS: 100},
	}
	if err := a.WriteUserRecCache(ctx, "u1", entries); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := a.ReadUserRecCache(ctx, "u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("cache = %v, want %v", got, entries)
	}

	// writing nil clears the snapshot
	if err := a.WriteUserRecCache(ctx, "u1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = a.ReadUserRecCache(ctx, "u1")
	if err != nil {
		t.Fatalf("read cleared: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("cache after clear = %v, want empty", got)
	}
}
