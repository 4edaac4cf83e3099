package persistence

import (
	"context"
	"testing"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

func TestMemoryDriverAppendAndScan(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()

	ws1 := model.NewWriteSet()
	ws1.Put(1, model.Update{Kind: model.UpdateInsert, Table: "docs", Value: []byte(`{"a":1}`)})
	if err := d.Append(ctx, 10, ws1); err != nil {
		t.Fatalf("append: %v", err)
	}

	ws2 := model.NewWriteSet()
	ws2.Put(2, model.Update{Kind: model.UpdateInsert, Table: "docs", Value: []byte(`{"b":2}`)})
	if err := d.Append(ctx, 20, ws2); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, err := d.LoadLatest(ctx)
	if err != nil || latest != 20 {
		t.Fatalf("expected latest=20, got %d err=%v", latest, err)
	}

	var seen []model.Ts
	err = d.Scan(ctx, 0, func(ts model.Ts, ws *model.WriteSet) bool {
		seen = append(seen, ts)
		return true
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 20 {
		t.Fatalf("expected ascending [10 20], got %v", seen)
	}
}

func TestMemoryDriverScanFromExcludesEarlier(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	d.Append(ctx, 10, model.NewWriteSet())
	d.Append(ctx, 20, model.NewWriteSet())

	var seen []model.Ts
	d.Scan(ctx, 10, func(ts model.Ts, ws *model.WriteSet) bool {
		seen = append(seen, ts)
		return true
	})
	if len(seen) != 1 || seen[0] != 20 {
		t.Fatalf("expected only ts=20 after from=10, got %v", seen)
	}
}
