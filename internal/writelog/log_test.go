package writelog

import (
	"testing"

	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
)

func TestLogEvictsOldestOverCapacity(t *testing.T) {
	l := New(2)
	l.Append(1, model.NewWriteSet(), overlap.AffectedKeys{})
	l.Append(2, model.NewWriteSet(), overlap.AffectedKeys{})
	l.Append(3, model.NewWriteSet(), overlap.AffectedKeys{})

	entries, inWindow := l.After(1)
	if !inWindow {
		t.Fatalf("expected in window")
	}
	if len(entries) != 2 || entries[0].Ts != 2 || entries[1].Ts != 3 {
		t.Fatalf("expected [2 3] after eviction, got %+v", entries)
	}
}

func TestAfterDetectsFallenOutOfWindow(t *testing.T) {
	l := New(2)
	l.Append(10, model.NewWriteSet(), overlap.AffectedKeys{})
	l.Append(20, model.NewWriteSet(), overlap.AffectedKeys{})
	l.Append(30, model.NewWriteSet(), overlap.AffectedKeys{})

	if _, inWindow := l.After(5); inWindow {
		t.Fatalf("expected since=5 to have fallen out of the retained window")
	}
}

func TestPendingFIFOOrder(t *testing.T) {
	p := NewPending()
	p.PushBack(&Staged{Ts: 1})
	p.PushBack(&Staged{Ts: 2})

	first, ok := p.PopFront()
	if !ok || first.Ts != 1 {
		t.Fatalf("expected ts=1 first, got %+v", first)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", p.Len())
	}
}
