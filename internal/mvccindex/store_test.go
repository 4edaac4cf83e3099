package mvccindex

import "testing"

func TestHorizonPinnedByOldestOpenTx(t *testing.T) {
	s := NewStore()
	s.AcquireBeginTs(5)
	s.AcquireBeginTs(8)

	if got := s.Horizon(100); got != 5 {
		t.Fatalf("expected horizon pinned at 5, got %d", got)
	}

	s.ReleaseBeginTs(5)
	if got := s.Horizon(100); got != 8 {
		t.Fatalf("expected horizon to advance to 8 after release, got %d", got)
	}

	s.ReleaseBeginTs(8)
	if got := s.Horizon(100); got != 100 {
		t.Fatalf("expected horizon to track latest commit with no open tx, got %d", got)
	}
}

func TestIndexIsCreatedLazilyAndShared(t *testing.T) {
	s := NewStore()
	a := s.Index("docs", "primary")
	b := s.Index("docs", "primary")
	if a != b {
		t.Fatalf("expected Index to return the same instance for repeated lookups")
	}
	c := s.Index("docs", "by_status")
	if a == c {
		t.Fatalf("expected distinct indexes for distinct names")
	}
}
