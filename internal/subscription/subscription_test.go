package subscription

import (
	"testing"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
	"github.com/kartikbazzad/reactorcore/internal/writelog"
)

func TestRegisterFiresOnOverlappingCommit(t *testing.T) {
	m := New(writelog.New(0))
	rs := model.NewReadSet()
	rs.Record("docs:primary", model.PointInterval(model.EncodeUint64(1)))
	id, ch, err := m.Register(rs, 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	m.OnCommit(10, overlap.AffectedKeys{"docs:primary": {model.IndexKey(model.EncodeUint64(1))}})

	select {
	case ev := <-ch:
		if ev.ID != id || ev.Ts != 10 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected invalidation event")
	}

	if m.Count() != 0 {
		t.Fatalf("expected token retired after firing, count=%d", m.Count())
	}
}

func TestRegisterIgnoresDisjointCommit(t *testing.T) {
	m := New(writelog.New(0))
	rs := model.NewReadSet()
	rs.Record("docs:primary", model.PointInterval(model.EncodeUint64(1)))
	_, ch, err := m.Register(rs, 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	m.OnCommit(10, overlap.AffectedKeys{"docs:primary": {model.IndexKey(model.EncodeUint64(2))}})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for disjoint commit: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if m.Count() != 1 {
		t.Fatalf("expected token to remain registered, count=%d", m.Count())
	}
}

func TestUnsubscribeRetiresToken(t *testing.T) {
	m := New(writelog.New(0))
	id, _, err := m.Register(model.NewReadSet(), 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	m.Unsubscribe(id)
	if m.Count() != 0 {
		t.Fatalf("expected 0 tokens after unsubscribe, got %d", m.Count())
	}
}

// TestRegisterReplaysCommitsSinceValidity covers the registration-gap
// consistency check: a commit published after the read set's validity
// timestamp but before Register runs must still be observed, by firing the
// token immediately instead of installing it to wait for a future commit
// that will never come.
func TestRegisterReplaysCommitsSinceValidity(t *testing.T) {
	log := writelog.New(16)
	m := New(log)
	rs := model.NewReadSet()
	rs.Record("docs:primary", model.PointInterval(model.EncodeUint64(1)))

	log.Append(5, model.NewWriteSet(), overlap.AffectedKeys{"docs:primary": {model.IndexKey(model.EncodeUint64(1))}})

	id, ch, err := m.Register(rs, 4)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.ID != id || ev.Ts != 5 {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected immediate invalidation from replayed commit")
	}
	if m.Count() != 0 {
		t.Fatalf("expected no token installed when replay already invalidates it, count=%d", m.Count())
	}
}

// TestRegisterRejectsValidityBelowRetention covers Register's retention
// check: a validity timestamp that has already fallen out of the write
// log's window can't be safely replayed, so Register must fail rather than
// silently skip the consistency check.
func TestRegisterRejectsValidityBelowRetention(t *testing.T) {
	log := writelog.New(2)
	m := New(log)
	log.Append(1, model.NewWriteSet(), overlap.AffectedKeys{})
	log.Append(2, model.NewWriteSet(), overlap.AffectedKeys{})
	log.Append(3, model.NewWriteSet(), overlap.AffectedKeys{})

	_, _, err := m.Register(model.NewReadSet(), 0)
	if err == nil {
		t.Fatalf("expected SnapshotTooOld for a validity ts below the retained window")
	}
}
