package overlap

import (
	"testing"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

func TestCheckDetectsPointInsideRangeRead(t *testing.T) {
	rs := model.NewReadSet()
	rs.Record("by_status", model.Interval{Lo: model.IndexKey("a"), Hi: model.IndexKey("z")})

	affected := AffectedKeys{"by_status": {model.IndexKey("m")}}
	conflict, hits := Check(rs, affected)
	if !conflict || len(hits) != 1 {
		t.Fatalf("expected conflict on key inside range, got conflict=%v hits=%v", conflict, hits)
	}
}

func TestCheckIgnoresKeyOutsideRange(t *testing.T) {
	rs := model.NewReadSet()
	rs.Record("by_status", model.Interval{Lo: model.IndexKey("a"), Hi: model.IndexKey("m")})

	affected := AffectedKeys{"by_status": {model.IndexKey("z")}}
	if conflict, _ := Check(rs, affected); conflict {
		t.Fatalf("expected no conflict for key outside recorded range")
	}
}

func TestCheckIgnoresUnrelatedIndex(t *testing.T) {
	rs := model.NewReadSet()
	rs.Record("primary", model.Interval{Lo: model.IndexKey("a"), Hi: model.IndexKey("z")})

	affected := AffectedKeys{"by_status": {model.IndexKey("m")}}
	if conflict, _ := Check(rs, affected); conflict {
		t.Fatalf("expected no conflict when write only touches an index never read")
	}
}

func TestCheckAnyMatchesCheck(t *testing.T) {
	rs := model.NewReadSet()
	rs.Record("primary", model.Interval{Lo: model.IndexKey("a"), Hi: model.IndexKey("z")})
	affected := AffectedKeys{"primary": {model.IndexKey("m")}}
	if !CheckAny(rs, affected) {
		t.Fatalf("expected CheckAny to detect the same conflict as Check")
	}
}
