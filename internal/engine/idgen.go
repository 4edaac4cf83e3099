package engine

import (
	"sync/atomic"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// atomicIDAllocator issues document ids from a simple monotonic counter.
// There is no broader critical section to share a mutex with here, so a
// plain sync/atomic counter suffices.
type atomicIDAllocator struct {
	next atomic.Uint64
}

func newIDAllocator(seed model.DocID) *atomicIDAllocator {
	a := &atomicIDAllocator{}
	a.next.Store(uint64(seed))
	return a
}

func (a *atomicIDAllocator) Next() model.DocID {
	return model.DocID(a.next.Add(1))
}
