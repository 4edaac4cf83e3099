package txn

import "github.com/kartikbazzad/reactorcore/internal/model"

// Final is the immutable record produced by Tx.Finalize: everything the
// committer needs to validate and apply the transaction.
type Final struct {
	BeginTs  model.Ts
	ReadSet  *model.ReadSet
	WriteSet *model.WriteSet
}
