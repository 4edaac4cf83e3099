package persistence

import (
	"encoding/json"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// wireUpdate mirrors model.Update in a JSON-friendly shape; model.DocID and
// model.UpdateKind are unexported-free but the Update fields aren't tagged,
// so the wire format is defined here rather than on the model type itself.
type wireUpdate struct {
	ID    model.DocID     `json:"id"`
	Kind  model.UpdateKind `json:"kind"`
	Table string          `json:"table"`
	Value []byte          `json:"value,omitempty"`
}

type wireRecord struct {
	Ts      model.Ts     `json:"ts"`
	Updates []wireUpdate `json:"updates"`
}

func encodeWriteSet(ts model.Ts, ws *model.WriteSet) ([]byte, error) {
	rec := wireRecord{Ts: ts}
	ws.ForEach(func(id model.DocID, u model.Update) {
		rec.Updates = append(rec.Updates, wireUpdate{ID: id, Kind: u.Kind, Table: u.Table, Value: u.Value})
	})
	return json.Marshal(rec)
}

func decodeWriteSet(payload []byte) (model.Ts, *model.WriteSet, error) {
	var rec wireRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return 0, nil, err
	}
	ws := model.NewWriteSet()
	for _, u := range rec.Updates {
		ws.Put(u.ID, model.Update{Kind: u.Kind, Table: u.Table, Value: u.Value})
	}
	return rec.Ts, ws, nil
}
