package persistence

import (
	"context"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

type memoryRecord struct {
	ts      model.Ts
	payload []byte
	crc     uint32
}

// MemoryDriver is an in-process append-only log (length is implicit since
// payloads are stored whole; CRC32 guards against accidental mutation of a
// "durable" record). Intended for tests and for running the engine without
// a configured disk path.
type MemoryDriver struct {
	mu      sync.Mutex
	records []memoryRecord
}

// NewMemoryDriver returns an empty MemoryDriver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{}
}

func (d *MemoryDriver) Append(_ context.Context, ts model.Ts, writes *model.WriteSet) error {
	payload, err := encodeWriteSet(ts, writes)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, memoryRecord{ts: ts, payload: payload, crc: crc32.ChecksumIEEE(payload)})
	return nil
}

func (d *MemoryDriver) LoadLatest(_ context.Context) (model.Ts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.records) == 0 {
		return 0, nil
	}
	return d.records[len(d.records)-1].ts, nil
}

func (d *MemoryDriver) Scan(_ context.Context, from model.Ts, fn func(model.Ts, *model.WriteSet) bool) error {
	d.mu.Lock()
	records := make([]memoryRecord, len(d.records))
	copy(records, d.records)
	d.mu.Unlock()

	for _, r := range records {
		if r.ts <= from {
			continue
		}
		if crc32.ChecksumIEEE(r.payload) != r.crc {
			return fmt.Errorf("persistence: corrupt record at ts=%d", r.ts)
		}
		ts, ws, err := decodeWriteSet(r.payload)
		if err != nil {
			return fmt.Errorf("persistence: decode record at ts=%d: %w", r.ts, err)
		}
		if !fn(ts, ws) {
			return nil
		}
	}
	return nil
}

func (d *MemoryDriver) Close() error { return nil }
