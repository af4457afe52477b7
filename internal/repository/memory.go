package repository

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// MemoryRecords is an in-process RecordRepository. Writers for the same
// natural key are serialized by a per-key lock.
type MemoryRecords struct {
	tax *taxonomy.Taxonomy

	mu    sync.RWMutex
	recs  map[string]*entity.StatementRecord
	locks map[string]*sync.Mutex
}

func NewMemoryRecords(tax *taxonomy.Taxonomy) *MemoryRecords {
	return &MemoryRecords{
		tax:   tax,
		recs:  map[string]*entity.StatementRecord{},
		locks: map[string]*sync.Mutex{},
	}
}

func (m *MemoryRecords) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *MemoryRecords) Upsert(ctx context.Context, rec *entity.StatementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRecord(m.tax, rec); err != nil {
		return err
	}
	key := rec.Key().String()
	l := m.keyLock(key)
	l.Lock()
	defer l.Unlock()

	c := cloneRecord(rec)
	m.mu.Lock()
	m.recs[key] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecords) Get(ctx context.Context, documentKey string, st constants.StatementType, periodKey string) (*entity.StatementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := entity.NaturalKey{DocumentKey: documentKey, Type: st, PeriodKey: periodKey}
	m.mu.RLock()
	rec, ok := m.recs[k.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, notFoundRecord(k)
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRecords) ListByDocument(ctx context.Context, documentKey string) ([]*entity.StatementRecord, error) {
	return m.List(ctx, RecordFilter{DocumentKey: documentKey})
}

func (m *MemoryRecords) List(ctx context.Context, filter RecordFilter) ([]*entity.StatementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*entity.StatementRecord
	for _, rec := range m.recs {
		if filter.match(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	m.mu.RUnlock()
	sortRecords(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len reports how many records are stored.
func (m *MemoryRecords) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}
