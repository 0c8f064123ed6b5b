package db

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// MockRecordStore is an in-memory RecordStore.
type MockRecordStore struct {
	mu      sync.Mutex
	records map[string]types.Record
	closed  bool

	// SaveErr is returned by SaveRecords when set.
	SaveErr error
}

func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{records: make(map[string]types.Record)}
}

var errStoreClosed = errors.New("record store is closed")

func recordKey(meta types.RecordMeta) string {
	return string(meta.Facet) + "|" + meta.UID + "|" + meta.GachaType + "|" + meta.ID
}

func (m *MockRecordStore) SaveRecords(_ context.Context, records []types.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errStoreClosed
	}
	if m.SaveErr != nil {
		return 0, m.SaveErr
	}

	var inserted int64
	for _, record := range records {
		key := recordKey(record.Meta())
		if _, exists := m.records[key]; exists {
			continue
		}
		m.records[key] = record
		inserted++
	}
	return inserted, nil
}

func (m *MockRecordStore) FindRecords(_ context.Context, facet types.Facet, uid string, filter Filter) ([]types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errStoreClosed
	}

	gachaTypes := make(map[string]struct{}, len(filter.GachaTypes))
	for _, gachaType := range filter.GachaTypes {
		gachaTypes[gachaType] = struct{}{}
	}

	var found []types.Record
	for _, record := range m.records {
		meta := record.Meta()
		if meta.Facet != facet || meta.UID != uid {
			continue
		}
		if _, ok := gachaTypes[meta.GachaType]; len(gachaTypes) > 0 && !ok {
			continue
		}
		if filter.Since != "" && meta.Time < filter.Since {
			continue
		}
		found = append(found, record)
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i].Meta(), found[j].Meta()
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.ID > b.ID
	})
	if filter.Limit > 0 && len(found) > filter.Limit {
		found = found[:filter.Limit]
	}
	return found, nil
}

func (m *MockRecordStore) LastCursors(_ context.Context, facet types.Facet, uid string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errStoreClosed
	}

	cursors := make(map[string]string)
	for _, record := range m.records {
		meta := record.Meta()
		if meta.Facet != facet || meta.UID != uid {
			continue
		}
		mergeCursor(cursors, facet, meta.GachaType, CursorOf(record))
	}
	return cursors, nil
}

// Len returns how many records are stored.
func (m *MockRecordStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MockRecordStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
