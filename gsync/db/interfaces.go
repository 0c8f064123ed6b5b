package db

import (
	"context"
	"strconv"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// Filter narrows FindRecords. Zero values match everything.
type Filter struct {
	GachaTypes []string
	// Since keeps records whose time is at or after it, in RecordTimeLayout.
	Since string
	Limit int
}

// RecordStore persists pulled gacha records.
type RecordStore interface {
	// SaveRecords inserts records, skipping those already stored, and
	// returns how many were new.
	SaveRecords(ctx context.Context, records []types.Record) (int64, error)
	// FindRecords returns the records of an account, newest first.
	FindRecords(ctx context.Context, facet types.Facet, uid string, filter Filter) ([]types.Record, error)
	// LastCursors maps each pulled category of an account to its newest
	// cursor, the resume point of the next pull. Genshin 400 records are
	// folded into 301, the category that returns them.
	LastCursors(ctx context.Context, facet types.Facet, uid string) (map[string]string, error)
	Close() error
}

// CursorOf returns the value a pull resumes from: the record time for
// snapshot paged facets, the record id otherwise.
func CursorOf(record types.Record) string {
	meta := record.Meta()
	if meta.Facet.Paging() == types.PagingSnapshot {
		return meta.Time
	}
	return meta.ID
}

// GenshinCharacterGachaType is the category whose pages also carry
// GenshinCharacterGachaType2 records.
const (
	GenshinCharacterGachaType  = "301"
	GenshinCharacterGachaType2 = "400"
)

// CategoryOf returns the pulled category a stored gacha type belongs to.
func CategoryOf(facet types.Facet, gachaType string) string {
	if facet == types.Genshin && gachaType == GenshinCharacterGachaType2 {
		return GenshinCharacterGachaType
	}
	return gachaType
}

// mergeCursor keeps the greatest cursor seen for the category of gachaType.
func mergeCursor(cursors map[string]string, facet types.Facet, gachaType, cursor string) {
	category := CategoryOf(facet, gachaType)
	if current, ok := cursors[category]; !ok || cursor > current {
		cursors[category] = cursor
	}
}

// itemOf returns the item id and display name of record.
func itemOf(record types.Record) (itemID, name string) {
	switch r := record.(type) {
	case *types.GenshinRecord:
		return r.ItemID, r.Name
	case *types.StarRailRecord:
		return r.ItemID, r.Name
	case *types.WutheringWavesRecord:
		if r.ResourceID == 0 {
			return "", r.Name
		}
		return strconv.Itoa(r.ResourceID), r.Name
	default:
		return "", ""
	}
}
