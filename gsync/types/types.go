package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Facet identifies which game service an account or record belongs to.
type Facet string

const (
	Genshin        Facet = "genshin"
	StarRail       Facet = "starrail"
	WutheringWaves Facet = "wutheringwaves"
)

// Facets lists every supported facet in a stable order.
var Facets = []Facet{Genshin, StarRail, WutheringWaves}

// Paging describes how a facet's remote API walks one category.
type Paging int

const (
	// PagingCursor pages with an end_id resume cursor until an empty page.
	PagingCursor Paging = iota
	// PagingSnapshot returns the whole category history in one response.
	PagingSnapshot
)

// ParseFacet validates a facet name.
func ParseFacet(s string) (Facet, error) {
	for _, facet := range Facets {
		if string(facet) == s {
			return facet, nil
		}
	}
	return "", fmt.Errorf("unknown facet %q", s)
}

func (f Facet) String() string { return string(f) }

// Paging returns the pagination protocol spoken by the facet's API.
func (f Facet) Paging() Paging {
	if f == WutheringWaves {
		return PagingSnapshot
	}
	return PagingCursor
}

// UnmarshalText rejects unknown facets.
func (f *Facet) UnmarshalText(text []byte) error {
	facet, err := ParseFacet(string(text))
	if err != nil {
		return err
	}
	*f = facet
	return nil
}

// GachaURL is a candidate request url recovered from a local cache or log.
type GachaURL struct {
	Addr         *uint32   `json:"addr"`
	CreationTime time.Time `json:"creationTime"`
	Value        string    `json:"url"`
}

// AddrOrZero returns the cache address tag, zero when absent.
func (u GachaURL) AddrOrZero() uint32 {
	if u.Addr == nil {
		return 0
	}
	return *u.Addr
}

func (u GachaURL) String() string { return u.Value }

// RecordMeta carries the fields every record variant has in common.
type RecordMeta struct {
	Facet     Facet
	ID        string
	UID       string
	GachaType string
	Time      string
}

// Record is one gacha draw. The set of implementations is closed.
type Record interface {
	Meta() RecordMeta
	isRecord()
}

// GenshinRecord is a Genshin Impact getGachaLog list item.
type GenshinRecord struct {
	ID        string `json:"id"`
	UID       string `json:"uid"`
	GachaType string `json:"gacha_type"`
	ItemID    string `json:"item_id"`
	Count     string `json:"count"`
	Time      string `json:"time"`
	Name      string `json:"name"`
	Lang      string `json:"lang"`
	ItemType  string `json:"item_type"`
	RankType  string `json:"rank_type"`
}

func (r *GenshinRecord) Meta() RecordMeta {
	return RecordMeta{Facet: Genshin, ID: r.ID, UID: r.UID, GachaType: r.GachaType, Time: r.Time}
}

func (*GenshinRecord) isRecord() {}

// StarRailRecord is a Honkai: Star Rail getGachaLog list item.
type StarRailRecord struct {
	ID        string `json:"id"`
	UID       string `json:"uid"`
	GachaID   string `json:"gacha_id"`
	GachaType string `json:"gacha_type"`
	ItemID    string `json:"item_id"`
	Count     string `json:"count"`
	Time      string `json:"time"`
	Name      string `json:"name"`
	Lang      string `json:"lang"`
	ItemType  string `json:"item_type"`
	RankType  string `json:"rank_type"`
}

func (r *StarRailRecord) Meta() RecordMeta {
	return RecordMeta{Facet: StarRail, ID: r.ID, UID: r.UID, GachaType: r.GachaType, Time: r.Time}
}

func (*StarRailRecord) isRecord() {}

// WutheringWavesRecord is a Kuro record query item. ID, UID and GachaType
// are not sent by the server and are filled in by the fetcher.
type WutheringWavesRecord struct {
	ID           string `json:"id"`
	UID          string `json:"uid"`
	GachaType    string `json:"gachaType"`
	CardPoolType string `json:"cardPoolType"`
	ResourceID   int    `json:"resourceId"`
	QualityLevel int    `json:"qualityLevel"`
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
	Time         string `json:"time"`
}

func (r *WutheringWavesRecord) Meta() RecordMeta {
	return RecordMeta{Facet: WutheringWaves, ID: r.ID, UID: r.UID, GachaType: r.GachaType, Time: r.Time}
}

func (*WutheringWavesRecord) isRecord() {}

// RecordTimeLayout is the wall clock layout every gacha API uses for "time".
const RecordTimeLayout = "2006-01-02 15:04:05"

// NewRecord returns an empty record of the facet's variant, for decoding.
func NewRecord(facet Facet) (Record, error) {
	switch facet {
	case Genshin:
		return &GenshinRecord{}, nil
	case StarRail:
		return &StarRailRecord{}, nil
	case WutheringWaves:
		return &WutheringWavesRecord{}, nil
	default:
		return nil, fmt.Errorf("unknown facet %q", facet)
	}
}

// FragmentKind tags a pull progress fragment.
type FragmentKind string

const (
	FragmentSleeping   FragmentKind = "Sleeping"
	FragmentReady      FragmentKind = "Ready"
	FragmentPagination FragmentKind = "Pagination"
	FragmentData       FragmentKind = "Data"
	FragmentFinished   FragmentKind = "Finished"
)

// Fragment is one unit of pull progress. Only the field matching Kind is set.
type Fragment struct {
	Kind     FragmentKind
	Category string
	Page     int
	Records  []Record
}

func ReadyFragment(category string) Fragment {
	return Fragment{Kind: FragmentReady, Category: category}
}

func SleepingFragment() Fragment {
	return Fragment{Kind: FragmentSleeping}
}

func PaginationFragment(page int) Fragment {
	return Fragment{Kind: FragmentPagination, Page: page}
}

func DataFragment(records []Record) Fragment {
	return Fragment{Kind: FragmentData, Records: records}
}

func FinishedFragment() Fragment {
	return Fragment{Kind: FragmentFinished}
}

func (f Fragment) String() string {
	switch f.Kind {
	case FragmentReady:
		return "Ready(" + f.Category + ")"
	case FragmentPagination:
		return "Pagination(" + strconv.Itoa(f.Page) + ")"
	case FragmentData:
		return "Data(" + strconv.Itoa(len(f.Records)) + ")"
	default:
		return string(f.Kind)
	}
}

type fragmentJSON struct {
	Type  FragmentKind `json:"type"`
	Value any          `json:"value,omitempty"`
}

// MarshalJSON emits {"type": kind[, "value": payload]}.
func (f Fragment) MarshalJSON() ([]byte, error) {
	out := fragmentJSON{Type: f.Kind}
	switch f.Kind {
	case FragmentReady:
		out.Value = f.Category
	case FragmentPagination:
		out.Value = f.Page
	case FragmentData:
		records := f.Records
		if records == nil {
			records = []Record{}
		}
		out.Value = records
	case FragmentSleeping, FragmentFinished:
	default:
		return nil, fmt.Errorf("unknown fragment kind %q", f.Kind)
	}
	return json.Marshal(out)
}
