package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentJSON(t *testing.T) {
	tests := []struct {
		name     string
		fragment Fragment
		want     string
	}{
		{"sleeping", SleepingFragment(), `{"type":"Sleeping"}`},
		{"ready", ReadyFragment("301"), `{"type":"Ready","value":"301"}`},
		{"pagination", PaginationFragment(4), `{"type":"Pagination","value":4}`},
		{"finished", FinishedFragment(), `{"type":"Finished"}`},
		{"empty data", DataFragment(nil), `{"type":"Data","value":[]}`},
		{
			"data",
			DataFragment([]Record{&GenshinRecord{ID: "1", UID: "800000001", GachaType: "301"}}),
			`{"type":"Data","value":[{"id":"1","uid":"800000001","gacha_type":"301","item_id":"","count":"","time":"","name":"","lang":"","item_type":"","rank_type":""}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.fragment)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestFragmentUnknownKind(t *testing.T) {
	_, err := json.Marshal(Fragment{Kind: "Bogus"})
	assert.Error(t, err)
}

func TestFacet(t *testing.T) {
	facet, err := ParseFacet("starrail")
	require.NoError(t, err)
	assert.Equal(t, StarRail, facet)
	assert.Equal(t, PagingCursor, facet.Paging())
	assert.Equal(t, PagingSnapshot, WutheringWaves.Paging())

	_, err = ParseFacet("honkai3")
	assert.Error(t, err)

	var decoded struct {
		Facet Facet `json:"facet"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"facet":"genshin"}`), &decoded))
	assert.Equal(t, Genshin, decoded.Facet)
	assert.Error(t, json.Unmarshal([]byte(`{"facet":"nope"}`), &decoded))
}

func TestRecordMeta(t *testing.T) {
	for _, facet := range Facets {
		record, err := NewRecord(facet)
		require.NoError(t, err)
		assert.Equal(t, facet, record.Meta().Facet)
	}

	meta := (&WutheringWavesRecord{ID: "202405261530000001", UID: "100", GachaType: "1", Time: "2024-05-26 15:30:00"}).Meta()
	assert.Equal(t, "202405261530000001", meta.ID)
	assert.Equal(t, "1", meta.GachaType)
}

func TestGachaURLAddr(t *testing.T) {
	assert.Zero(t, GachaURL{}.AddrOrZero())
	addr := uint32(0xA0010003)
	assert.Equal(t, addr, GachaURL{Addr: &addr}.AddrOrZero())
}
