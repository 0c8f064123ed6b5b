package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/puller"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

func genshin(id, uid, gachaType, time string) *types.GenshinRecord {
	return &types.GenshinRecord{ID: id, UID: uid, GachaType: gachaType, Time: time, Name: "Kamisato Ayaka", ItemID: "10000002", Count: "1", Lang: "en-us", RankType: "5"}
}

func wuwa(id, uid, gachaType, time string) *types.WutheringWavesRecord {
	return &types.WutheringWavesRecord{ID: id, UID: uid, GachaType: gachaType, Time: time, Name: "Jiyan", ResourceID: 1404, QualityLevel: 5, Count: 1}
}

func fixtureRecords() []types.Record {
	return []types.Record{
		genshin("1700000000000000001", "800000001", "301", "2024-05-26 10:00:00"),
		genshin("1700000000000000002", "800000001", "301", "2024-05-26 10:00:01"),
		genshin("1700000000000000003", "800000001", "200", "2024-05-26 11:00:00"),
		genshin("1700000000000000004", "800000002", "301", "2024-05-26 12:00:00"),
		wuwa("202405261000000000", "700000001", "1", "2024-05-26 10:00:00"),
		wuwa("202405260900000000", "700000001", "1", "2024-05-26 09:00:00"),
	}
}

// RecordStoreSuite runs the same behaviour checks against every store.
type RecordStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) RecordStore
	store    RecordStore
	ctx      context.Context
}

func (s *RecordStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *RecordStoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *RecordStoreSuite) TestSaveRecordsSkipsDuplicates() {
	inserted, err := s.store.SaveRecords(s.ctx, fixtureRecords())
	s.Require().NoError(err)
	s.EqualValues(6, inserted)

	inserted, err = s.store.SaveRecords(s.ctx, fixtureRecords()[:3])
	s.Require().NoError(err)
	s.EqualValues(0, inserted)

	inserted, err = s.store.SaveRecords(s.ctx, nil)
	s.Require().NoError(err)
	s.EqualValues(0, inserted)
}

func (s *RecordStoreSuite) TestFindRecords() {
	_, err := s.store.SaveRecords(s.ctx, fixtureRecords())
	s.Require().NoError(err)

	records, err := s.store.FindRecords(s.ctx, types.Genshin, "800000001", Filter{})
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("1700000000000000003", records[0].Meta().ID)
	s.Equal("1700000000000000001", records[2].Meta().ID)

	first, ok := records[0].(*types.GenshinRecord)
	s.Require().True(ok)
	s.Equal(genshin("1700000000000000003", "800000001", "200", "2024-05-26 11:00:00"), first)

	records, err = s.store.FindRecords(s.ctx, types.Genshin, "800000001", Filter{GachaTypes: []string{"301"}})
	s.Require().NoError(err)
	s.Len(records, 2)

	records, err = s.store.FindRecords(s.ctx, types.Genshin, "800000001", Filter{Since: "2024-05-26 10:00:01", Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("1700000000000000003", records[0].Meta().ID)

	records, err = s.store.FindRecords(s.ctx, types.WutheringWaves, "700000001", Filter{})
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(1404, records[0].(*types.WutheringWavesRecord).ResourceID)

	records, err = s.store.FindRecords(s.ctx, types.StarRail, "800000001", Filter{})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *RecordStoreSuite) TestLastCursors() {
	_, err := s.store.SaveRecords(s.ctx, fixtureRecords())
	s.Require().NoError(err)

	cursors, err := s.store.LastCursors(s.ctx, types.Genshin, "800000001")
	s.Require().NoError(err)
	s.Equal(map[string]string{"301": "1700000000000000002", "200": "1700000000000000003"}, cursors)

	// Snapshot paged facets resume from the record time
	cursors, err = s.store.LastCursors(s.ctx, types.WutheringWaves, "700000001")
	s.Require().NoError(err)
	s.Equal(map[string]string{"1": "2024-05-26 10:00:00"}, cursors)

	cursors, err = s.store.LastCursors(s.ctx, types.Genshin, "nobody")
	s.Require().NoError(err)
	s.Empty(cursors)
}

func (s *RecordStoreSuite) TestLastCursorsFoldsCharacterEventTwo() {
	_, err := s.store.SaveRecords(s.ctx, []types.Record{
		genshin("1700000000000000001", "800000001", "301", "2024-05-26 10:00:00"),
		genshin("1700000000000000002", "800000001", "400", "2024-05-26 10:00:01"),
		genshin("1700000000000000005", "800000003", "400", "2024-05-26 10:00:02"),
	})
	s.Require().NoError(err)

	cursors, err := s.store.LastCursors(s.ctx, types.Genshin, "800000001")
	s.Require().NoError(err)
	s.Equal(map[string]string{"301": "1700000000000000002"}, cursors)

	// An account with only 400 records still resumes its 301 pull
	cursors, err = s.store.LastCursors(s.ctx, types.Genshin, "800000003")
	s.Require().NoError(err)
	s.Equal(map[string]string{"301": "1700000000000000005"}, cursors)
}

func (s *RecordStoreSuite) TestLastCursorsKeepsRecordTimeLayout() {
	_, err := s.store.SaveRecords(s.ctx, []types.Record{
		wuwa("202405261000000000", "700000001", "1", "2024-05-26 10:00:00"),
	})
	s.Require().NoError(err)

	cursors, err := s.store.LastCursors(s.ctx, types.WutheringWaves, "700000001")
	s.Require().NoError(err)
	s.Require().Equal(map[string]string{"1": "2024-05-26 10:00:00"}, cursors)

	newer := []types.Record{wuwa("202405261100000000", "700000001", "1", "2024-05-26 11:00:00")}
	s.Len(puller.TrimByTime(newer, cursors["1"]), 1)
}

func (s *RecordStoreSuite) TestSameIDInDifferentCategories() {
	inserted, err := s.store.SaveRecords(s.ctx, []types.Record{
		wuwa("202405261000000000", "700000001", "6", "2024-05-26 10:00:00"),
		wuwa("202405261000000000", "700000001", "7", "2024-05-26 10:00:00"),
	})
	s.Require().NoError(err)
	s.EqualValues(2, inserted)

	records, err := s.store.FindRecords(s.ctx, types.WutheringWaves, "700000001", Filter{})
	s.Require().NoError(err)
	s.Len(records, 2)
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "301", CategoryOf(types.Genshin, "400"))
	assert.Equal(t, "301", CategoryOf(types.Genshin, "301"))
	assert.Equal(t, "400", CategoryOf(types.StarRail, "400"))
}

func TestCursorText(t *testing.T) {
	assert.Equal(t, "2024-05-26 10:00:00", cursorText("2024-05-26T10:00:00Z"))
	assert.Equal(t, "2024-05-26 10:00:00", cursorText(time.Date(2024, 5, 26, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-26 10:00:00", cursorText([]byte("2024-05-26 10:00:00")))
	assert.Equal(t, "1700000000000000002", cursorText("1700000000000000002"))
	assert.Equal(t, "1700000000000000002", cursorText(int64(1700000000000000002)))
	assert.Equal(t, "", cursorText(nil))
}

func TestMockRecordStore(t *testing.T) {
	suite.Run(t, &RecordStoreSuite{newStore: func(*testing.T) RecordStore { return NewMockRecordStore() }})
}

func TestLibSQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("libsql integration test")
	}
	suite.Run(t, &RecordStoreSuite{newStore: func(t *testing.T) RecordStore {
		dsn := "file:" + filepath.Join(t.TempDir(), "gacha.db")
		store, err := NewLibSQLStore(context.Background(), zerolog.Nop(), dsn)
		require.NoError(t, err)
		return store
	}})
}

func TestMockRecordStoreClosed(t *testing.T) {
	store := NewMockRecordStore()
	require.NoError(t, store.Close())

	_, err := store.SaveRecords(context.Background(), fixtureRecords())
	assert.Error(t, err)
	_, err = store.LastCursors(context.Background(), types.Genshin, "800000001")
	assert.Error(t, err)
}

func TestCursorOf(t *testing.T) {
	assert.Equal(t, "1700000000000000001", CursorOf(genshin("1700000000000000001", "1", "301", "2024-05-26 10:00:00")))
	assert.Equal(t, "2024-05-26 10:00:00", CursorOf(wuwa("202405261000000000", "1", "1", "2024-05-26 10:00:00")))
}
