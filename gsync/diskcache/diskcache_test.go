package diskcache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longKey(n int) string {
	return "1/0/https://example.com/api?" + strings.Repeat("k", n-len("1/0/https://example.com/api?"))
}

func TestCacheAddr(t *testing.T) {
	addr := NewBlockAddr(Block1K, 2, 513, 3)

	assert.True(t, addr.IsInitialized())
	assert.True(t, addr.IsBlockFile())
	assert.Equal(t, Block1K, addr.FileType())
	assert.Equal(t, 2, addr.FileNumber())
	assert.Equal(t, 513, addr.StartBlock())
	assert.Equal(t, 3, addr.NumBlocks())
	assert.Equal(t, 1024, addr.BlockSize())

	var zero CacheAddr
	assert.False(t, zero.IsInitialized())
	assert.False(t, zero.IsBlockFile())

	external := CacheAddr(0x80000000 | 0x00abcdef)
	assert.True(t, external.IsSeparateFile())
	assert.Equal(t, 0x00abcdef, external.FileNumber())
}

func TestCacheTimeConversion(t *testing.T) {
	assert.True(t, FromCacheTime(uint64(windowsEpochDelta)*1_000_000).Equal(time.Unix(0, 0)))

	now := time.Date(2024, 5, 26, 15, 30, 0, 123000, time.UTC)
	assert.True(t, FromCacheTime(ToCacheTime(now)).Equal(now))
}

func TestIndexFile(t *testing.T) {
	index, _, _, err := NewBuilder(8).AddKey("short", time.Now()).Build()
	require.NoError(t, err)
	buf, err := index.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, IndexHeaderLength+8*4)

	t.Run("round trip", func(t *testing.T) {
		parsed, err := ParseIndexFile("index", buf)
		require.NoError(t, err)
		assert.Equal(t, index.Header, parsed.Header)
		assert.Equal(t, index.Table, parsed.Table)

		again, err := parsed.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, buf, again)
	})

	t.Run("bad magic", func(t *testing.T) {
		corrupt := append([]byte(nil), buf...)
		corrupt[0] ^= 0xff
		_, err := ParseIndexFile("index", corrupt)
		assert.True(t, errors.Is(err, ErrFormat))
	})

	t.Run("bad version", func(t *testing.T) {
		corrupt := append([]byte(nil), buf...)
		corrupt[indexVersionOffset+2] = 9
		_, err := ParseIndexFile("index", corrupt)
		assert.True(t, errors.Is(err, ErrFormat))
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := ParseIndexFile("index", buf[:100])
		assert.True(t, errors.Is(err, ErrFormat))
	})

	t.Run("truncated table", func(t *testing.T) {
		_, err := ParseIndexFile("index", buf[:len(buf)-2])
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, "index", formatErr.File)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadIndexFile(filepath.Join(t.TempDir(), "index"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestBlockFileRead(t *testing.T) {
	_, entries, longKeys, err := NewBuilder(8).
		AddKey("short", time.Now()).
		AddKey(longKey(2000), time.Now()).
		Build()
	require.NoError(t, err)

	raw, err := entries.Read(NewBlockAddr(Block256, 1, 0, 1))
	require.NoError(t, err)
	assert.Len(t, raw, EntryStoreLength)

	tests := []struct {
		name string
		bf   *BlockFile
		addr CacheAddr
	}{
		{"absent", entries, 0},
		{"separate file", entries, CacheAddr(0x80000001)},
		{"wrong file number", entries, NewBlockAddr(Block256, 3, 0, 1)},
		{"wrong block size", entries, NewBlockAddr(Block1K, 1, 0, 1)},
		{"beyond max entries", entries, NewBlockAddr(Block256, 1, 1, 2)},
		{"beyond file bounds", longKeys, NewBlockAddr(Block1K, 2, 500, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.bf.Read(tt.addr)
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

func TestParseBlockFile(t *testing.T) {
	_, entries, _, err := NewBuilder(8).AddKey("short", time.Now()).Build()
	require.NoError(t, err)
	buf, err := entries.MarshalBinary()
	require.NoError(t, err)

	parsed, err := ParseBlockFile("data_1", buf)
	require.NoError(t, err)
	assert.Equal(t, entries.Header, parsed.Header)
	assert.Equal(t, len(buf), parsed.Len())

	corrupt := append([]byte(nil), buf...)
	corrupt[blockMagicOffset] = 0
	_, err = ParseBlockFile("data_1", corrupt)
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = ParseBlockFile("data_1", buf[:BlockHeaderLength-1])
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestEntryStoreRoundTrip(t *testing.T) {
	builder := NewBuilder(4)
	for _, key := range []string{"a", strings.Repeat("b", 300), strings.Repeat("c", MaxInternalKeyLength), longKey(3000)} {
		builder.AddKey(key, time.Now())
	}
	index, entries, _, err := builder.Build()
	require.NoError(t, err)

	seen := 0
	for _, head := range index.Table {
		for addr := head; addr.IsInitialized(); {
			raw, err := entries.Read(addr)
			require.NoError(t, err)

			entry, err := ReadEntryStore(entries, addr)
			require.NoError(t, err)

			encoded, err := entry.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, raw, encoded, "entry at %s", addr)

			seen++
			addr = entry.Next
		}
	}
	assert.Equal(t, 4, seen)
}

func TestEntryStoreKeys(t *testing.T) {
	created := time.Date(2024, 5, 26, 8, 0, 0, 0, time.UTC)
	inline := strings.Repeat("i", MaxInternalKeyLength)
	long := longKey(MaxInternalKeyLength + 1)

	index, entries, longKeys, err := NewBuilder(1).AddKey(inline, created).AddKey(long, created).Build()
	require.NoError(t, err)

	first, err := ReadEntryStore(entries, index.Table[0])
	require.NoError(t, err)
	assert.False(t, first.IsLongURL())
	key, err := first.InlineKey()
	require.NoError(t, err)
	assert.Equal(t, inline, key)
	_, err = first.ReadLongURL(longKeys)
	assert.True(t, errors.Is(err, ErrFormat))

	// Both keys hash into the single slot, the second one is chained
	second, err := ReadEntryStore(entries, first.Next)
	require.NoError(t, err)
	assert.True(t, second.IsLongURL())
	assert.True(t, second.CreatedAt().Equal(created))
	url, err := second.ReadLongURL(longKeys)
	require.NoError(t, err)
	assert.Equal(t, long, url)
	_, err = second.InlineKey()
	assert.Error(t, err)

	t.Run("out of range long key", func(t *testing.T) {
		broken := *second
		broken.LongKey = NewBlockAddr(Block1K, 2, 4000, 1)
		_, err := broken.ReadLongURL(longKeys)
		assert.True(t, errors.Is(err, ErrFormat))
	})

	t.Run("uninitialized long key", func(t *testing.T) {
		broken := *second
		broken.LongKey = 0
		_, err := broken.ReadLongURL(longKeys)
		assert.True(t, errors.Is(err, ErrFormat))
	})
}

func TestBuilderRejectsOversizedKey(t *testing.T) {
	_, _, _, err := NewBuilder(1).AddKey(strings.Repeat("x", 5000), time.Now()).Build()
	assert.Error(t, err)
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Cache_Data")
	require.NoError(t, NewBuilder(16).AddKey(longKey(1500), time.Now()).WriteDir(dir))

	index, err := ReadIndexFile(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	assert.Len(t, index.Table, 16)
	assert.EqualValues(t, 1, index.Header.NumEntries)

	entries, err := ReadBlockFile(filepath.Join(dir, EntriesFileName))
	require.NoError(t, err)
	assert.EqualValues(t, 1, entries.Header.ThisFile)

	longKeys, err := ReadBlockFile(filepath.Join(dir, LongKeysFileName))
	require.NoError(t, err)
	assert.EqualValues(t, 2, longKeys.Header.ThisFile)
	assert.EqualValues(t, 1024, longKeys.Header.EntrySize)
}
