package urlfinder

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/diskcache"
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// GachaTypeMarker must appear in a cached url next to the endpoint.
const GachaTypeMarker = "&gacha_type="

// cacheKeyPrefix is prepended by the embedded browser to every cache key.
const cacheKeyPrefix = "1/0/"

// ExtractGachaURLs scans the blockfile cache in cacheDataDir and returns
// every long key url that contains both endpoint and marker, most recent
// first. Failing to open index, data_1 or data_2 is fatal; malformed
// entries are skipped.
func ExtractGachaURLs(logger zerolog.Logger, cacheDataDir, endpoint, marker string) ([]types.GachaURL, error) {
	index, err := diskcache.ReadIndexFile(filepath.Join(cacheDataDir, diskcache.IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	entries, err := diskcache.ReadBlockFile(filepath.Join(cacheDataDir, diskcache.EntriesFileName))
	if err != nil {
		return nil, fmt.Errorf("open cache entries: %w", err)
	}
	longKeys, err := diskcache.ReadBlockFile(filepath.Join(cacheDataDir, diskcache.LongKeysFileName))
	if err != nil {
		return nil, fmt.Errorf("open cache long keys: %w", err)
	}

	var (
		result  []types.GachaURL
		skipped int
		visited = roaring.New()
	)
	for slot, head := range index.Table {
		for addr := head; addr.IsInitialized(); {
			if visited.Contains(uint32(addr)) {
				break
			}
			visited.Add(uint32(addr))

			entry, err := diskcache.ReadEntryStore(entries, addr)
			if err != nil {
				skipped++
				logger.Warn().Err(err).Int("slot", slot).Stringer("addr", addr).Msg("skipping unreadable cache entry")
				break
			}

			url, ok, err := matchEntry(entry, longKeys, endpoint, marker)
			if err != nil {
				skipped++
				logger.Warn().Err(err).Stringer("addr", addr).Stringer("longKey", entry.LongKey).Msg("skipping unreadable long key")
			} else if ok {
				tag := uint32(addr)
				result = append(result, types.GachaURL{
					Addr:         &tag,
					CreationTime: entry.CreatedAt().Local(),
					Value:        url,
				})
			}
			addr = entry.Next
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreationTime.After(result[j].CreationTime)
	})

	logger.Debug().
		Str("dir", cacheDataDir).
		Int("urls", len(result)).
		Int("skipped", skipped).
		Uint64("visited", visited.GetCardinality()).
		Msg("extracted gacha urls from disk cache")

	return result, nil
}

// matchEntry returns the url of entry with the cache key prefix removed
// when it is a long key containing both endpoint and marker.
func matchEntry(entry *diskcache.EntryStore, longKeys *diskcache.BlockFile, endpoint, marker string) (string, bool, error) {
	if !entry.IsLongURL() {
		return "", false, nil
	}

	url, err := entry.ReadLongURL(longKeys)
	if err != nil {
		return "", false, err
	}
	if !strings.Contains(url, endpoint) || !strings.Contains(url, marker) {
		return "", false, nil
	}

	return strings.TrimPrefix(url, cacheKeyPrefix), true, nil
}
