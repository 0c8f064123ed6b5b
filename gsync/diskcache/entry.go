package diskcache

import (
	"encoding/binary"
	"time"
)

// EntryStoreLength - Length of the first block of an entry record
const EntryStoreLength = 256

// MaxInternalKeyLength - Longest key kept inline across the entry's blocks.
// Longer keys are stored through EntryStore.LongKey.
const MaxInternalKeyLength = MaxBlocksPerAddr*EntryStoreLength - entryKeyOffset - 1

// windowsEpochDelta - Seconds between 1601-01-01 and 1970-01-01 (UTC)
const windowsEpochDelta int64 = 11_644_473_600

const (
	entryHashOffset         = 0
	entryNextOffset         = 4
	entryRankingsOffset     = 8
	entryReuseCountOffset   = 12
	entryRefetchCountOffset = 16
	entryStateOffset        = 20
	entryCreationTimeOffset = 24
	entryKeyLenOffset       = 32
	entryLongKeyOffset      = 36
	entryDataSizeOffset     = 40
	entryDataAddrOffset     = 56
	entryFlagsOffset        = 72
	entryPadOffset          = 76
	entrySelfHashOffset     = 92
	entryKeyOffset          = 96
)

// EntryStore - Represents one decoded cache entry record
type EntryStore struct {
	Hash         uint32
	Next         CacheAddr
	RankingsNode CacheAddr
	ReuseCount   int32
	RefetchCount int32
	State        int32
	// CreationTime is microseconds since 1601-01-01 UTC
	CreationTime uint64
	KeyLen       int32
	LongKey      CacheAddr
	DataSize     [4]int32
	DataAddr     [4]CacheAddr
	Flags        uint32
	Pad          [4]int32
	SelfHash     uint32
	// Key holds the whole inline key area, including unused tail bytes
	Key []byte
}

// ReadEntryStore decodes the entry addr points to inside bf.
func ReadEntryStore(bf *BlockFile, addr CacheAddr) (*EntryStore, error) {
	raw, err := bf.Read(addr)
	if err != nil {
		return nil, err
	}
	return ParseEntryStore(bf.Path, raw)
}

// ParseEntryStore decodes the blocks of one entry record.
func ParseEntryStore(name string, raw []byte) (*EntryStore, error) {
	if len(raw) < EntryStoreLength {
		return nil, formatErrorf(name, 0, "entry is %d bytes, need %d", len(raw), EntryStoreLength)
	}

	entry := bytesToEntry(raw)
	if entry.KeyLen < 0 {
		return nil, formatErrorf(name, entryKeyLenOffset, "negative key length %d", entry.KeyLen)
	}
	return entry, nil
}

// IsLongURL reports whether the key overflowed the inline area and must
// be read from the long key address.
func (e *EntryStore) IsLongURL() bool {
	return e.KeyLen > MaxInternalKeyLength
}

// InlineKey returns the key stored inside the entry blocks.
func (e *EntryStore) InlineKey() (string, error) {
	if e.IsLongURL() {
		return "", formatErrorf("", entryKeyLenOffset, "key of %d bytes is not inline", e.KeyLen)
	}
	if int(e.KeyLen) > len(e.Key) {
		return "", formatErrorf("", entryKeyOffset, "inline key of %d bytes exceeds %d available", e.KeyLen, len(e.Key))
	}
	return string(e.Key[:e.KeyLen]), nil
}

// ReadLongURL reads the overflowed key from the secondary block file.
func (e *EntryStore) ReadLongURL(bf *BlockFile) (string, error) {
	if !e.IsLongURL() {
		return "", formatErrorf(bf.Path, 0, "key of %d bytes is inline", e.KeyLen)
	}
	if !e.LongKey.IsBlockFile() {
		return "", formatErrorf(bf.Path, 0, "long key %s is not in a block file", e.LongKey)
	}

	raw, err := bf.Read(e.LongKey)
	if err != nil {
		return "", err
	}
	if int(e.KeyLen) > len(raw) {
		return "", formatErrorf(bf.Path, 0, "long key of %d bytes exceeds %s", e.KeyLen, e.LongKey)
	}
	return string(raw[:e.KeyLen]), nil
}

// CreatedAt converts CreationTime to an absolute instant.
func (e *EntryStore) CreatedAt() time.Time {
	return FromCacheTime(e.CreationTime)
}

// FromCacheTime converts microseconds since 1601-01-01 to a time.Time in UTC.
func FromCacheTime(micros uint64) time.Time {
	return time.UnixMicro(int64(micros) - windowsEpochDelta*1_000_000).UTC()
}

// ToCacheTime converts t to microseconds since 1601-01-01.
func ToCacheTime(t time.Time) uint64 {
	return uint64(t.UnixMicro() + windowsEpochDelta*1_000_000)
}

// MarshalBinary encodes the entry back into its block image.
func (e *EntryStore) MarshalBinary() ([]byte, error) {
	return entryToBytes(e), nil
}

// bytesToEntry - Converts a slice of bytes to an EntryStore struct
func bytesToEntry(buf []byte) *EntryStore {
	entry := &EntryStore{
		Hash:         binary.LittleEndian.Uint32(buf[entryHashOffset:]),
		Next:         CacheAddr(binary.LittleEndian.Uint32(buf[entryNextOffset:])),
		RankingsNode: CacheAddr(binary.LittleEndian.Uint32(buf[entryRankingsOffset:])),
		ReuseCount:   int32(binary.LittleEndian.Uint32(buf[entryReuseCountOffset:])),
		RefetchCount: int32(binary.LittleEndian.Uint32(buf[entryRefetchCountOffset:])),
		State:        int32(binary.LittleEndian.Uint32(buf[entryStateOffset:])),
		CreationTime: binary.LittleEndian.Uint64(buf[entryCreationTimeOffset:]),
		KeyLen:       int32(binary.LittleEndian.Uint32(buf[entryKeyLenOffset:])),
		LongKey:      CacheAddr(binary.LittleEndian.Uint32(buf[entryLongKeyOffset:])),
		Flags:        binary.LittleEndian.Uint32(buf[entryFlagsOffset:]),
		SelfHash:     binary.LittleEndian.Uint32(buf[entrySelfHashOffset:]),
	}
	for i := 0; i < 4; i++ {
		entry.DataSize[i] = int32(binary.LittleEndian.Uint32(buf[entryDataSizeOffset+i*4:]))
		entry.DataAddr[i] = CacheAddr(binary.LittleEndian.Uint32(buf[entryDataAddrOffset+i*4:]))
		entry.Pad[i] = int32(binary.LittleEndian.Uint32(buf[entryPadOffset+i*4:]))
	}
	entry.Key = make([]byte, len(buf)-entryKeyOffset)
	copy(entry.Key, buf[entryKeyOffset:])

	return entry
}

// entryToBytes - Converts an EntryStore struct to a slice of bytes
func entryToBytes(entry *EntryStore) []byte {
	buf := make([]byte, entryKeyOffset+len(entry.Key))

	binary.LittleEndian.PutUint32(buf[entryHashOffset:], entry.Hash)
	binary.LittleEndian.PutUint32(buf[entryNextOffset:], uint32(entry.Next))
	binary.LittleEndian.PutUint32(buf[entryRankingsOffset:], uint32(entry.RankingsNode))
	binary.LittleEndian.PutUint32(buf[entryReuseCountOffset:], uint32(entry.ReuseCount))
	binary.LittleEndian.PutUint32(buf[entryRefetchCountOffset:], uint32(entry.RefetchCount))
	binary.LittleEndian.PutUint32(buf[entryStateOffset:], uint32(entry.State))
	binary.LittleEndian.PutUint64(buf[entryCreationTimeOffset:], entry.CreationTime)
	binary.LittleEndian.PutUint32(buf[entryKeyLenOffset:], uint32(entry.KeyLen))
	binary.LittleEndian.PutUint32(buf[entryLongKeyOffset:], uint32(entry.LongKey))
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[entryDataSizeOffset+i*4:], uint32(entry.DataSize[i]))
		binary.LittleEndian.PutUint32(buf[entryDataAddrOffset+i*4:], uint32(entry.DataAddr[i]))
		binary.LittleEndian.PutUint32(buf[entryPadOffset+i*4:], uint32(entry.Pad[i]))
	}
	binary.LittleEndian.PutUint32(buf[entryFlagsOffset:], entry.Flags)
	binary.LittleEndian.PutUint32(buf[entrySelfHashOffset:], entry.SelfHash)
	copy(buf[entryKeyOffset:], entry.Key)

	return buf
}
