package diskcache

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"
)

// File names of one cache generation inside Cache_Data.
const (
	IndexFileName       = "index"
	EntriesFileName     = "data_1"
	LongKeysFileName    = "data_2"
	entriesFileNumber   = 1
	longKeysFileNumber  = 2
	currentCacheVersion = 0x30000
)

// Builder assembles a consistent index/data_1/data_2 triplet for test
// fixtures.
type Builder struct {
	tableLen int
	entries  []*EntryStore
	addrs    []CacheAddr
	longKeys []byte
	longNext int
	overlay  map[int]CacheAddr
	err      error
}

// NewBuilder returns a builder whose index table has tableLen slots.
func NewBuilder(tableLen int) *Builder {
	if tableLen <= 0 {
		tableLen = DefaultIndexTableLength
	}
	return &Builder{tableLen: tableLen, overlay: make(map[int]CacheAddr)}
}

// AddKey stores key as an entry created at createdAt. Keys longer than
// MaxInternalKeyLength go to the long key file.
func (b *Builder) AddKey(key string, createdAt time.Time) *Builder {
	if b.err != nil {
		return b
	}

	entry := &EntryStore{
		Hash:         hashKey(key),
		CreationTime: ToCacheTime(createdAt),
		KeyLen:       int32(len(key)),
	}

	blocks := 1
	if len(key) > MaxInternalKeyLength {
		longBlocks := (len(key) + 1 + Block1K.BlockSize() - 1) / Block1K.BlockSize()
		if longBlocks > MaxBlocksPerAddr {
			b.err = fmt.Errorf("key of %d bytes does not fit in %d blocks", len(key), MaxBlocksPerAddr)
			return b
		}
		entry.LongKey = NewBlockAddr(Block1K, longKeysFileNumber, b.longNext, longBlocks)
		area := make([]byte, longBlocks*Block1K.BlockSize())
		copy(area, key)
		b.longKeys = append(b.longKeys, area...)
		b.longNext += longBlocks
	} else {
		blocks = (entryKeyOffset + len(key) + 1 + EntryStoreLength - 1) / EntryStoreLength
	}
	entry.Key = make([]byte, blocks*EntryStoreLength-entryKeyOffset)
	if !entry.LongKey.IsInitialized() {
		copy(entry.Key, key)
	}

	start := 0
	for _, addr := range b.addrs {
		start += addr.NumBlocks()
	}
	b.entries = append(b.entries, entry)
	b.addrs = append(b.addrs, NewBlockAddr(Block256, entriesFileNumber, start, blocks))

	return b
}

// SetSlot overrides one index table slot with a raw address.
func (b *Builder) SetSlot(slot int, addr CacheAddr) *Builder {
	b.overlay[slot] = addr
	return b
}

// Build encodes the three files in memory.
func (b *Builder) Build() (*IndexFile, *BlockFile, *BlockFile, error) {
	if b.err != nil {
		return nil, nil, nil, b.err
	}

	table := make([]CacheAddr, b.tableLen)
	tails := make(map[int]int)
	for i, entry := range b.entries {
		slot := int(entry.Hash % uint32(b.tableLen))
		if tail, ok := tails[slot]; ok {
			b.entries[tail].Next = b.addrs[i]
		} else {
			table[slot] = b.addrs[i]
		}
		tails[slot] = i
	}
	for slot, addr := range b.overlay {
		if slot >= 0 && slot < len(table) {
			table[slot] = addr
		}
	}

	index := &IndexFile{
		Path: IndexFileName,
		Header: IndexHeader{
			Magic:      IndexMagic,
			Version:    currentCacheVersion,
			NumEntries: int32(len(b.entries)),
			LastFile:   longKeysFileNumber,
			ThisID:     1,
			TableLen:   int32(b.tableLen),
		},
		Table: table,
	}

	var entryBlocks []byte
	for _, entry := range b.entries {
		entryBlocks = append(entryBlocks, entryToBytes(entry)...)
	}
	entries := newBlockFile(EntriesFileName, entriesFileNumber, Block256, entryBlocks)
	longKeys := newBlockFile(LongKeysFileName, longKeysFileNumber, Block1K, b.longKeys)

	return index, entries, longKeys, nil
}

// WriteDir writes index, data_1 and data_2 into dir, creating it if needed.
func (b *Builder) WriteDir(dir string) error {
	index, entries, longKeys, err := b.Build()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	files := []struct {
		name  string
		image interface{ MarshalBinary() ([]byte, error) }
	}{
		{IndexFileName, index},
		{EntriesFileName, entries},
		{LongKeysFileName, longKeys},
	}
	for _, file := range files {
		buf, err := file.image.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, file.name), buf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", file.name, err)
		}
	}
	return nil
}

func newBlockFile(name string, number int, fileType FileType, blocks []byte) *BlockFile {
	size := fileType.BlockSize()
	count := len(blocks) / size
	header := BlockFileHeader{
		Magic:      BlockMagic,
		Version:    currentCacheVersion,
		ThisFile:   int16(number),
		EntrySize:  int32(size),
		NumEntries: int32(count),
		MaxEntries: int32(count),
	}
	data := make([]byte, BlockHeaderLength+len(blocks))
	copy(data, blockHeaderToBytes(header))
	copy(data[BlockHeaderLength:], blocks)
	return &BlockFile{Path: name, Header: header, data: data}
}

func hashKey(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}
