package diskcache

import (
	"encoding/binary"
	"fmt"
	"os"
)

// IndexMagic - Magic number of the cache index file
const IndexMagic uint32 = 0xC103CAC3

// IndexHeaderLength - Length of the index file header, the table follows it
const IndexHeaderLength = 368

// DefaultIndexTableLength - Table length used when the header leaves it zero
const DefaultIndexTableLength = 0x10000

const (
	indexMagicOffset      = 0
	indexVersionOffset    = 4
	indexNumEntriesOffset = 8
	indexNumBytesOffset   = 12
	indexLastFileOffset   = 16
	indexThisIDOffset     = 20
	indexStatsOffset      = 24
	indexTableLenOffset   = 28
	indexCrashOffset      = 32
	indexExperimentOffset = 36
	indexCreateTimeOffset = 40
	indexPaddingOffset    = 48
	indexLruOffset        = 256

	indexPaddingLength = indexLruOffset - indexPaddingOffset
	indexLruLength     = IndexHeaderLength - indexLruOffset
)

// IndexHeader - Represents the index file header data
type IndexHeader struct {
	Magic      uint32
	Version    uint32
	NumEntries int32
	NumBytes   int32
	LastFile   int32
	ThisID     int32
	Stats      CacheAddr
	TableLen   int32
	Crash      int32
	Experiment int32
	CreateTime uint64
	Padding    [indexPaddingLength]byte
	LRU        [indexLruLength]byte
}

// IndexFile is an immutable snapshot of one on-disk index file.
type IndexFile struct {
	Path   string
	Header IndexHeader
	Table  []CacheAddr
}

// ReadIndexFile reads and decodes the index file at path.
func ReadIndexFile(path string) (*IndexFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return ParseIndexFile(path, buf)
}

// ParseIndexFile decodes an index file image. name is used in errors only.
func ParseIndexFile(name string, buf []byte) (*IndexFile, error) {
	if len(buf) < IndexHeaderLength {
		return nil, formatErrorf(name, 0, "truncated header: %d bytes", len(buf))
	}

	header := bytesToIndexHeader(buf)
	if header.Magic != IndexMagic {
		return nil, formatErrorf(name, indexMagicOffset, "bad magic %#08x", header.Magic)
	}
	if major := header.Version >> 16; major != 2 && major != 3 {
		return nil, formatErrorf(name, indexVersionOffset, "unsupported version %#x", header.Version)
	}
	if header.TableLen < 0 {
		return nil, formatErrorf(name, indexTableLenOffset, "negative table length %d", header.TableLen)
	}

	tableLen := int(header.TableLen)
	if tableLen == 0 {
		tableLen = DefaultIndexTableLength
	}
	if need := IndexHeaderLength + tableLen*4; len(buf) < need {
		return nil, formatErrorf(name, int64(len(buf)), "truncated table: need %d bytes, have %d", need, len(buf))
	}

	table := make([]CacheAddr, tableLen)
	for i := range table {
		table[i] = CacheAddr(binary.LittleEndian.Uint32(buf[IndexHeaderLength+i*4:]))
	}

	return &IndexFile{Path: name, Header: header, Table: table}, nil
}

// MarshalBinary encodes the header followed by the table.
func (f *IndexFile) MarshalBinary() ([]byte, error) {
	buf := make([]byte, IndexHeaderLength+len(f.Table)*4)
	copy(buf, indexHeaderToBytes(f.Header))
	for i, addr := range f.Table {
		binary.LittleEndian.PutUint32(buf[IndexHeaderLength+i*4:], uint32(addr))
	}
	return buf, nil
}

// bytesToIndexHeader - Converts a slice of bytes to an IndexHeader struct
func bytesToIndexHeader(buf []byte) (header IndexHeader) {
	header = IndexHeader{
		Magic:      binary.LittleEndian.Uint32(buf[indexMagicOffset:]),
		Version:    binary.LittleEndian.Uint32(buf[indexVersionOffset:]),
		NumEntries: int32(binary.LittleEndian.Uint32(buf[indexNumEntriesOffset:])),
		NumBytes:   int32(binary.LittleEndian.Uint32(buf[indexNumBytesOffset:])),
		LastFile:   int32(binary.LittleEndian.Uint32(buf[indexLastFileOffset:])),
		ThisID:     int32(binary.LittleEndian.Uint32(buf[indexThisIDOffset:])),
		Stats:      CacheAddr(binary.LittleEndian.Uint32(buf[indexStatsOffset:])),
		TableLen:   int32(binary.LittleEndian.Uint32(buf[indexTableLenOffset:])),
		Crash:      int32(binary.LittleEndian.Uint32(buf[indexCrashOffset:])),
		Experiment: int32(binary.LittleEndian.Uint32(buf[indexExperimentOffset:])),
		CreateTime: binary.LittleEndian.Uint64(buf[indexCreateTimeOffset:]),
	}
	copy(header.Padding[:], buf[indexPaddingOffset:indexLruOffset])
	copy(header.LRU[:], buf[indexLruOffset:IndexHeaderLength])

	return
}

// indexHeaderToBytes - Converts an IndexHeader struct to a slice of bytes
func indexHeaderToBytes(header IndexHeader) (buf []byte) {
	buf = make([]byte, IndexHeaderLength)

	binary.LittleEndian.PutUint32(buf[indexMagicOffset:], header.Magic)
	binary.LittleEndian.PutUint32(buf[indexVersionOffset:], header.Version)
	binary.LittleEndian.PutUint32(buf[indexNumEntriesOffset:], uint32(header.NumEntries))
	binary.LittleEndian.PutUint32(buf[indexNumBytesOffset:], uint32(header.NumBytes))
	binary.LittleEndian.PutUint32(buf[indexLastFileOffset:], uint32(header.LastFile))
	binary.LittleEndian.PutUint32(buf[indexThisIDOffset:], uint32(header.ThisID))
	binary.LittleEndian.PutUint32(buf[indexStatsOffset:], uint32(header.Stats))
	binary.LittleEndian.PutUint32(buf[indexTableLenOffset:], uint32(header.TableLen))
	binary.LittleEndian.PutUint32(buf[indexCrashOffset:], uint32(header.Crash))
	binary.LittleEndian.PutUint32(buf[indexExperimentOffset:], uint32(header.Experiment))
	binary.LittleEndian.PutUint64(buf[indexCreateTimeOffset:], header.CreateTime)
	copy(buf[indexPaddingOffset:], header.Padding[:])
	copy(buf[indexLruOffset:], header.LRU[:])

	return
}
