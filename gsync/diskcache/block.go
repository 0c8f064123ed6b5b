package diskcache

import (
	"encoding/binary"
	"fmt"
	"os"
)

// BlockMagic - Magic number of a block file
const BlockMagic uint32 = 0xC104CAC3

// BlockHeaderLength - Length of the block file header, blocks start right after it
const BlockHeaderLength = 8192

const (
	blockMagicOffset         = 0
	blockVersionOffset       = 4
	blockThisFileOffset      = 8
	blockNextFileOffset      = 10
	blockEntrySizeOffset     = 12
	blockNumEntriesOffset    = 16
	blockMaxEntriesOffset    = 20
	blockEmptyOffset         = 24
	blockHintsOffset         = 40
	blockUpdatingOffset      = 56
	blockUserOffset          = 60
	blockAllocationMapOffset = 80

	blockAllocationMapLength = BlockHeaderLength - blockAllocationMapOffset
)

// BlockFileHeader - Represents the block file header data
type BlockFileHeader struct {
	Magic         uint32
	Version       uint32
	ThisFile      int16
	NextFile      int16
	EntrySize     int32
	NumEntries    int32
	MaxEntries    int32
	Empty         [4]int32
	Hints         [4]int32
	Updating      int32
	User          [5]int32
	AllocationMap [blockAllocationMapLength]byte
}

// BlockFile is a read-only image of one data_N file.
type BlockFile struct {
	Path   string
	Header BlockFileHeader
	data   []byte
}

// ReadBlockFile reads and decodes the block file at path.
func ReadBlockFile(path string) (*BlockFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block file: %w", err)
	}
	return ParseBlockFile(path, buf)
}

// ParseBlockFile decodes a block file image. The slice is retained.
func ParseBlockFile(name string, buf []byte) (*BlockFile, error) {
	if len(buf) < BlockHeaderLength {
		return nil, formatErrorf(name, 0, "truncated header: %d bytes", len(buf))
	}

	header := bytesToBlockHeader(buf)
	if header.Magic != BlockMagic {
		return nil, formatErrorf(name, blockMagicOffset, "bad magic %#08x", header.Magic)
	}
	if major := header.Version >> 16; major != 2 && major != 3 {
		return nil, formatErrorf(name, blockVersionOffset, "unsupported version %#x", header.Version)
	}
	if header.EntrySize <= 0 {
		return nil, formatErrorf(name, blockEntrySizeOffset, "invalid entry size %d", header.EntrySize)
	}

	return &BlockFile{Path: name, Header: header, data: buf}, nil
}

// Read returns the contiguous blocks addr points to. The returned slice
// aliases the file image and must not be modified.
func (bf *BlockFile) Read(addr CacheAddr) ([]byte, error) {
	if !addr.IsInitialized() {
		return nil, formatErrorf(bf.Path, 0, "address %#08x is not initialized", uint32(addr))
	}
	if addr.IsSeparateFile() {
		return nil, formatErrorf(bf.Path, 0, "%s points to a separate file", addr)
	}
	if addr.FileNumber() != int(bf.Header.ThisFile) {
		return nil, formatErrorf(bf.Path, 0, "%s belongs to data_%d", addr, addr.FileNumber())
	}
	if addr.BlockSize() != int(bf.Header.EntrySize) {
		return nil, formatErrorf(bf.Path, 0, "%s block size %d does not match entry size %d",
			addr, addr.BlockSize(), bf.Header.EntrySize)
	}

	start, count := addr.StartBlock(), addr.NumBlocks()
	if bf.Header.MaxEntries > 0 && start+count > int(bf.Header.MaxEntries) {
		return nil, formatErrorf(bf.Path, 0, "%s exceeds max entries %d", addr, bf.Header.MaxEntries)
	}

	size := int64(bf.Header.EntrySize)
	offset := BlockHeaderLength + int64(start)*size
	end := offset + int64(count)*size
	if end > int64(len(bf.data)) {
		return nil, formatErrorf(bf.Path, offset, "%s is out of bounds (file is %d bytes)", addr, len(bf.data))
	}

	return bf.data[offset:end], nil
}

// Len returns the size of the file image in bytes.
func (bf *BlockFile) Len() int {
	return len(bf.data)
}

// MarshalBinary returns a copy of the file image.
func (bf *BlockFile) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(bf.data))
	copy(buf, bf.data)
	copy(buf, blockHeaderToBytes(bf.Header))
	return buf, nil
}

// bytesToBlockHeader - Converts a slice of bytes to a BlockFileHeader struct
func bytesToBlockHeader(buf []byte) (header BlockFileHeader) {
	header = BlockFileHeader{
		Magic:      binary.LittleEndian.Uint32(buf[blockMagicOffset:]),
		Version:    binary.LittleEndian.Uint32(buf[blockVersionOffset:]),
		ThisFile:   int16(binary.LittleEndian.Uint16(buf[blockThisFileOffset:])),
		NextFile:   int16(binary.LittleEndian.Uint16(buf[blockNextFileOffset:])),
		EntrySize:  int32(binary.LittleEndian.Uint32(buf[blockEntrySizeOffset:])),
		NumEntries: int32(binary.LittleEndian.Uint32(buf[blockNumEntriesOffset:])),
		MaxEntries: int32(binary.LittleEndian.Uint32(buf[blockMaxEntriesOffset:])),
		Updating:   int32(binary.LittleEndian.Uint32(buf[blockUpdatingOffset:])),
	}
	for i := range header.Empty {
		header.Empty[i] = int32(binary.LittleEndian.Uint32(buf[blockEmptyOffset+i*4:]))
		header.Hints[i] = int32(binary.LittleEndian.Uint32(buf[blockHintsOffset+i*4:]))
	}
	for i := range header.User {
		header.User[i] = int32(binary.LittleEndian.Uint32(buf[blockUserOffset+i*4:]))
	}
	copy(header.AllocationMap[:], buf[blockAllocationMapOffset:BlockHeaderLength])

	return
}

// blockHeaderToBytes - Converts a BlockFileHeader struct to a slice of bytes
func blockHeaderToBytes(header BlockFileHeader) (buf []byte) {
	buf = make([]byte, BlockHeaderLength)

	binary.LittleEndian.PutUint32(buf[blockMagicOffset:], header.Magic)
	binary.LittleEndian.PutUint32(buf[blockVersionOffset:], header.Version)
	binary.LittleEndian.PutUint16(buf[blockThisFileOffset:], uint16(header.ThisFile))
	binary.LittleEndian.PutUint16(buf[blockNextFileOffset:], uint16(header.NextFile))
	binary.LittleEndian.PutUint32(buf[blockEntrySizeOffset:], uint32(header.EntrySize))
	binary.LittleEndian.PutUint32(buf[blockNumEntriesOffset:], uint32(header.NumEntries))
	binary.LittleEndian.PutUint32(buf[blockMaxEntriesOffset:], uint32(header.MaxEntries))
	for i := range header.Empty {
		binary.LittleEndian.PutUint32(buf[blockEmptyOffset+i*4:], uint32(header.Empty[i]))
		binary.LittleEndian.PutUint32(buf[blockHintsOffset+i*4:], uint32(header.Hints[i]))
	}
	binary.LittleEndian.PutUint32(buf[blockUpdatingOffset:], uint32(header.Updating))
	for i := range header.User {
		binary.LittleEndian.PutUint32(buf[blockUserOffset+i*4:], uint32(header.User[i]))
	}
	copy(buf[blockAllocationMapOffset:], header.AllocationMap[:])

	return
}
