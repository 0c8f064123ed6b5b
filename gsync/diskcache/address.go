package diskcache

import "fmt"

// CacheAddr is the 32 bit locator of a record inside a block file.
// Layout, high to low: initialized(1) | file type(3) | reserved(2) |
// block count - 1(2) | file selector(8) | start block(16).
// The zero value is an absent address.
type CacheAddr uint32

const (
	addrInitializedMask    uint32 = 0x80000000
	addrFileTypeMask       uint32 = 0x70000000
	addrFileTypeOffset            = 28
	addrNumBlocksMask      uint32 = 0x03000000
	addrNumBlocksOffset           = 24
	addrFileSelectorMask   uint32 = 0x00ff0000
	addrFileSelectorOffset        = 16
	addrStartBlockMask     uint32 = 0x0000ffff
	addrFileNameMask       uint32 = 0x0fffffff
)

// MaxBlocksPerAddr is the largest contiguous run one address can cover.
const MaxBlocksPerAddr = 4

// FileType is the kind of storage an address points into.
type FileType int

const (
	External FileType = iota
	Rankings
	Block256
	Block1K
	Block4K
	BlockFiles
	BlockEntries
	BlockEvicted
)

func (t FileType) String() string {
	switch t {
	case External:
		return "external"
	case Rankings:
		return "rankings"
	case Block256:
		return "block-256"
	case Block1K:
		return "block-1k"
	case Block4K:
		return "block-4k"
	case BlockFiles:
		return "block-files"
	case BlockEntries:
		return "block-entries"
	case BlockEvicted:
		return "block-evicted"
	default:
		return fmt.Sprintf("file-type(%d)", int(t))
	}
}

// BlockSize returns the fixed block size of block file type t, 0 for external.
func (t FileType) BlockSize() int {
	switch t {
	case Rankings:
		return 36
	case Block256:
		return 256
	case Block1K:
		return 1024
	case Block4K:
		return 4096
	case BlockFiles:
		return 8
	case BlockEntries:
		return 104
	case BlockEvicted:
		return 48
	default:
		return 0
	}
}

// NewBlockAddr encodes an address into block file number fileNumber.
func NewBlockAddr(fileType FileType, fileNumber, startBlock, numBlocks int) CacheAddr {
	value := addrInitializedMask |
		uint32(fileType)<<addrFileTypeOffset&addrFileTypeMask |
		uint32(numBlocks-1)<<addrNumBlocksOffset&addrNumBlocksMask |
		uint32(fileNumber)<<addrFileSelectorOffset&addrFileSelectorMask |
		uint32(startBlock)&addrStartBlockMask
	return CacheAddr(value)
}

func (a CacheAddr) IsInitialized() bool {
	return uint32(a)&addrInitializedMask != 0
}

func (a CacheAddr) FileType() FileType {
	return FileType((uint32(a) & addrFileTypeMask) >> addrFileTypeOffset)
}

// IsSeparateFile reports whether the record lives in its own f_xxxxxx file.
func (a CacheAddr) IsSeparateFile() bool {
	return a.FileType() == External
}

// IsBlockFile reports whether the address can be resolved through a BlockFile.
func (a CacheAddr) IsBlockFile() bool {
	return a.IsInitialized() && !a.IsSeparateFile()
}

func (a CacheAddr) FileNumber() int {
	if a.IsSeparateFile() {
		return int(uint32(a) & addrFileNameMask)
	}
	return int((uint32(a) & addrFileSelectorMask) >> addrFileSelectorOffset)
}

func (a CacheAddr) StartBlock() int {
	return int(uint32(a) & addrStartBlockMask)
}

func (a CacheAddr) NumBlocks() int {
	return int((uint32(a)&addrNumBlocksMask)>>addrNumBlocksOffset) + 1
}

func (a CacheAddr) BlockSize() int {
	return a.FileType().BlockSize()
}

func (a CacheAddr) String() string {
	if !a.IsInitialized() {
		return "addr(none)"
	}
	if a.IsSeparateFile() {
		return fmt.Sprintf("addr(f_%06x)", a.FileNumber())
	}
	return fmt.Sprintf("addr(%s data_%d #%d x%d)", a.FileType(), a.FileNumber(), a.StartBlock(), a.NumBlocks())
}
