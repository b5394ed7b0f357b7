package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionCodec selects the algorithm CompressingDiskManager uses to
// shrink a page before handing it to the wrapped DiskManager.
type CompressionCodec uint8

const (
	CodecNone   CompressionCodec = 0
	CodecLZ4    CompressionCodec = 1
	CodecSnappy CompressionCodec = 2
)

// Compressed page header layout, padded back out to PageSize on disk:
//
//	[0:2]   magic (compressedPageMagic)
//	[2]     codec
//	[3]     reserved
//	[4:6]   original size
//	[6:8]   compressed size
//	[8:12]  CRC32 (IEEE) of the original page
//	[12:]   compressed bytes
const (
	compressedPageMagic  = 0xC0DE
	compressedHeaderSize = 12
	// minCompressionSavings is the minimum bytes a compressed page must
	// shrink by to be worth the framing overhead; below it the page is
	// stored uncompressed (tagged CodecNone) instead.
	minCompressionSavings = 100
)

// CompressingDiskManager wraps another DiskManager and transparently
// compresses pages on write, decompressing on read. Callers see the same
// fixed-size, page-granular DiskManager contract; the wrapped manager never
// sees anything but PageSize-sized buffers.
type CompressingDiskManager struct {
	wrapped DiskManager
	codec   CompressionCodec
}

// NewCompressingDiskManager wraps wrapped, compressing every page it writes
// with codec.
func NewCompressingDiskManager(wrapped DiskManager, codec CompressionCodec) *CompressingDiskManager {
	return &CompressingDiskManager{wrapped: wrapped, codec: codec}
}

// WritePage compresses buf and writes the framed, PageSize-padded result to
// the wrapped manager.
func (c *CompressingDiskManager) WritePage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("write buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	framed, err := c.frame(buf)
	if err != nil {
		return fmt.Errorf("compress page %d: %w", pageID, err)
	}
	return c.wrapped.WritePage(pageID, framed)
}

// ReadPage reads the framed page from the wrapped manager and decompresses
// it into buf.
func (c *CompressingDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("read buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	framed := make([]byte, PageSize)
	if err := c.wrapped.ReadPage(pageID, framed); err != nil {
		return err
	}

	unframed, err := c.unframe(pageID, framed)
	if err != nil {
		return fmt.Errorf("decompress page %d: %w", pageID, err)
	}
	copy(buf, unframed)
	return nil
}

// Close closes the wrapped manager.
func (c *CompressingDiskManager) Close() error {
	return c.wrapped.Close()
}

func (c *CompressingDiskManager) frame(data []byte) ([]byte, error) {
	checksum := crc32.ChecksumIEEE(data)
	codec := c.codec

	var compressed []byte
	var err error
	switch codec {
	case CodecNone:
		compressed = data
	case CodecLZ4:
		compressed = make([]byte, lz4.CompressBlockBound(len(data)))
		var n int
		n, err = lz4.CompressBlock(data, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = compressed[:n]
	case CodecSnappy:
		compressed = snappy.Encode(nil, data)
	default:
		return nil, fmt.Errorf("unsupported codec: %d", codec)
	}

	if codec != CodecNone && len(data)-len(compressed) < minCompressionSavings {
		codec = CodecNone
		compressed = data
	}

	total := compressedHeaderSize + len(compressed)
	if total > PageSize {
		// Compressed form (or the raw fallback) doesn't fit: this only
		// happens for CodecNone on a page already at PageSize, which never
		// exceeds it, so this path is unreachable in practice.
		return nil, fmt.Errorf("framed page too large: %d bytes", total)
	}

	framed := make([]byte, PageSize)
	binary.LittleEndian.PutUint16(framed[0:2], compressedPageMagic)
	framed[2] = uint8(codec)
	binary.LittleEndian.PutUint16(framed[4:6], uint16(len(data)))
	binary.LittleEndian.PutUint16(framed[6:8], uint16(len(compressed)))
	binary.LittleEndian.PutUint32(framed[8:12], checksum)
	copy(framed[compressedHeaderSize:], compressed)
	return framed, nil
}

func (c *CompressingDiskManager) unframe(pageID PageID, framed []byte) ([]byte, error) {
	if len(framed) < compressedHeaderSize {
		return nil, fmt.Errorf("framed page too short: %d bytes", len(framed))
	}
	magic := binary.LittleEndian.Uint16(framed[0:2])
	if magic != compressedPageMagic {
		return nil, fmt.Errorf("bad frame magic: %#04x", magic)
	}
	codec := CompressionCodec(framed[2])
	originalSize := binary.LittleEndian.Uint16(framed[4:6])
	compressedSize := binary.LittleEndian.Uint16(framed[6:8])
	checksum := binary.LittleEndian.Uint32(framed[8:12])

	if compressedHeaderSize+int(compressedSize) > len(framed) {
		return nil, fmt.Errorf("framed page truncated: need %d bytes, have %d",
			compressedHeaderSize+int(compressedSize), len(framed))
	}
	compressed := framed[compressedHeaderSize : compressedHeaderSize+int(compressedSize)]

	var data []byte
	switch codec {
	case CodecNone:
		data = compressed
	case CodecLZ4:
		data = make([]byte, originalSize)
		n, err := lz4.UncompressBlock(compressed, data)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != int(originalSize) {
			return nil, fmt.Errorf("lz4 decompressed size mismatch: got %d, expected %d", n, originalSize)
		}
	case CodecSnappy:
		var err error
		data, err = snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		if len(data) != int(originalSize) {
			return nil, fmt.Errorf("snappy decompressed size mismatch: got %d, expected %d", len(data), originalSize)
		}
	default:
		return nil, fmt.Errorf("unsupported codec: %d", codec)
	}

	if crc32.ChecksumIEEE(data) != checksum {
		return nil, ErrPageCorrupted("compressing_disk_manager.unframe", pageID, fmt.Errorf("checksum mismatch"))
	}
	return data, nil
}
