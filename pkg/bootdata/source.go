package bootdata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Source hands out the boot data a bootloader left for the service.
type Source interface {
	// ReadBootData copies every record of major into dst behind a fresh
	// region header and returns the number of bytes written. Only the region
	// header is validated; a malformed record and everything after it is
	// copied unchanged for the reader to reject.
	ReadBootData(major uint8, dst []byte) (int, error)
}

// MemorySource serves boot data from a region held in memory.
type MemorySource struct {
	Region []byte
}

// ReadBootData implements Source.
func (m MemorySource) ReadBootData(major uint8, dst []byte) (int, error) {
	if len(m.Region) == 0 {
		return 0, ErrNoBootData
	}
	shared, err := Load(m.Region)
	if err != nil {
		return 0, err
	}
	if len(dst) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(dst))
	}
	offset := HeaderSize
	next := HeaderSize
	for {
		rec, ok, err := shared.recordAt(next)
		if err != nil {
			// A malformed record ends the copy. It and the rest of the
			// region go to the reader unchanged.
			tail := shared.region[next:shared.totalLen]
			if offset+len(tail) > len(dst) {
				return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, offset+len(tail), len(dst))
			}
			offset += copy(dst[offset:], tail)
			break
		}
		if !ok {
			break
		}
		next = rec.end
		if rec.Major != major {
			continue
		}
		raw := shared.region[rec.Offset:rec.end]
		if offset+len(raw) > len(dst) {
			return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, offset+len(raw), len(dst))
		}
		offset += copy(dst[offset:], raw)
	}
	binary.LittleEndian.PutUint16(dst[0:2], Magic)
	binary.LittleEndian.PutUint16(dst[2:4], uint16(offset))
	return offset, nil
}

// FileSource serves boot data from a region image on disk, such as a dump of
// the bootloader shared memory.
type FileSource struct {
	Path string
}

// ReadBootData implements Source. A missing file means there is no boot data.
func (f FileSource) ReadBootData(major uint8, dst []byte) (int, error) {
	region, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNoBootData, f.Path)
		}
		return 0, fmt.Errorf("failed to read boot data file: %w", err)
	}
	if len(region) > MaxRegionSize {
		region = region[:MaxRegionSize]
	}
	return MemorySource{Region: region}.ReadBootData(major, dst)
}
