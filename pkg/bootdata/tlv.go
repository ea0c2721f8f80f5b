// Package bootdata reads the TLV encoded boot status a bootloader leaves in shared
// memory for the attestation service.
//
// The region starts with a four byte header {magic, total length} followed by
// records {type, length, payload}. All integers are little-endian and both
// lengths include their own header. The record type packs the major type in
// bits 15..12, the software module in bits 11..6 and the claim in bits 5..0.
package bootdata

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic identifies a valid shared data region.
	Magic uint16 = 0x2016
	// HeaderSize is the size of the region header.
	HeaderSize = 4
	// RecordHeaderSize is the size of a record header.
	RecordHeaderSize = 4
	// MaxRegionSize is the largest region the 16 bit total length can describe.
	MaxRegionSize = 0xffff
)

// Major types.
const (
	MajorCore uint8 = 0x0
	MajorIAS  uint8 = 0x1
)

// Software modules. Module 0 carries the general claims that do not belong to
// any component.
const (
	ModuleGeneral uint8 = 0x00
	ModuleBL2     uint8 = 0x01
	ModulePRoT    uint8 = 0x02
	ModuleARoT    uint8 = 0x03
	ModuleSPE     uint8 = 0x04
	ModuleNSPE    uint8 = 0x05
	ModuleSNS     uint8 = 0x06
	// MaxModule is the highest software module that can describe a component.
	MaxModule uint8 = 0x06
)

// General claims of module 0.
const (
	ClaimBootSeed          uint8 = 0x00
	ClaimHardwareVersion   uint8 = 0x01
	ClaimSecurityLifecycle uint8 = 0x02
)

// Claims of software modules 1..MaxModule. Claims 0x08 and above describe the
// measurement itself.
const (
	ClaimVersion             uint8 = 0x00
	ClaimSignerID            uint8 = 0x01
	ClaimEpoch               uint8 = 0x02
	ClaimType                uint8 = 0x03
	ClaimMeasurementValue    uint8 = 0x08
	ClaimMeasurementType     uint8 = 0x09
	ClaimMeasurementDesc     uint8 = 0x0a
	ClaimBootRecord          uint8 = 0x3f
	measurementClaimBoundary uint8 = 0x08
)

const (
	majorShift  = 12
	majorMask   = 0xf
	moduleShift = 6
	moduleMask  = 0x3f
	claimMask   = 0x3f
)

// Type composes a record type from its major type, module and claim.
func Type(major, module, claim uint8) uint16 {
	return uint16(major&majorMask)<<majorShift |
		uint16(module&moduleMask)<<moduleShift |
		uint16(claim&claimMask)
}

// SplitType decomposes a record type.
func SplitType(t uint16) (major, module, claim uint8) {
	return uint8(t >> majorShift & majorMask), uint8(t >> moduleShift & moduleMask), uint8(t & claimMask)
}

// IsMeasurementClaim reports whether claim describes a measurement rather than
// the component itself. The boot record is a complete component and is not.
func IsMeasurementClaim(claim uint8) bool {
	return claim >= measurementClaimBoundary && claim != ClaimBootRecord
}

// Record is a single TLV record. Payload aliases the region it was read from.
type Record struct {
	Major   uint8
	Module  uint8
	Claim   uint8
	Payload []byte
	// Offset is the position of the record header in the region.
	Offset int
	// end is the offset just past the record.
	end int
}

// Len returns the payload length.
func (r Record) Len() int {
	return len(r.Payload)
}

func (r Record) String() string {
	return fmt.Sprintf("major=%d module=%d claim=%#04x len=%d", r.Major, r.Module, r.Claim, len(r.Payload))
}

// SharedData is a validated view over a boot data region. It never copies or
// modifies the region.
type SharedData struct {
	region   []byte
	totalLen int
}

// Load validates the region header and returns a view over it. The returned
// view reads at most total length bytes of region.
func Load(region []byte) (*SharedData, error) {
	if len(region) < HeaderSize {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrMalformedBlob, ErrTruncatedHeader, len(region))
	}
	magic := binary.LittleEndian.Uint16(region[0:2])
	if magic != Magic {
		return nil, fmt.Errorf("%w: %w: got %#04x", ErrMalformedBlob, ErrBadMagic, magic)
	}
	totalLen := int(binary.LittleEndian.Uint16(region[2:4]))
	if totalLen < HeaderSize || totalLen > len(region) {
		return nil, fmt.Errorf("%w: total length %d outside region of %d bytes", ErrMalformedBlob, totalLen, len(region))
	}
	return &SharedData{region: region, totalLen: totalLen}, nil
}

// TotalLen returns the region length declared by the header.
func (s *SharedData) TotalLen() int {
	return s.totalLen
}

// Bytes returns the declared region, header included.
func (s *SharedData) Bytes() []byte {
	return s.region[:s.totalLen]
}

// recordAt reads the record starting at offset. ok is false at the end of the
// region or at the zero length sentinel.
func (s *SharedData) recordAt(offset int) (rec Record, ok bool, err error) {
	if offset+RecordHeaderSize > s.totalLen {
		if offset < s.totalLen {
			return Record{}, false, fmt.Errorf("%w: record header at %d crosses total length %d", ErrMalformedRecord, offset, s.totalLen)
		}
		return Record{}, false, nil
	}
	typ := binary.LittleEndian.Uint16(s.region[offset:])
	tlvLen := int(binary.LittleEndian.Uint16(s.region[offset+2:]))
	if tlvLen == 0 {
		return Record{}, false, nil
	}
	if tlvLen < RecordHeaderSize {
		return Record{}, false, fmt.Errorf("%w: record at %d has length %d", ErrMalformedRecord, offset, tlvLen)
	}
	end := offset + tlvLen
	if end > s.totalLen {
		return Record{}, false, fmt.Errorf("%w: record at %d ends at %d past total length %d", ErrMalformedRecord, offset, end, s.totalLen)
	}
	major, module, claim := SplitType(typ)
	return Record{
		Major:   major,
		Module:  module,
		Claim:   claim,
		Payload: s.region[offset+RecordHeaderSize : end : end],
		Offset:  offset,
		end:     end,
	}, true, nil
}

// scan returns the first IAS record of module at or after offset.
func (s *SharedData) scan(offset int, module uint8) (Record, bool, error) {
	for {
		rec, ok, err := s.recordAt(offset)
		if err != nil || !ok {
			return Record{}, false, err
		}
		if rec.Major == MajorIAS && rec.Module == module {
			return rec, true, nil
		}
		offset = rec.end
	}
}

// FindFirst returns the first record of module.
func (s *SharedData) FindFirst(module uint8) (Record, bool, error) {
	return s.scan(HeaderSize, module)
}

// FindNext returns the record of the same module following prev.
func (s *SharedData) FindNext(prev Record) (Record, bool, error) {
	if prev.end <= prev.Offset {
		return Record{}, false, fmt.Errorf("%w: cursor was not returned by this reader", ErrMalformedRecord)
	}
	return s.scan(prev.end, prev.Module)
}

// FindByClaim returns the first record of module carrying claim.
func (s *SharedData) FindByClaim(module, claim uint8) (Record, bool, error) {
	rec, ok, err := s.FindFirst(module)
	for ok && err == nil {
		if rec.Claim == claim {
			return rec, true, nil
		}
		rec, ok, err = s.FindNext(rec)
	}
	return Record{}, false, err
}

// Walk calls fn for every record in region order, whatever its major type or
// module. It stops at the first error from the region or from fn.
func (s *SharedData) Walk(fn func(Record) error) error {
	offset := HeaderSize
	for {
		rec, ok, err := s.recordAt(offset)
		if err != nil || !ok {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		offset = rec.end
	}
}

// Records returns every record in region order.
func (s *SharedData) Records() ([]Record, error) {
	var records []Record
	err := s.Walk(func(r Record) error {
		records = append(records, r)
		return nil
	})
	return records, err
}
