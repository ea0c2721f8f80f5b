package bootdata

import (
	"encoding/binary"
	"fmt"
)

// Builder writes boot data regions the way a bootloader does. It is used by
// tests and by tooling that simulates a bootloader.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder returns a Builder holding an empty region.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, HeaderSize, 256)}
}

// Add appends a record. Errors are deferred to Bytes.
func (b *Builder) Add(major, module, claim uint8, payload []byte) *Builder {
	if b.err != nil {
		return b
	}
	tlvLen := RecordHeaderSize + len(payload)
	if len(b.buf)+tlvLen > MaxRegionSize {
		b.err = fmt.Errorf("record %d/%#04x does not fit in a boot data region", module, claim)
		return b
	}
	b.buf = binary.LittleEndian.AppendUint16(b.buf, Type(major, module, claim))
	b.buf = binary.LittleEndian.AppendUint16(b.buf, uint16(tlvLen))
	b.buf = append(b.buf, payload...)
	return b
}

// AddIAS appends an attestation record.
func (b *Builder) AddIAS(module, claim uint8, payload []byte) *Builder {
	return b.Add(MajorIAS, module, claim, payload)
}

// AddText appends an attestation record carrying a text value.
func (b *Builder) AddText(module, claim uint8, s string) *Builder {
	return b.AddIAS(module, claim, []byte(s))
}

// AddUint32 appends an attestation record carrying a little-endian u32.
func (b *Builder) AddUint32(module, claim uint8, v uint32) *Builder {
	return b.AddIAS(module, claim, binary.LittleEndian.AppendUint32(nil, v))
}

// Sentinel appends a zero length record, which ends iteration.
func (b *Builder) Sentinel() *Builder {
	if b.err == nil {
		b.buf = append(b.buf, 0, 0, 0, 0)
	}
	return b
}

// Bytes returns the region with its header filled in.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	binary.LittleEndian.PutUint16(out[0:2], Magic)
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(out)))
	return out, nil
}

// DecodeUint decodes a little-endian unsigned integer payload of up to eight
// bytes.
func DecodeUint(payload []byte) (uint64, error) {
	if len(payload) == 0 || len(payload) > 8 {
		return 0, fmt.Errorf("%w: integer payload of %d bytes", ErrMalformedRecord, len(payload))
	}
	var v uint64
	for i := len(payload) - 1; i >= 0; i-- {
		v = v<<8 | uint64(payload[i])
	}
	return v, nil
}
