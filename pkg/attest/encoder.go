package attest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/fxamacker/cbor/v2"
)

// CBOR major types used when framing maps and arrays by hand.
const (
	cborMajorArray byte = 4
	cborMajorMap   byte = 5
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// appendHead appends a CBOR item head with the shortest argument encoding.
func appendHead(dst []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(dst, m|byte(n))
	case n <= 0xff:
		return append(dst, m|24, byte(n))
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16(append(dst, m|25), uint16(n))
	case n <= 0xffffffff:
		return binary.BigEndian.AppendUint32(append(dst, m|26), uint32(n))
	}
	return binary.BigEndian.AppendUint64(append(dst, m|27), n)
}

type mapEntry struct {
	label  int64
	raw    []byte
	nested *claimMap
}

// claimMap is a CBOR map whose entries are kept in insertion order. Every
// label can be written once.
type claimMap struct {
	entries []mapEntry
	seen    map[int64]struct{}
}

func newClaimMap() *claimMap {
	return &claimMap{seen: make(map[int64]struct{})}
}

// errDuplicateClaim marks a second write of a label to one map.
var errDuplicateClaim = errors.New("duplicate claim")

func (m *claimMap) claim(label int64) error {
	if _, ok := m.seen[label]; ok {
		return fmt.Errorf("%w: %w %d (%s)", ErrGeneral, errDuplicateClaim, label, iat.LabelName(label))
	}
	m.seen[label] = struct{}{}
	return nil
}

// add encodes value under label.
func (m *claimMap) add(label int64, value any) error {
	raw, err := encMode.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to encode claim %d: %w", ErrGeneral, label, err)
	}
	return m.addRaw(label, raw)
}

// addRaw adds an already encoded value under label.
func (m *claimMap) addRaw(label int64, raw []byte) error {
	if err := m.claim(label); err != nil {
		return err
	}
	m.entries = append(m.entries, mapEntry{label: label, raw: raw})
	return nil
}

// addMap adds an open nested map under label. Entries added to the returned
// map later still land in this position.
func (m *claimMap) addMap(label int64) (*claimMap, error) {
	if err := m.claim(label); err != nil {
		return nil, err
	}
	nested := newClaimMap()
	m.entries = append(m.entries, mapEntry{label: label, nested: nested})
	return nested, nil
}

func (m *claimMap) has(label int64) bool {
	_, ok := m.seen[label]
	return ok
}

func (m *claimMap) len() int {
	return len(m.entries)
}

// appendTo appends the encoded map to dst.
func (m *claimMap) appendTo(dst []byte) ([]byte, error) {
	dst = appendHead(dst, cborMajorMap, uint64(len(m.entries)))
	for _, e := range m.entries {
		label, err := encMode.Marshal(e.label)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode label %d: %w", ErrGeneral, e.label, err)
		}
		dst = append(dst, label...)
		if e.nested != nil {
			if dst, err = e.nested.appendTo(dst); err != nil {
				return nil, err
			}
			continue
		}
		dst = append(dst, e.raw...)
	}
	return dst, nil
}

// encodeArray frames already encoded items as a CBOR array.
func encodeArray(items [][]byte) []byte {
	size := 9
	for _, item := range items {
		size += len(item)
	}
	out := appendHead(make([]byte, 0, size), cborMajorArray, uint64(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}
