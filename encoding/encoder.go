package encoding

import (
	"encoding/binary"

	"github.com/EOSTribe/eos-chronicle/chain"
)

// Encoder builds chain wire data. It mirrors Decoder: little-endian
// integers, ULEB128 varints, length-prefixed vectors.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) Byte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *Encoder) Uint8(v uint8) {
	e.Byte(v)
}

func (e *Encoder) Uint16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) Uint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) Uint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) Int64(v int64) {
	e.Uint64(uint64(v))
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
}

func (e *Encoder) Varuint32(v uint32) {
	e.buf = binary.AppendUvarint(e.buf, uint64(v))
}

func (e *Encoder) Varint32(v int32) {
	e.Varuint32(uint32((v << 1) ^ (v >> 31)))
}

func (e *Encoder) VariantIndex(v uint32) {
	e.Varuint32(v)
}

func (e *Encoder) OptionalFlag(present bool) {
	e.Bool(present)
}

func (e *Encoder) WriteBytes(b []byte) {
	e.Varuint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) String(s string) {
	e.Varuint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) Raw(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) Checksum256(c chain.Checksum256) {
	e.buf = append(e.buf, c[:]...)
}

func (e *Encoder) Name(n uint64) {
	e.Uint64(n)
}
