package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/EOSTribe/eos-chronicle/chain"
)

// Decoder is a forward-only cursor over a byte slice holding chain wire
// data: little-endian integers, ULEB128 varints, length-prefixed vectors
// and fixed-size digests. A failed fixed-width or varint read reports
// the offset it started at and leaves the cursor there; a failed
// length-prefixed or tagged read (Bytes, String, PublicKey, Signature)
// leaves the cursor after the prefix or tag it already consumed.
type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) Pos() int {
	return d.pos
}

func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return fmt.Errorf("read of %d bytes past end of buffer at offset %d", n, d.pos)
	}
	return nil
}

func (d *Decoder) Byte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) Uint8() (uint8, error) {
	return d.Byte()
}

func (d *Decoder) Uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *Decoder) Int8() (int8, error) {
	v, err := d.Byte()
	return int8(v), err
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.Byte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("invalid bool byte %#x at offset %d", b, d.pos-1)
	}
	return b == 1, nil
}

// Varuint32 reads a ULEB128-encoded unsigned integer, at most 5 bytes.
func (d *Decoder) Varuint32() (uint32, error) {
	start := d.pos
	var result uint64
	var shift uint
	for {
		if err := d.need(1); err != nil {
			d.pos = start
			return 0, fmt.Errorf("truncated varuint32 at offset %d", start)
		}
		b := d.data[d.pos]
		d.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 35 {
			d.pos = start
			return 0, fmt.Errorf("varuint32 overflow at offset %d", start)
		}
	}
	if result > 0xffffffff {
		d.pos = start
		return 0, fmt.Errorf("varuint32 overflow at offset %d", start)
	}
	return uint32(result), nil
}

// Varint32 reads a zigzag-encoded signed integer.
func (d *Decoder) Varint32() (int32, error) {
	v, err := d.Varuint32()
	if err != nil {
		return 0, err
	}
	return int32(v>>1) ^ -int32(v&1), nil
}

// VariantIndex reads the ULEB128 alternative tag of a variant.
func (d *Decoder) VariantIndex() (uint32, error) {
	return d.Varuint32()
}

// Optional reads the one-byte present flag of an optional value.
func (d *Decoder) Optional() (bool, error) {
	return d.Bool()
}

// Bytes reads a ULEB128 length prefix followed by that many raw bytes.
// The returned slice aliases the decoder's buffer.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Varuint32()
	if err != nil {
		return nil, err
	}
	return d.Raw(int(n))
}

func (d *Decoder) String() (string, error) {
	b, err := d.Bytes()
	return string(b), err
}

// Raw reads n bytes without a length prefix. The returned slice aliases
// the decoder's buffer.
func (d *Decoder) Raw(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) Checksum160() ([20]byte, error) {
	var out [20]byte
	b, err := d.Raw(20)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (d *Decoder) Checksum256() (chain.Checksum256, error) {
	var out chain.Checksum256
	b, err := d.Raw(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (d *Decoder) Checksum512() ([64]byte, error) {
	var out [64]byte
	b, err := d.Raw(64)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// PublicKey reads a tagged public key: K1 and R1 keys are 33 bytes,
// WebAuthn keys carry a presence byte and an rpid string after the point.
// The returned bytes include the tag.
func (d *Decoder) PublicKey() ([]byte, error) {
	start := d.pos
	tag, err := d.VariantIndex()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0, 1:
		if _, err := d.Raw(33); err != nil {
			return nil, err
		}
	case 2:
		if _, err := d.Raw(33); err != nil {
			return nil, err
		}
		if _, err := d.Byte(); err != nil {
			return nil, err
		}
		if _, err := d.String(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown public key type %d at offset %d", tag, start)
	}
	return d.data[start:d.pos], nil
}

// Signature reads a tagged signature: K1 and R1 signatures are 65 bytes,
// WebAuthn signatures append auth data and client JSON. The returned
// bytes include the tag.
func (d *Decoder) Signature() ([]byte, error) {
	start := d.pos
	tag, err := d.VariantIndex()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0, 1:
		if _, err := d.Raw(65); err != nil {
			return nil, err
		}
	case 2:
		if _, err := d.Raw(65); err != nil {
			return nil, err
		}
		if _, err := d.Bytes(); err != nil {
			return nil, err
		}
		if _, err := d.Bytes(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown signature type %d at offset %d", tag, start)
	}
	return d.data[start:d.pos], nil
}
