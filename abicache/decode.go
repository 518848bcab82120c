package abicache

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/encoding"
)

// Schema-driven decoding of an opaque buffer into tagged values:
// structs become maps, arrays become slices, variants become
// ["alternative_name", value] pairs. Names, digests, byte blobs and
// timestamps render as strings the way downstream JSON exporters expect
// them.

func (t *Types) Decode(data []byte, typeName string) (interface{}, error) {
	d := encoding.NewDecoder(data)
	v, err := t.DecodeType(d, typeName)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (t *Types) DecodeType(d *encoding.Decoder, typeName string) (interface{}, error) {
	if alt, ok := strings.CutSuffix(typeName, "$"); ok {
		// binary extension: absent when the buffer is exhausted
		if d.Remaining() == 0 {
			return nil, nil
		}
		typeName = alt
	}

	if inner, ok := strings.CutSuffix(typeName, "?"); ok {
		present, err := d.Optional()
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, nil
		}
		return t.DecodeType(d, inner)
	}

	if inner, ok := strings.CutSuffix(typeName, "[]"); ok {
		count, err := d.Varuint32()
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := t.DecodeType(d, inner)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	resolved, err := t.resolve(typeName)
	if err != nil {
		return nil, err
	}
	if resolved != typeName {
		// aliases may point at suffixed types ("uint64[]")
		return t.DecodeType(d, resolved)
	}

	if v, ok, err := t.decodeBuiltin(d, resolved); ok || err != nil {
		return v, err
	}

	if s, ok := t.structs[resolved]; ok {
		return t.decodeStruct(d, s)
	}

	if v, ok := t.variants[resolved]; ok {
		index, err := d.VariantIndex()
		if err != nil {
			return nil, err
		}
		if int(index) >= len(v.Types) {
			return nil, fmt.Errorf("variant %q index %d out of range", resolved, index)
		}
		inner, err := t.DecodeType(d, v.Types[index])
		if err != nil {
			return nil, err
		}
		return []interface{}{v.Types[index], inner}, nil
	}

	return nil, fmt.Errorf("unknown type %q", typeName)
}

func (t *Types) decodeStruct(d *encoding.Decoder, s *Struct) (interface{}, error) {
	out := make(map[string]interface{}, len(s.Fields))

	if s.Base != "" {
		base, err := t.DecodeType(d, s.Base)
		if err != nil {
			return nil, fmt.Errorf("struct %s base: %w", s.Name, err)
		}
		baseMap, ok := base.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("struct %s base %q is not a struct", s.Name, s.Base)
		}
		for k, v := range baseMap {
			out[k] = v
		}
	}

	for _, f := range s.Fields {
		if strings.HasSuffix(f.Type, "$") && d.Remaining() == 0 {
			continue
		}
		v, err := t.DecodeType(d, f.Type)
		if err != nil {
			return nil, fmt.Errorf("struct %s field %s: %w", s.Name, f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (t *Types) decodeBuiltin(d *encoding.Decoder, typeName string) (interface{}, bool, error) {
	var v interface{}
	var err error

	switch typeName {
	case "bool":
		v, err = d.Bool()
	case "int8":
		v, err = d.Int8()
	case "uint8":
		v, err = d.Uint8()
	case "int16":
		v, err = d.Int16()
	case "uint16":
		v, err = d.Uint16()
	case "int32":
		v, err = d.Int32()
	case "uint32":
		v, err = d.Uint32()
	case "int64":
		v, err = d.Int64()
	case "uint64":
		v, err = d.Uint64()
	case "int128", "uint128":
		var raw []byte
		raw, err = d.Raw(16)
		if err == nil {
			v = "0x" + hex.EncodeToString(raw)
		}
	case "varuint32":
		v, err = d.Varuint32()
	case "varint32":
		v, err = d.Varint32()
	case "float32":
		var bits uint32
		bits, err = d.Uint32()
		if err == nil {
			v = math.Float32frombits(bits)
		}
	case "float64":
		var bits uint64
		bits, err = d.Uint64()
		if err == nil {
			v = math.Float64frombits(bits)
		}
	case "float128":
		var raw []byte
		raw, err = d.Raw(16)
		if err == nil {
			v = "0x" + hex.EncodeToString(raw)
		}
	case "time_point":
		var us int64
		us, err = d.Int64()
		if err == nil {
			v = chain.TimePoint(us).String()
		}
	case "time_point_sec":
		var sec uint32
		sec, err = d.Uint32()
		if err == nil {
			v = chain.TimePoint(int64(sec) * 1000000).String()
		}
	case "block_timestamp_type":
		var slot uint32
		slot, err = d.Uint32()
		if err == nil {
			v = chain.BlockTimestamp(slot).String()
		}
	case "name":
		var n uint64
		n, err = d.Uint64()
		if err == nil {
			v = chain.NameToString(n)
		}
	case "bytes":
		var raw []byte
		raw, err = d.Bytes()
		if err == nil {
			v = hex.EncodeToString(raw)
		}
	case "string":
		v, err = d.String()
	case "checksum160":
		var raw [20]byte
		raw, err = d.Checksum160()
		if err == nil {
			v = hex.EncodeToString(raw[:])
		}
	case "checksum256":
		var c chain.Checksum256
		c, err = d.Checksum256()
		if err == nil {
			v = c.String()
		}
	case "checksum512":
		var raw [64]byte
		raw, err = d.Checksum512()
		if err == nil {
			v = hex.EncodeToString(raw[:])
		}
	case "public_key":
		var raw []byte
		raw, err = d.PublicKey()
		if err == nil {
			v = hex.EncodeToString(raw)
		}
	case "signature":
		var raw []byte
		raw, err = d.Signature()
		if err == nil {
			v = hex.EncodeToString(raw)
		}
	case "symbol":
		var sym uint64
		sym, err = d.Uint64()
		if err == nil {
			v = chain.SymbolToString(sym)
		}
	case "symbol_code":
		var code uint64
		code, err = d.Uint64()
		if err == nil {
			v = chain.SymbolCodeToString(code)
		}
	case "asset":
		var amount int64
		amount, err = d.Int64()
		if err == nil {
			var sym uint64
			sym, err = d.Uint64()
			if err == nil {
				v = chain.Asset{Amount: amount, Symbol: sym}.String()
			}
		}
	default:
		return nil, false, nil
	}

	return v, true, err
}
