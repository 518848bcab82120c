package chainstate

import (
	"github.com/EOSTribe/eos-chronicle/encoding"
)

// EncodeGetBlocksRequest serializes the request envelope. variantIndex
// is the alternative index of get_blocks_request_v0 within the protocol
// ABI's request variant, resolved by the caller against the ABI the
// upstream advertised.
func EncodeGetBlocksRequest(req *GetBlocksRequest, variantIndex uint32) []byte {
	e := encoding.NewEncoder()
	e.VariantIndex(variantIndex)
	e.Uint32(req.StartBlockNum)
	e.Uint32(req.EndBlockNum)
	e.Uint32(req.MaxMessagesInFlight)
	e.Varuint32(uint32(len(req.HavePositions)))
	for _, p := range req.HavePositions {
		e.Uint32(p.BlockNum)
		e.Checksum256(p.BlockID)
	}
	e.Bool(req.IrreversibleOnly)
	e.Bool(req.FetchBlock)
	e.Bool(req.FetchTraces)
	e.Bool(req.FetchDeltas)
	return e.Bytes()
}

// EncodeGetBlocksResult is the mirror of DecodeGetBlocksResult, without
// the outer result-variant tag. It exists for round-trip tests and for
// building result frames in tests.
func EncodeGetBlocksResult(r *GetBlocksResult) []byte {
	e := encoding.NewEncoder()
	encodeBlockPosition(e, r.Head)
	encodeBlockPosition(e, r.LastIrreversible)
	encodeOptionalPosition(e, r.ThisBlock)
	encodeOptionalPosition(e, r.PrevBlock)
	encodeOptionalBytes(e, r.Block)
	encodeOptionalBytes(e, r.Traces)
	encodeOptionalBytes(e, r.Deltas)
	return e.Bytes()
}

func encodeBlockPosition(e *encoding.Encoder, p BlockPosition) {
	e.Uint32(p.BlockNum)
	e.Checksum256(p.BlockID)
}

func encodeOptionalPosition(e *encoding.Encoder, p *BlockPosition) {
	if p == nil {
		e.OptionalFlag(false)
		return
	}
	e.OptionalFlag(true)
	encodeBlockPosition(e, *p)
}

func encodeOptionalBytes(e *encoding.Encoder, b []byte) {
	if b == nil {
		e.OptionalFlag(false)
		return
	}
	e.OptionalFlag(true)
	e.WriteBytes(b)
}

// EncodeTableDelta mirrors DecodeTableDelta, without the table_delta
// variant tag.
func EncodeTableDelta(td *TableDelta) []byte {
	e := encoding.NewEncoder()
	e.String(td.Name)
	e.Varuint32(uint32(len(td.Rows)))
	for _, row := range td.Rows {
		e.Bool(row.Present)
		e.WriteBytes(row.Data)
	}
	return e.Bytes()
}
