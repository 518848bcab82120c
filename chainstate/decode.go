package chainstate

import (
	"fmt"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/encoding"
)

// Several stream structures open with a single-alternative variant tag;
// the only valid index is zero.
func checkZeroTag(d *encoding.Decoder, what string) error {
	tag, err := d.VariantIndex()
	if err != nil {
		return err
	}
	if tag != 0 {
		return fmt.Errorf("%s: unexpected variant index %d", what, tag)
	}
	return nil
}

func DecodeBlockPosition(d *encoding.Decoder) (BlockPosition, error) {
	var p BlockPosition
	var err error
	if p.BlockNum, err = d.Uint32(); err != nil {
		return p, err
	}
	if p.BlockID, err = d.Checksum256(); err != nil {
		return p, err
	}
	return p, nil
}

func decodeOptionalPosition(d *encoding.Decoder) (*BlockPosition, error) {
	present, err := d.Optional()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	p, err := DecodeBlockPosition(d)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeOptionalBytes(d *encoding.Decoder) ([]byte, error) {
	present, err := d.Optional()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return d.Bytes()
}

// DecodeGetBlocksResult decodes the result payload, after the outer
// result-variant tag has been verified by the caller.
func DecodeGetBlocksResult(d *encoding.Decoder) (*GetBlocksResult, error) {
	var r GetBlocksResult
	var err error
	if r.Head, err = DecodeBlockPosition(d); err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	if r.LastIrreversible, err = DecodeBlockPosition(d); err != nil {
		return nil, fmt.Errorf("last_irreversible: %w", err)
	}
	if r.ThisBlock, err = decodeOptionalPosition(d); err != nil {
		return nil, fmt.Errorf("this_block: %w", err)
	}
	if r.PrevBlock, err = decodeOptionalPosition(d); err != nil {
		return nil, fmt.Errorf("prev_block: %w", err)
	}
	if r.Block, err = decodeOptionalBytes(d); err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}
	if r.Traces, err = decodeOptionalBytes(d); err != nil {
		return nil, fmt.Errorf("traces: %w", err)
	}
	if r.Deltas, err = decodeOptionalBytes(d); err != nil {
		return nil, fmt.Errorf("deltas: %w", err)
	}
	return &r, nil
}

// DecodeTableDelta decodes one table delta, after the caller verified
// the table_delta variant tag.
func DecodeTableDelta(d *encoding.Decoder) (*TableDelta, error) {
	var td TableDelta
	var err error
	if td.Name, err = d.String(); err != nil {
		return nil, err
	}
	count, err := d.Varuint32()
	if err != nil {
		return nil, err
	}
	td.Rows = make([]Row, 0, count)
	for i := uint32(0); i < count; i++ {
		var row Row
		if row.Present, err = d.Bool(); err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", td.Name, i, err)
		}
		if row.Data, err = d.Bytes(); err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", td.Name, i, err)
		}
		td.Rows = append(td.Rows, row)
	}
	return &td, nil
}

// DecodeAccountObject decodes an "account" table row, after the row's
// variant tag.
func DecodeAccountObject(d *encoding.Decoder) (*AccountObject, error) {
	var a AccountObject
	var err error
	if a.Name, err = d.Uint64(); err != nil {
		return nil, err
	}
	if a.VMType, err = d.Uint8(); err != nil {
		return nil, err
	}
	if a.VMVersion, err = d.Uint8(); err != nil {
		return nil, err
	}
	if a.Privileged, err = d.Bool(); err != nil {
		return nil, err
	}
	us, err := d.Int64()
	if err != nil {
		return nil, err
	}
	a.LastCodeUpdate = chain.TimePoint(us)
	if a.CodeVersion, err = d.Checksum256(); err != nil {
		return nil, err
	}
	slot, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	a.CreationDate = chain.BlockTimestamp(slot)
	if a.Code, err = d.Bytes(); err != nil {
		return nil, err
	}
	if a.Abi, err = d.Bytes(); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecodeKeyValueObject decodes a "contract_row" table row, after the
// row's variant tag.
func DecodeKeyValueObject(d *encoding.Decoder) (*KeyValueObject, error) {
	var kvo KeyValueObject
	var err error
	if kvo.Code, err = d.Uint64(); err != nil {
		return nil, err
	}
	if kvo.Scope, err = d.Uint64(); err != nil {
		return nil, err
	}
	if kvo.Table, err = d.Uint64(); err != nil {
		return nil, err
	}
	if kvo.PrimaryKey, err = d.Uint64(); err != nil {
		return nil, err
	}
	if kvo.Payer, err = d.Uint64(); err != nil {
		return nil, err
	}
	if kvo.Value, err = d.Bytes(); err != nil {
		return nil, err
	}
	return &kvo, nil
}

func decodeOptionalString(d *encoding.Decoder) (*string, error) {
	present, err := d.Optional()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := d.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeActionReceipt(d *encoding.Decoder) (ActionReceipt, error) {
	var r ActionReceipt
	if err := checkZeroTag(d, "action_receipt"); err != nil {
		return r, err
	}
	var err error
	if r.Receiver, err = d.Uint64(); err != nil {
		return r, err
	}
	if r.ActDigest, err = d.Checksum256(); err != nil {
		return r, err
	}
	if r.GlobalSequence, err = d.Uint64(); err != nil {
		return r, err
	}
	if r.RecvSequence, err = d.Uint64(); err != nil {
		return r, err
	}
	count, err := d.Varuint32()
	if err != nil {
		return r, err
	}
	r.AuthSequence = make([]AuthSequence, 0, count)
	for i := uint32(0); i < count; i++ {
		var as AuthSequence
		if as.Account, err = d.Uint64(); err != nil {
			return r, err
		}
		if as.Sequence, err = d.Uint64(); err != nil {
			return r, err
		}
		r.AuthSequence = append(r.AuthSequence, as)
	}
	if r.CodeSequence, err = d.Varuint32(); err != nil {
		return r, err
	}
	if r.AbiSequence, err = d.Varuint32(); err != nil {
		return r, err
	}
	return r, nil
}

func decodeActionTrace(d *encoding.Decoder) (ActionTrace, error) {
	var at ActionTrace
	if err := checkZeroTag(d, "action_trace"); err != nil {
		return at, err
	}
	var err error
	if at.Receipt, err = decodeActionReceipt(d); err != nil {
		return at, fmt.Errorf("receipt: %w", err)
	}
	if at.Account, err = d.Uint64(); err != nil {
		return at, err
	}
	if at.Name, err = d.Uint64(); err != nil {
		return at, err
	}
	count, err := d.Varuint32()
	if err != nil {
		return at, err
	}
	at.Authorization = make([]PermissionLevel, 0, count)
	for i := uint32(0); i < count; i++ {
		var pl PermissionLevel
		if pl.Actor, err = d.Uint64(); err != nil {
			return at, err
		}
		if pl.Permission, err = d.Uint64(); err != nil {
			return at, err
		}
		at.Authorization = append(at.Authorization, pl)
	}
	if at.Data, err = d.Bytes(); err != nil {
		return at, err
	}
	if at.ContextFree, err = d.Bool(); err != nil {
		return at, err
	}
	if at.Elapsed, err = d.Int64(); err != nil {
		return at, err
	}
	if at.Console, err = d.String(); err != nil {
		return at, err
	}
	if count, err = d.Varuint32(); err != nil {
		return at, err
	}
	at.AccountRamDeltas = make([]AccountRamDelta, 0, count)
	for i := uint32(0); i < count; i++ {
		var rd AccountRamDelta
		if rd.Account, err = d.Uint64(); err != nil {
			return at, err
		}
		if rd.Delta, err = d.Int64(); err != nil {
			return at, err
		}
		at.AccountRamDeltas = append(at.AccountRamDeltas, rd)
	}
	if at.Except, err = decodeOptionalString(d); err != nil {
		return at, err
	}
	if count, err = d.Varuint32(); err != nil {
		return at, err
	}
	for i := uint32(0); i < count; i++ {
		inner, err := decodeActionTrace(d)
		if err != nil {
			return at, fmt.Errorf("inline trace %d: %w", i, err)
		}
		at.InlineTraces = append(at.InlineTraces, inner)
	}
	return at, nil
}

// DecodeTransactionTrace decodes one transaction trace including its
// leading variant tag. Action traces nest recursively; failed deferred
// transactions carry whole child traces.
func DecodeTransactionTrace(d *encoding.Decoder) (*TransactionTrace, error) {
	if err := checkZeroTag(d, "transaction_trace"); err != nil {
		return nil, err
	}
	var tt TransactionTrace
	var err error
	if tt.ID, err = d.Checksum256(); err != nil {
		return nil, err
	}
	status, err := d.Uint8()
	if err != nil {
		return nil, err
	}
	if status > uint8(StatusExpired) {
		return nil, fmt.Errorf("invalid transaction status %d", status)
	}
	tt.Status = TransactionStatus(status)
	if tt.CPUUsageUs, err = d.Uint32(); err != nil {
		return nil, err
	}
	if tt.NetUsageWords, err = d.Varuint32(); err != nil {
		return nil, err
	}
	if tt.Elapsed, err = d.Int64(); err != nil {
		return nil, err
	}
	if tt.NetUsage, err = d.Uint64(); err != nil {
		return nil, err
	}
	if tt.Scheduled, err = d.Bool(); err != nil {
		return nil, err
	}
	count, err := d.Varuint32()
	if err != nil {
		return nil, err
	}
	tt.Traces = make([]ActionTrace, 0, count)
	for i := uint32(0); i < count; i++ {
		at, err := decodeActionTrace(d)
		if err != nil {
			return nil, fmt.Errorf("action trace %d: %w", i, err)
		}
		tt.Traces = append(tt.Traces, at)
	}
	if tt.Except, err = decodeOptionalString(d); err != nil {
		return nil, err
	}
	if count, err = d.Varuint32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		child, err := DecodeTransactionTrace(d)
		if err != nil {
			return nil, fmt.Errorf("failed dtrx trace %d: %w", i, err)
		}
		tt.FailedDtrxTrace = append(tt.FailedDtrxTrace, *child)
	}
	return &tt, nil
}

func decodeExtensions(d *encoding.Decoder) ([]Extension, error) {
	count, err := d.Varuint32()
	if err != nil {
		return nil, err
	}
	out := make([]Extension, 0, count)
	for i := uint32(0); i < count; i++ {
		var ext Extension
		if ext.Type, err = d.Uint16(); err != nil {
			return nil, err
		}
		if ext.Data, err = d.Bytes(); err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, nil
}

// DecodeSignedBlock decodes the block payload of a result.
func DecodeSignedBlock(d *encoding.Decoder) (*SignedBlock, error) {
	var b SignedBlock
	var err error

	slot, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	b.Timestamp = chain.BlockTimestamp(slot)
	if b.Producer, err = d.Uint64(); err != nil {
		return nil, err
	}
	if b.Confirmed, err = d.Uint16(); err != nil {
		return nil, err
	}
	if b.Previous, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if b.TransactionMroot, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if b.ActionMroot, err = d.Checksum256(); err != nil {
		return nil, err
	}
	if b.ScheduleVersion, err = d.Uint32(); err != nil {
		return nil, err
	}

	present, err := d.Optional()
	if err != nil {
		return nil, err
	}
	if present {
		var ps ProducerSchedule
		if ps.Version, err = d.Uint32(); err != nil {
			return nil, err
		}
		count, err := d.Varuint32()
		if err != nil {
			return nil, err
		}
		ps.Producers = make([]ProducerKey, 0, count)
		for i := uint32(0); i < count; i++ {
			var pk ProducerKey
			if pk.ProducerName, err = d.Uint64(); err != nil {
				return nil, err
			}
			if pk.BlockSigningKey, err = d.PublicKey(); err != nil {
				return nil, err
			}
			ps.Producers = append(ps.Producers, pk)
		}
		b.NewProducers = &ps
	}

	if b.HeaderExtensions, err = decodeExtensions(d); err != nil {
		return nil, err
	}
	if b.ProducerSignature, err = d.Signature(); err != nil {
		return nil, err
	}

	count, err := d.Varuint32()
	if err != nil {
		return nil, err
	}
	b.Transactions = make([]TransactionReceipt, 0, count)
	for i := uint32(0); i < count; i++ {
		tr, err := decodeTransactionReceipt(d)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		b.Transactions = append(b.Transactions, tr)
	}

	if b.BlockExtensions, err = decodeExtensions(d); err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeTransactionReceipt(d *encoding.Decoder) (TransactionReceipt, error) {
	var tr TransactionReceipt
	var err error
	if tr.Status, err = d.Uint8(); err != nil {
		return tr, err
	}
	if tr.CPUUsageUs, err = d.Uint32(); err != nil {
		return tr, err
	}
	if tr.NetUsageWords, err = d.Varuint32(); err != nil {
		return tr, err
	}

	tag, err := d.VariantIndex()
	if err != nil {
		return tr, err
	}
	switch tag {
	case 0:
		id, err := d.Checksum256()
		if err != nil {
			return tr, err
		}
		tr.TrxID = &id
	case 1:
		var pt PackedTransaction
		count, err := d.Varuint32()
		if err != nil {
			return tr, err
		}
		pt.Signatures = make([][]byte, 0, count)
		for i := uint32(0); i < count; i++ {
			sig, err := d.Signature()
			if err != nil {
				return tr, err
			}
			pt.Signatures = append(pt.Signatures, sig)
		}
		if pt.Compression, err = d.Uint8(); err != nil {
			return tr, err
		}
		if pt.PackedContextFreeData, err = d.Bytes(); err != nil {
			return tr, err
		}
		if pt.PackedTrx, err = d.Bytes(); err != nil {
			return tr, err
		}
		tr.PackedTrx = &pt
	default:
		return tr, fmt.Errorf("transaction receipt: unexpected trx variant %d", tag)
	}
	return tr, nil
}
