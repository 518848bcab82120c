package chainstate

import (
	"bytes"
	"testing"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/encoding"
)

func checksumFor(b byte) chain.Checksum256 {
	var c chain.Checksum256
	for i := range c {
		c[i] = b
	}
	return c
}

func TestGetBlocksResultRoundTrip(t *testing.T) {
	this := BlockPosition{BlockNum: 100, BlockID: checksumFor(1)}
	prev := BlockPosition{BlockNum: 99, BlockID: checksumFor(2)}

	r := &GetBlocksResult{
		Head:             BlockPosition{BlockNum: 105, BlockID: checksumFor(3)},
		LastIrreversible: BlockPosition{BlockNum: 90, BlockID: checksumFor(4)},
		ThisBlock:        &this,
		PrevBlock:        &prev,
		Block:            []byte{1, 2, 3},
		Traces:           []byte{},
		Deltas:           []byte{9},
	}

	raw := EncodeGetBlocksResult(r)
	got, err := DecodeGetBlocksResult(encoding.NewDecoder(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Head != r.Head || got.LastIrreversible != r.LastIrreversible {
		t.Errorf("positions mismatch: %+v", got)
	}
	if got.ThisBlock == nil || *got.ThisBlock != this {
		t.Errorf("this_block = %+v", got.ThisBlock)
	}
	if got.PrevBlock == nil || *got.PrevBlock != prev {
		t.Errorf("prev_block = %+v", got.PrevBlock)
	}
	if !bytes.Equal(got.Block, r.Block) || !bytes.Equal(got.Deltas, r.Deltas) {
		t.Errorf("payloads mismatch")
	}
	if got.Traces == nil || len(got.Traces) != 0 {
		t.Errorf("empty traces should stay present and empty, got %v", got.Traces)
	}

	if !bytes.Equal(EncodeGetBlocksResult(got), raw) {
		t.Error("re-encode did not reproduce the original bytes")
	}
}

func TestGetBlocksResultAbsentOptionals(t *testing.T) {
	r := &GetBlocksResult{
		Head:             BlockPosition{BlockNum: 10, BlockID: checksumFor(1)},
		LastIrreversible: BlockPosition{BlockNum: 5, BlockID: checksumFor(2)},
	}
	got, err := DecodeGetBlocksResult(encoding.NewDecoder(EncodeGetBlocksResult(r)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ThisBlock != nil || got.PrevBlock != nil || got.Block != nil || got.Traces != nil || got.Deltas != nil {
		t.Errorf("absent optionals should decode to nil: %+v", got)
	}
}

func TestGetBlocksResultTruncated(t *testing.T) {
	raw := EncodeGetBlocksResult(&GetBlocksResult{})
	for cut := 1; cut < len(raw); cut += 7 {
		if _, err := DecodeGetBlocksResult(encoding.NewDecoder(raw[:len(raw)-cut])); err == nil {
			t.Fatalf("truncation by %d should fail", cut)
		}
	}
}

func TestTableDeltaRoundTrip(t *testing.T) {
	td := &TableDelta{
		Name: "contract_row",
		Rows: []Row{
			{Present: true, Data: []byte{0, 1, 2}},
			{Present: false, Data: []byte{}},
		},
	}
	got, err := DecodeTableDelta(encoding.NewDecoder(EncodeTableDelta(td)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Name != td.Name || len(got.Rows) != 2 {
		t.Fatalf("delta = %+v", got)
	}
	if !got.Rows[0].Present || !bytes.Equal(got.Rows[0].Data, []byte{0, 1, 2}) {
		t.Errorf("row 0 = %+v", got.Rows[0])
	}
	if got.Rows[1].Present {
		t.Errorf("row 1 should be a deletion")
	}
}

func TestEncodeGetBlocksRequest(t *testing.T) {
	req := &GetBlocksRequest{
		StartBlockNum:       101,
		EndBlockNum:         0xffffffff,
		MaxMessagesInFlight: 0xffffffff,
		HavePositions: []BlockPosition{
			{BlockNum: 100, BlockID: checksumFor(1)},
		},
		IrreversibleOnly: false,
		FetchBlock:       true,
		FetchTraces:      true,
		FetchDeltas:      true,
	}
	raw := EncodeGetBlocksRequest(req, 1)

	d := encoding.NewDecoder(raw)
	tag, err := d.VariantIndex()
	if err != nil || tag != 1 {
		t.Fatalf("variant tag = %d, %v", tag, err)
	}
	start, _ := d.Uint32()
	end, _ := d.Uint32()
	inflight, _ := d.Uint32()
	if start != 101 || end != 0xffffffff || inflight != 0xffffffff {
		t.Errorf("header = %d %d %d", start, end, inflight)
	}
	count, _ := d.Varuint32()
	if count != 1 {
		t.Fatalf("have_positions count = %d", count)
	}
	p, err := DecodeBlockPosition(d)
	if err != nil || p.BlockNum != 100 {
		t.Errorf("position = %+v, %v", p, err)
	}
	for i, want := range []bool{false, true, true, true} {
		got, err := d.Bool()
		if err != nil || got != want {
			t.Errorf("flag %d = %v, %v", i, got, err)
		}
	}
	if d.Remaining() != 0 {
		t.Errorf("trailing bytes: %d", d.Remaining())
	}
}

func encodeAccountObject(a *AccountObject) []byte {
	e := encoding.NewEncoder()
	e.Uint64(a.Name)
	e.Uint8(a.VMType)
	e.Uint8(a.VMVersion)
	e.Bool(a.Privileged)
	e.Int64(int64(a.LastCodeUpdate))
	e.Checksum256(a.CodeVersion)
	e.Uint32(uint32(a.CreationDate))
	e.WriteBytes(a.Code)
	e.WriteBytes(a.Abi)
	return e.Bytes()
}

func TestDecodeAccountObject(t *testing.T) {
	in := &AccountObject{
		Name:           chain.StringToName("eosio.token"),
		Privileged:     true,
		LastCodeUpdate: 1234567,
		CodeVersion:    checksumFor(9),
		CreationDate:   42,
		Code:           []byte{},
		Abi:            []byte{0xaa, 0xbb},
	}
	got, err := DecodeAccountObject(encoding.NewDecoder(encodeAccountObject(in)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Name != in.Name || !got.Privileged || got.LastCodeUpdate != 1234567 {
		t.Errorf("account = %+v", got)
	}
	if got.CreationDate != 42 || !bytes.Equal(got.Abi, in.Abi) {
		t.Errorf("account = %+v", got)
	}
	if len(got.Code) != 0 {
		t.Errorf("code = %v", got.Code)
	}
}

func TestDecodeKeyValueObject(t *testing.T) {
	e := encoding.NewEncoder()
	e.Uint64(chain.StringToName("eosio.token"))
	e.Uint64(chain.StringToName("alice"))
	e.Uint64(chain.StringToName("accounts"))
	e.Uint64(7)
	e.Uint64(chain.StringToName("alice"))
	e.WriteBytes([]byte{1, 2, 3, 4})

	kvo, err := DecodeKeyValueObject(encoding.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if chain.NameToString(kvo.Code) != "eosio.token" || kvo.PrimaryKey != 7 {
		t.Errorf("kvo = %+v", kvo)
	}
	if !bytes.Equal(kvo.Value, []byte{1, 2, 3, 4}) {
		t.Errorf("value = %v", kvo.Value)
	}
}

func encodeActionTrace(e *encoding.Encoder, account, name uint64, inline int) {
	e.VariantIndex(0) // action_trace_v0
	e.VariantIndex(0) // action_receipt_v0
	e.Uint64(account)
	e.Checksum256(chain.Checksum256{})
	e.Uint64(1001)
	e.Uint64(1)
	e.Varuint32(0) // auth_sequence
	e.Varuint32(1) // code_sequence
	e.Varuint32(1) // abi_sequence
	e.Uint64(account)
	e.Uint64(name)
	e.Varuint32(0) // authorization
	e.WriteBytes([]byte{0xde, 0xad})
	e.Bool(false)
	e.Int64(50)
	e.String("console output")
	e.Varuint32(0)  // ram deltas
	e.Bool(false)   // except
	e.Varuint32(uint32(inline))
	for i := 0; i < inline; i++ {
		encodeActionTrace(e, account, name, 0)
	}
}

func encodeTransactionTrace(account, name uint64, inline int) []byte {
	e := encoding.NewEncoder()
	e.VariantIndex(0) // transaction_trace_v0
	e.Checksum256(checksumFor(0x11))
	e.Uint8(0) // executed
	e.Uint32(150)
	e.Varuint32(12)
	e.Int64(200)
	e.Uint64(96)
	e.Bool(false)
	e.Varuint32(1)
	encodeActionTrace(e, account, name, inline)
	e.Bool(false)  // except
	e.Varuint32(0) // failed_dtrx_trace
	return e.Bytes()
}

func TestDecodeTransactionTrace(t *testing.T) {
	account := chain.StringToName("eosio.token")
	action := chain.StringToName("transfer")

	tt, err := DecodeTransactionTrace(encoding.NewDecoder(encodeTransactionTrace(account, action, 2)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if tt.Status != StatusExecuted || tt.CPUUsageUs != 150 || tt.NetUsageWords != 12 {
		t.Errorf("trace header = %+v", tt)
	}
	if len(tt.Traces) != 1 {
		t.Fatalf("action traces = %d", len(tt.Traces))
	}
	at := tt.Traces[0]
	if at.Account != account || at.Name != action {
		t.Errorf("action = %s %s", chain.NameToString(at.Account), chain.NameToString(at.Name))
	}
	if at.Console != "console output" || at.Receipt.GlobalSequence != 1001 {
		t.Errorf("action trace = %+v", at)
	}
	if len(at.InlineTraces) != 2 {
		t.Errorf("inline traces = %d", len(at.InlineTraces))
	}
}

func TestDecodeTransactionTraceBadTag(t *testing.T) {
	raw := encodeTransactionTrace(1, 2, 0)
	raw[0] = 3
	if _, err := DecodeTransactionTrace(encoding.NewDecoder(raw)); err == nil {
		t.Error("non-zero transaction_trace tag should fail")
	}
}

func TestDecodeTransactionTraceBadStatus(t *testing.T) {
	raw := encodeTransactionTrace(1, 2, 0)
	// status byte follows the tag and the 32-byte id
	raw[33] = 9
	if _, err := DecodeTransactionTrace(encoding.NewDecoder(raw)); err == nil {
		t.Error("invalid status should fail")
	}
}

func TestDecodeSignedBlock(t *testing.T) {
	e := encoding.NewEncoder()
	e.Uint32(500)                            // timestamp slot
	e.Uint64(chain.StringToName("producera")) // producer
	e.Uint16(3)
	e.Checksum256(checksumFor(1)) // previous
	e.Checksum256(checksumFor(2)) // transaction_mroot
	e.Checksum256(checksumFor(3)) // action_mroot
	e.Uint32(11)                  // schedule_version
	e.Bool(true)                  // new_producers present
	e.Uint32(12)
	e.Varuint32(1)
	e.Uint64(chain.StringToName("producerb"))
	e.VariantIndex(0)
	e.Raw(make([]byte, 33)) // signing key
	e.Varuint32(0)          // header extensions
	e.VariantIndex(0)
	e.Raw(make([]byte, 65)) // producer signature
	e.Varuint32(2)          // transactions
	// receipt 0: deferred id
	e.Uint8(0)
	e.Uint32(10)
	e.Varuint32(1)
	e.VariantIndex(0)
	e.Checksum256(checksumFor(7))
	// receipt 1: packed transaction
	e.Uint8(0)
	e.Uint32(20)
	e.Varuint32(2)
	e.VariantIndex(1)
	e.Varuint32(1)
	e.VariantIndex(0)
	e.Raw(make([]byte, 65))
	e.Uint8(0)
	e.WriteBytes(nil)
	e.WriteBytes([]byte{5, 6, 7})
	e.Varuint32(0) // block extensions

	b, err := DecodeSignedBlock(encoding.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if b.Timestamp != 500 || chain.NameToString(b.Producer) != "producera" || b.Confirmed != 3 {
		t.Errorf("header = %+v", b)
	}
	if b.NewProducers == nil || len(b.NewProducers.Producers) != 1 {
		t.Fatalf("new_producers = %+v", b.NewProducers)
	}
	if len(b.Transactions) != 2 {
		t.Fatalf("transactions = %d", len(b.Transactions))
	}
	if b.Transactions[0].TrxID == nil || *b.Transactions[0].TrxID != checksumFor(7) {
		t.Errorf("receipt 0 = %+v", b.Transactions[0])
	}
	pt := b.Transactions[1].PackedTrx
	if pt == nil || len(pt.Signatures) != 1 || !bytes.Equal(pt.PackedTrx, []byte{5, 6, 7}) {
		t.Errorf("receipt 1 = %+v", pt)
	}
}
