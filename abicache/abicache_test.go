package abicache

import (
	"testing"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/encoding"
)

func mustTypes(t *testing.T, abiJSON string) *Types {
	t.Helper()
	def, err := ParseDef([]byte(abiJSON))
	if err != nil {
		t.Fatalf("ParseDef failed: %v", err)
	}
	types, err := NewTypes(def)
	if err != nil {
		t.Fatalf("NewTypes failed: %v", err)
	}
	return types
}

func TestParseDefVersionCheck(t *testing.T) {
	tests := []struct {
		name    string
		version string
		ok      bool
	}{
		{"v1.0", "eosio::abi/1.0", true},
		{"v1.1", "eosio::abi/1.1", true},
		{"v1.2", "eosio::abi/1.2", true},
		{"v2", "eosio::abi/2.0", false},
		{"empty", "", false},
		{"garbage", "something", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDef([]byte(`{"version":"` + tt.version + `"}`))
			if tt.ok && err != nil {
				t.Errorf("version %q should parse: %v", tt.version, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("version %q should be rejected", tt.version)
			}
		})
	}

	if _, err := ParseDef([]byte(`not json`)); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestDecodeStructWithBuiltins(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"structs": [
			{"name": "transfer", "base": "", "fields": [
				{"name": "from", "type": "name"},
				{"name": "to", "type": "name"},
				{"name": "quantity", "type": "asset"},
				{"name": "memo", "type": "string"}
			]}
		]
	}`)

	e := encoding.NewEncoder()
	e.Name(chain.StringToName("alice"))
	e.Name(chain.StringToName("bob"))
	e.Int64(10000)
	e.Uint64(chain.NewSymbol(4, chain.StringToSymbolCode("EOS")))
	e.String("rent")

	v, err := types.Decode(e.Bytes(), "transfer")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m := v.(map[string]interface{})
	if m["from"] != "alice" || m["to"] != "bob" {
		t.Errorf("names = %v, %v", m["from"], m["to"])
	}
	if m["quantity"] != "1.0000 EOS" {
		t.Errorf("quantity = %v", m["quantity"])
	}
	if m["memo"] != "rent" {
		t.Errorf("memo = %v", m["memo"])
	}
}

func TestDecodeAliasBaseArrayOptional(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"types": [{"new_type_name": "account_name", "type": "name"}],
		"structs": [
			{"name": "header", "base": "", "fields": [
				{"name": "owner", "type": "account_name"}
			]},
			{"name": "record", "base": "header", "fields": [
				{"name": "tags", "type": "uint32[]"},
				{"name": "note", "type": "string?"}
			]}
		]
	}`)

	e := encoding.NewEncoder()
	e.Name(chain.StringToName("carol"))
	e.Varuint32(2)
	e.Uint32(7)
	e.Uint32(9)
	e.Bool(false)

	v, err := types.Decode(e.Bytes(), "record")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m := v.(map[string]interface{})
	if m["owner"] != "carol" {
		t.Errorf("base field missing: %v", m)
	}
	tags := m["tags"].([]interface{})
	if len(tags) != 2 || tags[0].(uint32) != 7 || tags[1].(uint32) != 9 {
		t.Errorf("tags = %v", tags)
	}
	if m["note"] != nil {
		t.Errorf("absent optional should be nil, got %v", m["note"])
	}
}

func TestDecodeVariant(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"structs": [{"name": "wrap", "base": "", "fields": [{"name": "v", "type": "choice"}]}],
		"variants": [{"name": "choice", "types": ["uint32", "string"]}]
	}`)

	e := encoding.NewEncoder()
	e.VariantIndex(1)
	e.String("picked")

	v, err := types.Decode(e.Bytes(), "choice")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	pair := v.([]interface{})
	if pair[0] != "string" || pair[1] != "picked" {
		t.Errorf("variant = %v", pair)
	}

	e = encoding.NewEncoder()
	e.VariantIndex(5)
	if _, err := types.Decode(e.Bytes(), "choice"); err == nil {
		t.Error("out-of-range variant index should fail")
	}
}

func TestDecodeBinaryExtension(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"structs": [{"name": "row", "base": "", "fields": [
			{"name": "id", "type": "uint64"},
			{"name": "extra", "type": "uint32$"}
		]}]
	}`)

	e := encoding.NewEncoder()
	e.Uint64(1)
	v, err := types.Decode(e.Bytes(), "row")
	if err != nil {
		t.Fatalf("Decode without extension failed: %v", err)
	}
	if _, ok := v.(map[string]interface{})["extra"]; ok {
		t.Error("absent extension should be omitted")
	}

	e.Uint32(42)
	v, err = types.Decode(e.Bytes(), "row")
	if err != nil {
		t.Fatalf("Decode with extension failed: %v", err)
	}
	if v.(map[string]interface{})["extra"].(uint32) != 42 {
		t.Errorf("extension value = %v", v)
	}
}

func TestDecodeErrors(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"structs": [{"name": "thing", "base": "", "fields": [{"name": "x", "type": "mystery"}]}]
	}`)

	if _, err := types.Decode([]byte{1}, "thing"); err == nil {
		t.Error("unknown field type should fail")
	}
	if _, err := types.Decode(nil, "nosuchtype"); err == nil {
		t.Error("unknown type should fail")
	}

	short := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"structs": [{"name": "pair", "base": "", "fields": [
			{"name": "a", "type": "uint64"},
			{"name": "b", "type": "uint64"}
		]}]
	}`)
	if _, err := short.Decode([]byte{1, 2, 3}, "pair"); err == nil {
		t.Error("truncated buffer should fail")
	}
}

func TestCheckVariant(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"variants": [
			{"name": "result", "types": ["get_status_result_v0", "get_blocks_result_v0"]},
			{"name": "table_delta", "types": ["table_delta_v0"]}
		]
	}`)

	t.Run("expected tag", func(t *testing.T) {
		d := encoding.NewDecoder([]byte{0x01})
		if err := types.CheckVariant(d, "result", "get_blocks_result_v0"); err != nil {
			t.Errorf("CheckVariant failed: %v", err)
		}
	})

	t.Run("wrong name", func(t *testing.T) {
		d := encoding.NewDecoder([]byte{0x00})
		if err := types.CheckVariant(d, "result", "get_blocks_result_v0"); err == nil {
			t.Error("wrong alternative should fail")
		}
	})

	t.Run("out of range", func(t *testing.T) {
		d := encoding.NewDecoder([]byte{0x07})
		if err := types.CheckVariant(d, "table_delta", "table_delta_v0"); err == nil {
			t.Error("out of range index should fail")
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		d := encoding.NewDecoder([]byte{0x00})
		if err := types.CheckVariant(d, "nope", "x"); err == nil {
			t.Error("unknown variant should fail")
		}
	})

	t.Run("truncated", func(t *testing.T) {
		d := encoding.NewDecoder(nil)
		if err := types.CheckVariant(d, "result", "get_blocks_result_v0"); err == nil {
			t.Error("empty buffer should fail")
		}
	})
}

func TestVariantIndexOf(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"variants": [{"name": "request", "types": ["get_status_request_v0", "get_blocks_request_v0", "get_blocks_ack_request_v0"]}]
	}`)

	idx, err := types.VariantIndexOf("request", "get_blocks_request_v0")
	if err != nil || idx != 1 {
		t.Errorf("VariantIndexOf = %d, %v", idx, err)
	}
	if _, err := types.VariantIndexOf("request", "bogus"); err == nil {
		t.Error("unknown alternative should fail")
	}
	if _, err := types.VariantIndexOf("bogus", "x"); err == nil {
		t.Error("unknown variant should fail")
	}
}

func TestAliasToSuffixedType(t *testing.T) {
	types := mustTypes(t, `{
		"version": "eosio::abi/1.1",
		"types": [{"new_type_name": "ids", "type": "uint64[]"}],
		"structs": [{"name": "holder", "base": "", "fields": [{"name": "ids", "type": "ids"}]}]
	}`)

	e := encoding.NewEncoder()
	e.Varuint32(2)
	e.Uint64(11)
	e.Uint64(22)

	v, err := types.Decode(e.Bytes(), "holder")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ids := v.(map[string]interface{})["ids"].([]interface{})
	if len(ids) != 2 || ids[0].(uint64) != 11 || ids[1].(uint64) != 22 {
		t.Errorf("ids = %v", ids)
	}
}

func TestAliasCycleRejected(t *testing.T) {
	def, err := ParseDef([]byte(`{
		"version": "eosio::abi/1.1",
		"types": [
			{"new_type_name": "a", "type": "b"},
			{"new_type_name": "b", "type": "a"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseDef failed: %v", err)
	}
	if _, err := NewTypes(def); err == nil {
		t.Error("alias cycle should be rejected")
	}
}

// packAbi serializes a minimal ABI in the packed on-chain layout:
// version, typedefs, structs, actions, tables, ricardian clauses, error
// messages, abi extensions.
func packAbi(e *encoding.Encoder, structs []Struct, tables []Table) []byte {
	e.String("eosio::abi/1.1")
	e.Varuint32(0) // types
	e.Varuint32(uint32(len(structs)))
	for _, s := range structs {
		e.String(s.Name)
		e.String(s.Base)
		e.Varuint32(uint32(len(s.Fields)))
		for _, f := range s.Fields {
			e.String(f.Name)
			e.String(f.Type)
		}
	}
	e.Varuint32(0) // actions
	e.Varuint32(uint32(len(tables)))
	for _, tbl := range tables {
		e.Name(chain.StringToName(tbl.Name))
		e.String(tbl.IndexType)
		e.Varuint32(0) // key_names
		e.Varuint32(0) // key_types
		e.String(tbl.Type)
	}
	e.Varuint32(0) // ricardian_clauses
	e.Varuint32(0) // error_messages
	e.Varuint32(0) // abi_extensions
	return e.Bytes()
}

type fakeStore struct {
	abis map[uint64][]byte
}

func (s *fakeStore) GetContractAbi(account uint64) ([]byte, bool) {
	b, ok := s.abis[account]
	return b, ok
}

func statRowAbi() []byte {
	return packAbi(encoding.NewEncoder(),
		[]Struct{{Name: "stat_row", Fields: []Field{
			{Name: "supply", Type: "uint64"},
			{Name: "issuer", Type: "name"},
		}}},
		[]Table{{Name: "stat", IndexType: "i64", Type: "stat_row"}})
}

func TestCacheInstallAndDecodeTableRow(t *testing.T) {
	account := chain.StringToName("eosio.token")
	store := &fakeStore{abis: map[uint64][]byte{}}
	cache := NewCache(store)

	def, err := cache.Install(account, statRowAbi())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if def.Version != "eosio::abi/1.1" {
		t.Errorf("def version = %q", def.Version)
	}
	if !cache.Loaded(account) {
		t.Error("account should be loaded after Install")
	}

	e := encoding.NewEncoder()
	e.Uint64(1000)
	e.Name(chain.StringToName("issuer1"))

	v, err := cache.DecodeTableRow(account, "stat", e.Bytes())
	if err != nil {
		t.Fatalf("DecodeTableRow failed: %v", err)
	}
	m := v.(map[string]interface{})
	if m["supply"].(uint64) != 1000 || m["issuer"] != "issuer1" {
		t.Errorf("row = %v", m)
	}

	if _, err := cache.DecodeTableRow(account, "nosuchtable", nil); err == nil {
		t.Error("unknown table should fail")
	}
}

func TestCacheInstallInvalid(t *testing.T) {
	cache := NewCache(&fakeStore{abis: map[uint64][]byte{}})
	if _, err := cache.Install(1, []byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("garbage ABI bytes should fail to install")
	}
	if cache.Loaded(1) {
		t.Error("failed install must not load the account")
	}
}

func TestCacheReadyLazyLoad(t *testing.T) {
	account := chain.StringToName("lazyload")
	store := &fakeStore{abis: map[uint64][]byte{account: statRowAbi()}}
	cache := NewCache(store)

	if cache.Loaded(account) {
		t.Error("account should not be loaded before first use")
	}
	if !cache.Ready(account) {
		t.Fatal("Ready should install from the store")
	}
	if !cache.Loaded(account) {
		t.Error("account should be loaded after Ready")
	}

	// ready again without touching the store
	store.abis = nil
	if !cache.Ready(account) {
		t.Error("loaded account must stay ready without a store lookup")
	}

	if cache.Ready(chain.StringToName("unknown")) {
		t.Error("account without a durable row should not be ready")
	}
}

func TestCacheResetAndForget(t *testing.T) {
	account := chain.StringToName("resettable")
	store := &fakeStore{abis: map[uint64][]byte{account: statRowAbi()}}
	cache := NewCache(store)

	if !cache.Ready(account) {
		t.Fatal("Ready failed")
	}

	cache.Reset()
	if cache.Loaded(account) {
		t.Error("Reset should drop the context")
	}
	if !cache.Ready(account) {
		t.Error("Reset context should rehydrate from the store")
	}

	cache.Forget(account)
	if cache.Loaded(account) {
		t.Error("Forget should evict the account")
	}
}

func TestCacheReadyWithCorruptStoredAbi(t *testing.T) {
	account := chain.StringToName("corrupt")
	store := &fakeStore{abis: map[uint64][]byte{account: {0x01, 0x02}}}
	cache := NewCache(store)
	if cache.Ready(account) {
		t.Error("corrupt stored ABI should not become ready")
	}
}
