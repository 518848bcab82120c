package abicache

import (
	"fmt"
	"strings"

	"github.com/EOSTribe/eos-chronicle/encoding"
)

// Def is a parsed ABI description: the protocol ABI advertised by the
// state-history endpoint uses the same shape as per-contract ABIs.
type Def struct {
	Version  string    `json:"version"`
	Types    []TypeDef `json:"types"`
	Structs  []Struct  `json:"structs"`
	Actions  []Action  `json:"actions"`
	Tables   []Table   `json:"tables"`
	Variants []Variant `json:"variants"`
}

type TypeDef struct {
	NewTypeName string `json:"new_type_name"`
	Type        string `json:"type"`
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Struct struct {
	Name   string  `json:"name"`
	Base   string  `json:"base"`
	Fields []Field `json:"fields"`
}

type Action struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name      string   `json:"name"`
	IndexType string   `json:"index_type"`
	KeyNames  []string `json:"key_names"`
	KeyTypes  []string `json:"key_types"`
	Type      string   `json:"type"`
}

const abiVersionPrefix = "eosio::abi/1."

// ParseDef parses an ABI JSON document and rejects unknown major
// versions.
func ParseDef(jsonBytes []byte) (*Def, error) {
	var def Def
	if err := encoding.JSONiter.Unmarshal(jsonBytes, &def); err != nil {
		return nil, fmt.Errorf("abi parse error: %w", err)
	}
	if !strings.HasPrefix(def.Version, abiVersionPrefix) {
		return nil, fmt.Errorf("unsupported abi version %q", def.Version)
	}
	return &def, nil
}

// Types is the resolved lookup built from a Def, used by the
// schema-driven decoder.
type Types struct {
	aliases  map[string]string
	structs  map[string]*Struct
	variants map[string]*Variant
	tables   map[string]string
	actions  map[string]string
}

type Variant struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

func NewTypes(def *Def) (*Types, error) {
	t := &Types{
		aliases:  make(map[string]string, len(def.Types)),
		structs:  make(map[string]*Struct, len(def.Structs)),
		variants: make(map[string]*Variant, len(def.Variants)),
		tables:   make(map[string]string, len(def.Tables)),
		actions:  make(map[string]string, len(def.Actions)),
	}
	for _, td := range def.Types {
		t.aliases[td.NewTypeName] = td.Type
	}
	for i := range def.Structs {
		s := &def.Structs[i]
		t.structs[s.Name] = s
	}
	for i := range def.Variants {
		v := &def.Variants[i]
		t.variants[v.Name] = v
	}
	for _, tbl := range def.Tables {
		t.tables[tbl.Name] = tbl.Type
	}
	for _, act := range def.Actions {
		t.actions[act.Name] = act.Type
	}

	for name := range t.aliases {
		if _, err := t.resolve(name); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// resolve follows the alias chain down to a concrete type name.
func (t *Types) resolve(name string) (string, error) {
	for depth := 0; depth < 16; depth++ {
		next, ok := t.aliases[name]
		if !ok {
			return name, nil
		}
		name = next
	}
	return "", fmt.Errorf("alias cycle resolving type %q", name)
}

func (t *Types) Struct(name string) (*Struct, bool) {
	s, ok := t.structs[name]
	return s, ok
}

func (t *Types) Variant(name string) (*Variant, bool) {
	v, ok := t.variants[name]
	return v, ok
}

// TableType returns the row type mapped to a table name.
func (t *Types) TableType(table string) (string, bool) {
	typ, ok := t.tables[table]
	return typ, ok
}

func (t *Types) ActionType(action string) (string, bool) {
	typ, ok := t.actions[action]
	return typ, ok
}

// VariantIndexOf resolves the alternative index of altName within the
// named variant. Used to tag outbound envelopes.
func (t *Types) VariantIndexOf(variantName, altName string) (uint32, error) {
	v, ok := t.variants[variantName]
	if !ok {
		return 0, fmt.Errorf("unknown variant %q", variantName)
	}
	for i, alt := range v.Types {
		if alt == altName {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("variant %q has no alternative %q", variantName, altName)
}

// CheckVariant reads a variant tag and verifies it selects the expected
// alternative of the named variant. Any other shape is a protocol
// violation.
func (t *Types) CheckVariant(d *encoding.Decoder, variantName, expected string) error {
	v, ok := t.variants[variantName]
	if !ok {
		return fmt.Errorf("unknown variant %q", variantName)
	}
	index, err := d.VariantIndex()
	if err != nil {
		return err
	}
	if int(index) >= len(v.Types) {
		return fmt.Errorf("variant %q index %d out of range (%d alternatives)", variantName, index, len(v.Types))
	}
	if v.Types[index] != expected {
		return fmt.Errorf("expected %s, got %s", expected, v.Types[index])
	}
	return nil
}
