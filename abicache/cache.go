package abicache

import (
	"fmt"
)

// Store is the durable side of the cache: the receiver's state database
// keeps the raw ABI blob of every contract that currently has one.
type Store interface {
	GetContractAbi(account uint64) ([]byte, bool)
}

// Cache is the live decoder context. It holds resolved type tables for
// every contract whose ABI has been installed, and rehydrates lazily
// from the store after a Reset. The set of loaded accounts is always a
// subset of the accounts present in the store.
type Cache struct {
	store Store
	types map[uint64]*Types
}

func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		types: make(map[uint64]*Types),
	}
}

// Install parses, validates and installs a contract's packed ABI,
// replacing any previous entry for the account. The parsed Def is
// returned for abi_update subscribers.
func (c *Cache) Install(account uint64, abiBytes []byte) (*Def, error) {
	jsonBytes, err := UnpackBinary(abiBytes)
	if err != nil {
		return nil, err
	}
	def, err := ParseDef(jsonBytes)
	if err != nil {
		return nil, err
	}
	types, err := NewTypes(def)
	if err != nil {
		return nil, err
	}
	c.types[account] = types
	return def, nil
}

// Loaded reports whether the account's ABI is resident in the context.
func (c *Cache) Loaded(account uint64) bool {
	_, ok := c.types[account]
	return ok
}

// Forget evicts the account from the context. The durable row is the
// caller's concern.
func (c *Cache) Forget(account uint64) {
	delete(c.types, account)
}

// Reset drops the whole context. Used on fork rewinds, where undone ABI
// installs would otherwise remain live; entries rehydrate on next use.
func (c *Cache) Reset() {
	c.types = make(map[uint64]*Types)
}

// Ready reports whether the account's ABI is usable for decoding,
// installing it from the durable row if necessary.
func (c *Cache) Ready(account uint64) bool {
	if _, ok := c.types[account]; ok {
		return true
	}
	raw, ok := c.store.GetContractAbi(account)
	if !ok {
		return false
	}
	if _, err := c.Install(account, raw); err != nil {
		return false
	}
	return true
}

// ContractTypes returns the resolved type table for an account,
// loading it from the store if needed.
func (c *Cache) ContractTypes(account uint64) (*Types, bool) {
	if !c.Ready(account) {
		return nil, false
	}
	return c.types[account], true
}

// DecodeTableRow decodes a contract table row using the contract's own
// ABI table mapping.
func (c *Cache) DecodeTableRow(account uint64, table string, data []byte) (interface{}, error) {
	types, ok := c.ContractTypes(account)
	if !ok {
		return nil, fmt.Errorf("no usable ABI for account %d", account)
	}
	rowType, ok := types.TableType(table)
	if !ok {
		return nil, fmt.Errorf("table %q is not declared in the contract ABI", table)
	}
	return types.Decode(data, rowType)
}
