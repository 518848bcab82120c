package chain

import (
	"encoding/hex"
	"fmt"
)

// Checksum256 is a SHA-256 digest as it appears on the wire: block ids,
// transaction ids, merkle roots.
type Checksum256 [32]byte

func (c Checksum256) String() string {
	return hex.EncodeToString(c[:])
}

func (c Checksum256) IsZero() bool {
	return c == Checksum256{}
}

func ParseChecksum256(s string) (Checksum256, error) {
	var c Checksum256
	if len(s) != 64 {
		return c, fmt.Errorf("checksum256 must be 64 hex characters, got %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum256 hex: %w", err)
	}
	copy(c[:], raw)
	return c, nil
}

func (c Checksum256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}
