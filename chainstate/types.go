package chainstate

import (
	"github.com/EOSTribe/eos-chronicle/chain"
)

// Wire shapes of the state-history stream. Deltas and traces arrive
// zlib-compressed inside GetBlocksResult; the payload decoders in this
// package work on the inflated bytes.

type BlockPosition struct {
	BlockNum uint32
	BlockID  chain.Checksum256
}

type GetBlocksResult struct {
	Head             BlockPosition
	LastIrreversible BlockPosition
	ThisBlock        *BlockPosition
	PrevBlock        *BlockPosition
	Block            []byte
	Traces           []byte
	Deltas           []byte
}

// GetBlocksRequest is the single open-ended request the receiver sends
// after the handshake.
type GetBlocksRequest struct {
	StartBlockNum       uint32
	EndBlockNum         uint32
	MaxMessagesInFlight uint32
	HavePositions       []BlockPosition
	IrreversibleOnly    bool
	FetchBlock          bool
	FetchTraces         bool
	FetchDeltas         bool
}

type Row struct {
	Present bool
	Data    []byte
}

type TableDelta struct {
	Name string
	Rows []Row
}

type AccountObject struct {
	Name           uint64
	VMType         uint8
	VMVersion      uint8
	Privileged     bool
	LastCodeUpdate chain.TimePoint
	CodeVersion    chain.Checksum256
	CreationDate   chain.BlockTimestamp
	Code           []byte
	Abi            []byte
}

type KeyValueObject struct {
	Code       uint64
	Scope      uint64
	Table      uint64
	PrimaryKey uint64
	Payer      uint64
	Value      []byte
}

type TransactionStatus uint8

const (
	StatusExecuted TransactionStatus = iota
	StatusSoftFail
	StatusHardFail
	StatusDelayed
	StatusExpired
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusSoftFail:
		return "soft_fail"
	case StatusHardFail:
		return "hard_fail"
	case StatusDelayed:
		return "delayed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

type AuthSequence struct {
	Account  uint64
	Sequence uint64
}

type ActionReceipt struct {
	Receiver       uint64
	ActDigest      chain.Checksum256
	GlobalSequence uint64
	RecvSequence   uint64
	AuthSequence   []AuthSequence
	CodeSequence   uint32
	AbiSequence    uint32
}

type PermissionLevel struct {
	Actor      uint64
	Permission uint64
}

type AccountRamDelta struct {
	Account uint64
	Delta   int64
}

type ActionTrace struct {
	Receipt          ActionReceipt
	Account          uint64
	Name             uint64
	Authorization    []PermissionLevel
	Data             []byte
	ContextFree      bool
	Elapsed          int64
	Console          string
	AccountRamDeltas []AccountRamDelta
	Except           *string
	InlineTraces     []ActionTrace
}

type TransactionTrace struct {
	ID              chain.Checksum256
	Status          TransactionStatus
	CPUUsageUs      uint32
	NetUsageWords   uint32
	Elapsed         int64
	NetUsage        uint64
	Scheduled       bool
	Traces          []ActionTrace
	Except          *string
	FailedDtrxTrace []TransactionTrace
}

type ProducerKey struct {
	ProducerName    uint64
	BlockSigningKey []byte
}

type ProducerSchedule struct {
	Version   uint32
	Producers []ProducerKey
}

type Extension struct {
	Type uint16
	Data []byte
}

type PackedTransaction struct {
	Signatures            [][]byte
	Compression           uint8
	PackedContextFreeData []byte
	PackedTrx             []byte
}

// TransactionReceipt carries either the id of a deferred transaction or
// the full packed transaction.
type TransactionReceipt struct {
	Status        uint8
	CPUUsageUs    uint32
	NetUsageWords uint32
	TrxID         *chain.Checksum256
	PackedTrx     *PackedTransaction
}

type SignedBlock struct {
	Timestamp         chain.BlockTimestamp
	Producer          uint64
	Confirmed         uint16
	Previous          chain.Checksum256
	TransactionMroot  chain.Checksum256
	ActionMroot       chain.Checksum256
	ScheduleVersion   uint32
	NewProducers      *ProducerSchedule
	HeaderExtensions  []Extension
	ProducerSignature []byte
	Transactions      []TransactionReceipt
	BlockExtensions   []Extension
}
