package receiver

import (
	"github.com/EOSTribe/eos-chronicle/abicache"
	"github.com/EOSTribe/eos-chronicle/bus"
	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/chainstate"
)

// Everything the receiver decodes is delivered through these channels.
// All core publications use the same priority; messages are immutable
// after publication and shared by every subscriber.

const channelPriority = 50

type ForkReason string

const (
	ForkReasonNetwork ForkReason = "network"
	ForkReasonRestart ForkReason = "restart"
)

type ForkEvent struct {
	ForkBlockNum uint32
	Depth        uint32
	Reason       ForkReason
}

type BlockEvent struct {
	BlockNum         uint32
	LastIrreversible uint32
	Block            *chainstate.SignedBlock
}

type TableDeltaEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Delta          *chainstate.TableDelta
}

type TransactionTraceEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Trace          *chainstate.TransactionTrace
}

type AbiUpdateEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Account        uint64
	AbiBytes       []byte
	Abi            *abicache.Def
}

type AbiRemovalEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Account        uint64
}

type AbiErrorEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Account        uint64
	Error          string
}

type TableRowUpdateEvent struct {
	BlockNum       uint32
	BlockTimestamp chain.BlockTimestamp
	Added          bool
	KVO            *chainstate.KeyValueObject
}

type ReceiverPauseEvent struct {
	Head         uint32
	Acknowledged uint32
}

type Channels struct {
	Forks             *bus.Channel[ForkEvent]
	Blocks            *bus.Channel[BlockEvent]
	BlockTableDeltas  *bus.Channel[TableDeltaEvent]
	TransactionTraces *bus.Channel[TransactionTraceEvent]
	AbiUpdates        *bus.Channel[AbiUpdateEvent]
	AbiRemovals       *bus.Channel[AbiRemovalEvent]
	AbiErrors         *bus.Channel[AbiErrorEvent]
	TableRowUpdates   *bus.Channel[TableRowUpdateEvent]
	ReceiverPauses    *bus.Channel[ReceiverPauseEvent]
}

func NewChannels(r *bus.Reactor) *Channels {
	return &Channels{
		Forks:             bus.NewChannel[ForkEvent](r),
		Blocks:            bus.NewChannel[BlockEvent](r),
		BlockTableDeltas:  bus.NewChannel[TableDeltaEvent](r),
		TransactionTraces: bus.NewChannel[TransactionTraceEvent](r),
		AbiUpdates:        bus.NewChannel[AbiUpdateEvent](r),
		AbiRemovals:       bus.NewChannel[AbiRemovalEvent](r),
		AbiErrors:         bus.NewChannel[AbiErrorEvent](r),
		TableRowUpdates:   bus.NewChannel[TableRowUpdateEvent](r),
		ReceiverPauses:    bus.NewChannel[ReceiverPauseEvent](r),
	}
}
