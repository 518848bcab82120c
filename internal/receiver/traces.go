package receiver

import (
	"fmt"

	"github.com/EOSTribe/eos-chronicle/chainstate"
	"github.com/EOSTribe/eos-chronicle/compression"
	"github.com/EOSTribe/eos-chronicle/encoding"
)

func (r *Receiver) receiveTraces(compressed []byte) error {
	if !r.channels.TransactionTraces.HasSubscribers() {
		return nil
	}

	data, err := compression.Inflate(compressed)
	if err != nil {
		return fmt.Errorf("traces payload: %w", err)
	}
	d := encoding.NewDecoder(data)

	num, err := d.Varuint32()
	if err != nil {
		return fmt.Errorf("traces count: %w", err)
	}
	for i := uint32(0); i < num; i++ {
		trace, err := chainstate.DecodeTransactionTrace(d)
		if err != nil {
			return fmt.Errorf("transaction_trace conversion error: %w", err)
		}
		if r.isBlacklisted(trace) {
			continue
		}
		r.channels.TransactionTraces.Publish(channelPriority, &TransactionTraceEvent{
			BlockNum:       r.head,
			BlockTimestamp: r.blockTimestamp,
			Trace:          trace,
		})
	}
	return nil
}

// isBlacklisted matches the first action of a transaction against the
// configured (account, action) pairs.
func (r *Receiver) isBlacklisted(trace *chainstate.TransactionTrace) bool {
	if len(trace.Traces) == 0 {
		return false
	}
	first := &trace.Traces[0]
	actions, ok := r.blacklist[first.Account]
	if !ok {
		return false
	}
	_, hit := actions[first.Name]
	return hit
}
