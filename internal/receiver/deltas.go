package receiver

import (
	"fmt"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/chainstate"
	"github.com/EOSTribe/eos-chronicle/compression"
	"github.com/EOSTribe/eos-chronicle/encoding"
	"github.com/EOSTribe/eos-chronicle/logger"
)

func (r *Receiver) receiveDeltas(compressed []byte) error {
	data, err := compression.Inflate(compressed)
	if err != nil {
		return fmt.Errorf("deltas payload: %w", err)
	}
	d := encoding.NewDecoder(data)

	num, err := d.Varuint32()
	if err != nil {
		return fmt.Errorf("deltas count: %w", err)
	}
	for i := uint32(0); i < num; i++ {
		if err := r.protocol.CheckVariant(d, "table_delta", "table_delta_v0"); err != nil {
			return err
		}
		delta, err := chainstate.DecodeTableDelta(d)
		if err != nil {
			return fmt.Errorf("table_delta conversion error: %w", err)
		}

		variant, ok := r.protocol.Variant(delta.Name)
		if !ok || len(variant.Types) == 0 {
			return fmt.Errorf("don't know how to process table %q", delta.Name)
		}
		for j := range delta.Rows {
			rd := encoding.NewDecoder(delta.Rows[j].Data)
			tag, err := rd.VariantIndex()
			if err != nil {
				return fmt.Errorf("table %s row %d: %w", delta.Name, j, err)
			}
			if tag != 0 {
				return fmt.Errorf("table %s row %d: unexpected variant index %d", delta.Name, j, tag)
			}
		}

		switch delta.Name {
		case "account":
			if err := r.processAccountRows(delta); err != nil {
				return err
			}
		case "contract_row":
			if r.channels.TableRowUpdates.HasSubscribers() || r.channels.AbiErrors.HasSubscribers() {
				if err := r.processContractRows(delta); err != nil {
					return err
				}
			}
		}

		r.channels.BlockTableDeltas.Publish(channelPriority, &TableDeltaEvent{
			BlockNum:       r.head,
			BlockTimestamp: r.blockTimestamp,
			Delta:          delta,
		})
	}
	return nil
}

// processAccountRows watches the system account table for ABI installs
// and removals.
func (r *Receiver) processAccountRows(delta *chainstate.TableDelta) error {
	for i := range delta.Rows {
		row := &delta.Rows[i]
		if !row.Present {
			continue
		}
		rd := encoding.NewDecoder(row.Data)
		if _, err := rd.VariantIndex(); err != nil {
			return err
		}
		acc, err := chainstate.DecodeAccountObject(rd)
		if err != nil {
			return fmt.Errorf("account row conversion error: %w", err)
		}
		if len(acc.Abi) == 0 {
			r.clearContractAbi(acc.Name)
		} else {
			r.saveContractAbi(acc.Name, acc.Abi)
		}
	}
	return nil
}

func (r *Receiver) processContractRows(delta *chainstate.TableDelta) error {
	for i := range delta.Rows {
		row := &delta.Rows[i]
		rd := encoding.NewDecoder(row.Data)
		if _, err := rd.VariantIndex(); err != nil {
			return err
		}
		kvo, err := chainstate.DecodeKeyValueObject(rd)
		if err != nil {
			return fmt.Errorf("cannot read table row object: %w", err)
		}
		if r.cache.Ready(kvo.Code) {
			r.channels.TableRowUpdates.Publish(channelPriority, &TableRowUpdateEvent{
				BlockNum:       r.head,
				BlockTimestamp: r.blockTimestamp,
				Added:          row.Present,
				KVO:            kvo,
			})
		} else {
			r.publishAbiError(kvo.Code, "cannot decode table delta because of missing ABI")
		}
	}
	return nil
}

// saveContractAbi validates and installs a contract ABI. Invalid ABI
// bytes never abort the receiver; the contract just stays undecodable.
func (r *Receiver) saveContractAbi(account uint64, abiBytes []byte) {
	def, err := r.cache.Install(account, abiBytes)
	if err != nil {
		logger.Warning("Cannot use ABI for %s: %v", chain.NameToString(account), err)
		r.publishAbiError(account, err.Error())
		return
	}

	r.db.PutContractAbi(account, abiBytes)

	if r.channels.AbiUpdates.HasSubscribers() {
		r.channels.AbiUpdates.Publish(channelPriority, &AbiUpdateEvent{
			BlockNum:       r.head,
			BlockTimestamp: r.blockTimestamp,
			Account:        account,
			AbiBytes:       abiBytes,
			Abi:            def,
		})
	}
}

func (r *Receiver) clearContractAbi(account uint64) {
	r.cache.Forget(account)
	if r.db.DeleteContractAbi(account) {
		r.channels.AbiRemovals.Publish(channelPriority, &AbiRemovalEvent{
			BlockNum:       r.head,
			BlockTimestamp: r.blockTimestamp,
			Account:        account,
		})
	}
}

func (r *Receiver) publishAbiError(account uint64, msg string) {
	r.channels.AbiErrors.Publish(channelPriority, &AbiErrorEvent{
		BlockNum:       r.head,
		BlockTimestamp: r.blockTimestamp,
		Account:        account,
		Error:          msg,
	})
	metricAbiErrors.Inc()
}
