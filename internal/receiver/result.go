package receiver

import (
	"fmt"

	"github.com/EOSTribe/eos-chronicle/chainstate"
	"github.com/EOSTribe/eos-chronicle/encoding"
	"github.com/EOSTribe/eos-chronicle/logger"
	"github.com/EOSTribe/eos-chronicle/statedb"
)

// onResult is the fork and progress controller: called once per inbound
// get_blocks_result_v0 frame. Any error it returns is fatal for the
// receiver.
func (r *Receiver) onResult(frame []byte) error {
	d := encoding.NewDecoder(frame)
	if err := r.protocol.CheckVariant(d, "result", "get_blocks_result_v0"); err != nil {
		return fmt.Errorf("result frame: %w", err)
	}
	result, err := chainstate.DecodeGetBlocksResult(d)
	if err != nil {
		return fmt.Errorf("result conversion error: %w", err)
	}

	if result.ThisBlock == nil {
		// nothing to report at this offset
		return nil
	}

	blockNum := result.ThisBlock.BlockNum
	blockID := result.ThisBlock.BlockID
	lib := result.LastIrreversible.BlockNum

	// the session opened below for this block carries revision blockNum
	if r.db.Revision() < int64(blockNum)-1 {
		r.db.SetRevision(int64(blockNum) - 1)
		logger.Printf("debug-receiver", "set DB revision to %d", blockNum-1)
	}

	if blockNum > lib && blockNum <= r.head {
		// the upstream retracted reversible blocks
		logger.Printf("fork", "fork detected at block %d; head=%d", blockNum, r.head)
		depth := r.head - blockNum
		r.cache.Reset()
		for r.db.Revision() >= int64(blockNum) {
			if r.db.UndoStackSize() == 0 {
				return fmt.Errorf("cannot rollback to block %d, undo stack exhausted at revision %d",
					blockNum, r.db.Revision())
			}
			r.db.Undo()
		}
		logger.Printf("debug-receiver", "rolled back DB revision to %d", r.db.Revision())

		r.channels.Forks.Publish(channelPriority, &ForkEvent{
			ForkBlockNum: blockNum,
			Depth:        depth,
			Reason:       ForkReasonNetwork,
		})
		metricForks.Inc()
	} else if r.head > 0 {
		if result.PrevBlock == nil || result.PrevBlock.BlockID != r.headID {
			return fmt.Errorf("prev_block does not match at block %d", blockNum)
		}
	}

	session := r.db.StartUndoSession()
	defer session.Drop()

	if blockNum > r.irreversible {
		r.db.PutBlock(blockNum, blockID)
		r.db.DeleteBlocksBelow(lib)
	}

	r.head = blockNum
	r.headID = blockID
	r.irreversible = lib
	r.irreversibleID = result.LastIrreversible.BlockID

	if result.Block != nil {
		if err := r.receiveBlock(result.Block); err != nil {
			return err
		}
	}
	if result.Deltas != nil {
		if err := r.receiveDeltas(result.Deltas); err != nil {
			return err
		}
	}
	if result.Traces != nil {
		if err := r.receiveTraces(result.Traces); err != nil {
			return err
		}
	}

	if r.aborting {
		return nil
	}

	r.db.UpsertProgress(statedb.Progress{
		Head:           r.head,
		HeadID:         r.headID,
		Irreversible:   r.irreversible,
		IrreversibleID: r.irreversibleID,
	})
	session.Push()

	commitRev := int64(r.irreversible)
	if r.exporterWillAck && int64(r.exporterAckedBlock) < commitRev {
		commitRev = int64(r.exporterAckedBlock)
	}
	if err := r.db.Commit(commitRev); err != nil {
		return err
	}

	metricHeadBlock.Set(float64(r.head))
	metricIrreversibleBlock.Set(float64(r.irreversible))
	metricBlocksReceived.Inc()
	return nil
}

func (r *Receiver) receiveBlock(raw []byte) error {
	if r.head == r.irreversible {
		logger.Printf("receiver", "Crossing irreversible block=%d", r.head)
	}

	if r.cfg.ReportEvery > 0 && r.head%r.cfg.ReportEvery == 0 {
		logger.Printf("receiver", "block=%d; irreversible=%d; db_free=%d%%",
			r.head, r.irreversible, r.db.FreePercent())
		if r.exporterWillAck {
			logger.Printf("receiver", "Exporter acknowledged block=%d", r.exporterAckedBlock)
		}
		logger.Printf("receiver", "priority queue size: %d", r.reactor.Len())
	}

	block, err := chainstate.DecodeSignedBlock(encoding.NewDecoder(raw))
	if err != nil {
		return fmt.Errorf("block conversion error: %w", err)
	}
	r.blockTimestamp = block.Timestamp

	r.channels.Blocks.Publish(channelPriority, &BlockEvent{
		BlockNum:         r.head,
		LastIrreversible: r.irreversible,
		Block:            block,
	})
	return nil
}
