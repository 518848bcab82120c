package receiver

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/EOSTribe/eos-chronicle/abicache"
	"github.com/EOSTribe/eos-chronicle/chainstate"
	"github.com/EOSTribe/eos-chronicle/logger"
)

// loadProtocolAbi ingests the ABI the upstream advertises in its first
// frame. Every variant check and the request envelope tag come from
// this table.
func (r *Receiver) loadProtocolAbi(jsonBytes []byte) error {
	def, err := abicache.ParseDef(jsonBytes)
	if err != nil {
		return fmt.Errorf("protocol abi: %w", err)
	}
	types, err := abicache.NewTypes(def)
	if err != nil {
		return fmt.Errorf("protocol abi: %w", err)
	}
	for _, required := range []string{"request", "result", "table_delta"} {
		if _, ok := types.Variant(required); !ok {
			return fmt.Errorf("protocol abi does not define the %q variant", required)
		}
	}
	r.protocol = types
	logger.Printf("receiver", "Loaded protocol ABI, version %s", def.Version)
	return nil
}

// requestBlocks sends the single open-ended block request, resuming
// after head and proving known reversible blocks through
// have_positions.
func (r *Receiver) requestBlocks(ctx context.Context) error {
	variantIndex, err := r.protocol.VariantIndexOf("request", "get_blocks_request_v0")
	if err != nil {
		return err
	}

	refs := r.db.BlocksInRange(r.irreversible, r.head)
	positions := make([]chainstate.BlockPosition, 0, len(refs))
	for _, ref := range refs {
		positions = append(positions, chainstate.BlockPosition{
			BlockNum: ref.BlockNum,
			BlockID:  ref.BlockID,
		})
	}

	startBlock := r.head + 1
	logger.Printf("receiver", "Start block: %d", startBlock)

	req := &chainstate.GetBlocksRequest{
		StartBlockNum:       startBlock,
		EndBlockNum:         0xffffffff,
		MaxMessagesInFlight: 0xffffffff,
		HavePositions:       positions,
		IrreversibleOnly:    false,
		FetchBlock:          true,
		FetchTraces:         true,
		FetchDeltas:         true,
	}
	raw := chainstate.EncodeGetBlocksRequest(req, variantIndex)
	if err := r.conn.Write(ctx, websocket.MessageBinary, raw); err != nil {
		return fmt.Errorf("failed to send block request: %w", err)
	}
	return nil
}
