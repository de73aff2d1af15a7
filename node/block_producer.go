package node

import (
	"context"
	"time"

	"github.com/NethermindEth/devnet/sequencer"
	"github.com/NethermindEth/devnet/utils"
)

// blockProducer closes the open block of the sequencer every blockTime
type blockProducer struct {
	sequencer *sequencer.Sequencer
	blockTime time.Duration
	log       utils.SimpleLogger
}

var _ service = (*blockProducer)(nil)

func newBlockProducer(seq *sequencer.Sequencer, blockTime time.Duration, log utils.SimpleLogger) *blockProducer {
	return &blockProducer{
		sequencer: seq,
		blockTime: blockTime,
		log:       log,
	}
}

func (b *blockProducer) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			diff, err := b.sequencer.CloseBlock(uint64(now.Unix()))
			if err != nil {
				return err
			}
			b.log.Debugw("Produced block", "changes", diff.Length())
		}
	}
}
