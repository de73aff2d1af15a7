package sequencer

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/utils"
	"github.com/NethermindEth/devnet/vm"
)

type Option func(*Sequencer)

func WithLogger(log utils.SimpleLogger) Option {
	return func(s *Sequencer) {
		s.log = log
	}
}

func WithExecutor(executor vm.Executor) Option {
	return func(s *Sequencer) {
		s.executor = executor
	}
}

// WithBackingState sets the store blocks are committed to. A store that
// already holds blocks resumes the chain after its height.
func WithBackingState(backing state.Committer) Option {
	return func(s *Sequencer) {
		s.backing = backing
	}
}

// WithBlockContext sets the context of the first block
func WithBlockContext(blockCtx *core.BlockContext) Option {
	return func(s *Sequencer) {
		s.blockCtx = blockCtx.Clone()
	}
}

func WithListener(listener EventListener) Option {
	return func(s *Sequencer) {
		s.listener = listener
	}
}
