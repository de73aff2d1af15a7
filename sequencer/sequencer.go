// Package sequencer is the single-node transaction sequencer of the devnet. It
// owns the block context and the state, and serialises every access to the
// state behind one lock.
package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/utils"
	"github.com/NethermindEth/devnet/vm"
)

var (
	// ErrStatePoisoned is the panic value of every state access after a panic
	// escaped while the state lock was held. The state may be half written and
	// the process has to be restarted.
	ErrStatePoisoned        = errors.New("sequencer state poisoned by an earlier panic")
	ErrClassAlreadyDeclared = errors.New("class already declared")
	ErrReceiptNotFound      = errors.New("receipt not found")
)

type Sequencer struct {
	log      utils.SimpleLogger
	executor vm.Executor
	listener EventListener
	backing  state.Committer

	// mu guards every field below
	mu       sync.Mutex
	poisoned bool
	blockCtx *core.BlockContext
	state    *state.Cached
	receipts map[felt.Felt]*core.TransactionReceipt
}

// New returns a sequencer over an empty in-memory state with the default
// block context and the default account class declared
func New() *Sequencer {
	s, err := NewWithOptions()
	if err != nil {
		// the in-memory defaults never fail
		panic(err)
	}
	return s
}

func NewWithOptions(opts ...Option) (*Sequencer, error) {
	s := &Sequencer{
		log:      utils.NewNopZapLogger(),
		listener: &SelectiveListener{},
		backing:  state.NewDictReader(),
		blockCtx: core.DefaultBlockContext(),
		receipts: make(map[felt.Felt]*core.TransactionReceipt),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = vm.NewNativeExecutor(s.log, false, false)
	}

	height, err := s.backing.ChainHeight()
	switch {
	case err == nil:
		s.blockCtx.BlockNumber = height + 1
	case !errors.Is(err, state.ErrNoChainHeight):
		return nil, fmt.Errorf("read chain height: %w", err)
	}
	s.state = state.NewCached(s.backing)

	if _, err = s.DeclareClass(core.DefaultAccountClass()); err != nil && !errors.Is(err, ErrClassAlreadyDeclared) {
		return nil, err
	}
	return s, nil
}

// withState runs fn while holding the state lock. A panic escaping fn poisons
// the sequencer and is re-raised.
func (s *Sequencer) withState(fn func(st *state.Cached) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		panic(ErrStatePoisoned)
	}
	defer func() {
		if p := recover(); p != nil {
			s.poisoned = true
			panic(p)
		}
	}()
	return fn(s.state)
}

// DeployAccount deploys an instance of classHash at the address derived from
// salt and calldata. The max fee of the transaction is whatever the account
// already holds in the fee token, zero for an unfunded account.
func (s *Sequencer) DeployAccount(classHash, version, salt *felt.Felt, calldata, signature []*felt.Felt) (
	txHash, address *felt.Felt, err error,
) {
	address, err = core.ContractAddress(salt, classHash, calldata, &felt.Zero)
	if err != nil {
		return nil, nil, err
	}
	balanceKey, err := core.FeeTokenBalanceKey(address)
	if err != nil {
		return nil, nil, err
	}

	err = s.withState(func(st *state.Cached) error {
		balance, err := st.ContractStorage(s.blockCtx.FeeTokenAddress, balanceKey)
		if err != nil {
			return err
		}

		txn, err := deployAccountTransaction(s.blockCtx, address, classHash, version, salt, calldata, signature, &balance)
		if err != nil {
			return err
		}

		s.log.Debugw("Deploying account", "address", address.ShortString(), "maxFee", txn.MaxFee.String())
		if _, err = s.execute(txn, st); err != nil {
			return err
		}
		txHash = txn.TransactionHash
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return txHash, address, nil
}

// DripAndDeployAccount funds the account with balance before deploying it, so
// that the deployment can pay for itself.
//
// The funding is written straight into the fee token storage and is not a
// transaction. It is a genesis and testing facility and must never be reachable
// from transaction submission.
func (s *Sequencer) DripAndDeployAccount(classHash, version, salt *felt.Felt, calldata, signature []*felt.Felt,
	balance uint64,
) (txHash, address *felt.Felt, err error) {
	address, err = core.ContractAddress(salt, classHash, calldata, &felt.Zero)
	if err != nil {
		return nil, nil, err
	}
	if err = s.Drip(address, new(felt.Felt).SetUint64(balance)); err != nil {
		return nil, nil, err
	}
	return s.DeployAccount(classHash, version, salt, calldata, signature)
}

// Drip sets the fee token balance of address to amount, bypassing the executor.
// Like DripAndDeployAccount it is for genesis and tests only.
func (s *Sequencer) Drip(address, amount *felt.Felt) error {
	balanceKey, err := core.FeeTokenBalanceKey(address)
	if err != nil {
		return err
	}

	err = s.withState(func(st *state.Cached) error {
		return st.SetStorage(s.blockCtx.FeeTokenAddress, balanceKey, amount)
	})
	if err != nil {
		return err
	}
	s.listener.OnDrip()
	s.log.Debugw("Dripped", "address", address.ShortString(), "amount", amount.String())
	return nil
}

// DeclareClass makes class deployable and returns its hash. Like Drip it is a
// genesis facility, declarations are not transactions on a devnet.
func (s *Sequencer) DeclareClass(class *core.Class) (*felt.Felt, error) {
	classHash, err := class.Hash()
	if err != nil {
		return nil, err
	}

	err = s.withState(func(st *state.Cached) error {
		if _, err := st.Class(classHash); err == nil {
			return fmt.Errorf("%w: %s", ErrClassAlreadyDeclared, classHash)
		} else if !errors.Is(err, state.ErrClassNotDeclared) {
			return err
		}
		return st.SetClass(classHash, class)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debugw("Declared class", "name", class.Name, "hash", classHash.ShortString())
	return classHash, nil
}

// AddTransaction executes an already built transaction
func (s *Sequencer) AddTransaction(txn core.Transaction) (*vm.ExecutionInfo, error) {
	var info *vm.ExecutionInfo
	err := s.withState(func(st *state.Cached) error {
		var err error
		info, err = s.execute(txn, st)
		return err
	})
	return info, err
}

// execute runs txn and records its receipt. Executor errors are returned as is.
// Must be called with the state lock held.
func (s *Sequencer) execute(txn core.Transaction, st *state.Cached) (*vm.ExecutionInfo, error) {
	start := time.Now()
	info, err := s.executor.Execute(txn, s.blockCtx, st)
	s.listener.OnExecution(time.Since(start), err)
	if err != nil {
		s.log.Debugw("Transaction execution failed", "hash", txn.Hash(), "err", err)
		return nil, err
	}

	receipt := newReceipt(txn, info, s.blockCtx.BlockNumber)
	if receipt.TransactionHash != nil {
		s.receipts[*receipt.TransactionHash] = receipt
	}
	return info, nil
}

func newReceipt(txn core.Transaction, info *vm.ExecutionInfo, blockNumber uint64) *core.TransactionReceipt {
	receipt := &core.TransactionReceipt{
		TransactionHash: txn.Hash(),
		ActualFee:       new(felt.Felt),
		BlockNumber:     blockNumber,
	}
	if deployAccount, ok := txn.(*core.DeployAccountTransaction); ok {
		receipt.ContractAddress = deployAccount.ContractAddress
		receipt.MaxFee = deployAccount.MaxFee
	}
	if info == nil {
		return receipt
	}

	if info.TransactionHash != nil {
		receipt.TransactionHash = info.TransactionHash
	}
	if info.ContractAddress != nil {
		receipt.ContractAddress = info.ContractAddress
	}
	if info.MaxFee != nil {
		receipt.MaxFee = info.MaxFee
	}
	if info.ActualFee != nil {
		receipt.ActualFee = info.ActualFee
	}
	receipt.ExecutionResources = info.Resources
	return receipt
}

func (s *Sequencer) Receipt(txHash *felt.Felt) (*core.TransactionReceipt, error) {
	var receipt *core.TransactionReceipt
	err := s.withState(func(*state.Cached) error {
		var ok bool
		if receipt, ok = s.receipts[*txHash]; !ok {
			return fmt.Errorf("%w: %s", ErrReceiptNotFound, txHash)
		}
		return nil
	})
	return receipt, err
}

func (s *Sequencer) Storage(address, key *felt.Felt) (felt.Felt, error) {
	var value felt.Felt
	err := s.withState(func(st *state.Cached) error {
		var err error
		value, err = st.ContractStorage(address, key)
		return err
	})
	return value, err
}

func (s *Sequencer) Nonce(address *felt.Felt) (felt.Felt, error) {
	var nonce felt.Felt
	err := s.withState(func(st *state.Cached) error {
		var err error
		nonce, err = st.ContractNonce(address)
		return err
	})
	return nonce, err
}

func (s *Sequencer) ClassHash(address *felt.Felt) (felt.Felt, error) {
	var classHash felt.Felt
	err := s.withState(func(st *state.Cached) error {
		var err error
		classHash, err = st.ContractClassHash(address)
		return err
	})
	return classHash, err
}

func (s *Sequencer) Class(classHash *felt.Felt) (*core.Class, error) {
	var class *core.Class
	err := s.withState(func(st *state.Cached) error {
		var err error
		class, err = st.Class(classHash)
		return err
	})
	return class, err
}

// Balance returns the fee token balance of address
func (s *Sequencer) Balance(address *felt.Felt) (felt.Felt, error) {
	balanceKey, err := core.FeeTokenBalanceKey(address)
	if err != nil {
		return felt.Zero, err
	}

	var balance felt.Felt
	err = s.withState(func(st *state.Cached) error {
		var err error
		balance, err = st.ContractStorage(s.blockCtx.FeeTokenAddress, balanceKey)
		return err
	})
	return balance, err
}

// BlockContext returns a copy of the context of the open block
func (s *Sequencer) BlockContext() *core.BlockContext {
	var blockCtx *core.BlockContext
	_ = s.withState(func(*state.Cached) error {
		blockCtx = s.blockCtx.Clone()
		return nil
	})
	return blockCtx
}

// CloseBlock commits the state changes of the open block to the backing store
// and opens the next block at timestamp. It returns the committed changes.
func (s *Sequencer) CloseBlock(timestamp uint64) (*core.StateDiff, error) {
	var (
		diff   *core.StateDiff
		closed uint64
	)
	err := s.withState(func(st *state.Cached) error {
		closed = s.blockCtx.BlockNumber
		if err := s.backing.Commit(st.StateDiff(), closed); err != nil {
			return fmt.Errorf("commit block %d: %w", closed, err)
		}
		diff = st.Reset()
		s.blockCtx = s.blockCtx.Next(timestamp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listener.OnBlockClosed(closed, diff.Length())
	s.log.Infow("Closed block", "number", closed, "changes", diff.Length())
	return diff, nil
}
