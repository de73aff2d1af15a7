package sequencer_test

import (
	crand "crypto/rand"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/mocks"
	"github.com/NethermindEth/devnet/sequencer"
	"github.com/NethermindEth/devnet/utils"
	"github.com/NethermindEth/devnet/vm"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	version1  = new(felt.Felt).SetUint64(1)
	classHash = felt.UnsafeFromString("0x5400e90f7e0ae78bd02c77cd75527280470e2fe19c54970dd79dc37a9d3645c")
)

// plainClass is deployable with any calldata and no signature
var plainClass = &core.Class{
	Name:             "plain",
	Kind:             core.ClassKindPlain,
	ConstructorArity: core.AnyArity,
	ConstructorSteps: 10,
}

// recordingExecutor returns a mock executor accepting every transaction and
// the list the accepted transactions are appended to
func recordingExecutor(t *testing.T) (*mocks.MockExecutor, *[]*core.DeployAccountTransaction) {
	t.Helper()

	var (
		mu   sync.Mutex
		txns []*core.DeployAccountTransaction
	)
	executor := mocks.NewMockExecutor(gomock.NewController(t))
	executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(txn core.Transaction, _ *core.BlockContext, _ state.State) (*vm.ExecutionInfo, error) {
			mu.Lock()
			defer mu.Unlock()
			deployAccount, ok := txn.(*core.DeployAccountTransaction)
			require.True(t, ok)
			txns = append(txns, deployAccount)
			return &vm.ExecutionInfo{TransactionHash: txn.Hash(), MaxFee: deployAccount.MaxFee}, nil
		}).AnyTimes()
	return executor, &txns
}

// feelessSequencer runs the native executor without fees and with plainClass declared
func feelessSequencer(t *testing.T) (*sequencer.Sequencer, *felt.Felt) {
	t.Helper()

	seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(vm.NewNativeExecutor(utils.NewNopZapLogger(), true, false)))
	require.NoError(t, err)
	plainHash, err := seq.DeclareClass(plainClass)
	require.NoError(t, err)
	return seq, plainHash
}

func TestNew(t *testing.T) {
	seq := sequencer.New()

	assert.Equal(t, core.DefaultBlockContext(), seq.BlockContext())

	accountHash, err := core.DefaultAccountClass().Hash()
	require.NoError(t, err)
	class, err := seq.Class(accountHash)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAccountClass(), class)

	t.Run("block context is a copy", func(t *testing.T) {
		blockCtx := seq.BlockContext()
		blockCtx.SequencerAddress.SetUint64(1)
		blockCtx.ResourceFeeWeights[core.StepsResource] = 5
		assert.Equal(t, core.DefaultBlockContext(), seq.BlockContext())
	})
}

func TestScenario(t *testing.T) {
	salt := new(felt.Felt).SetUint64(0x1234)

	t.Run("executor accepting everything", func(t *testing.T) {
		executor, txns := recordingExecutor(t)
		seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
		require.NoError(t, err)

		txHash, address, err := seq.DripAndDeployAccount(classHash, version1, salt, nil, nil, 5000)
		require.NoError(t, err)

		want, err := core.ContractAddress(salt, classHash, nil, &felt.Zero)
		require.NoError(t, err)
		assert.Equal(t, want, address)

		require.Len(t, *txns, 1)
		txn := (*txns)[0]
		assert.Equal(t, new(felt.Felt).SetUint64(5000), txn.MaxFee)
		assert.Equal(t, address, txn.ContractAddress)
		assert.Equal(t, &felt.Zero, txn.Nonce)
		assert.Equal(t, txHash, txn.TransactionHash)

		computed, err := core.TransactionHash(txn, seq.BlockContext().ChainIDFelt())
		require.NoError(t, err)
		assert.Equal(t, computed, txHash)

		receipt, err := seq.Receipt(txHash)
		require.NoError(t, err)
		assert.Equal(t, new(felt.Felt).SetUint64(5000), receipt.MaxFee)
		assert.Equal(t, address, receipt.ContractAddress)
	})

	t.Run("native executor", func(t *testing.T) {
		seq, plainHash := feelessSequencer(t)

		txHash, address, err := seq.DripAndDeployAccount(plainHash, version1, salt, []*felt.Felt{}, []*felt.Felt{}, 5000)
		require.NoError(t, err)

		want, err := core.ContractAddress(salt, plainHash, nil, &felt.Zero)
		require.NoError(t, err)
		assert.Equal(t, want, address)

		receipt, err := seq.Receipt(txHash)
		require.NoError(t, err)
		assert.Equal(t, new(felt.Felt).SetUint64(5000), receipt.MaxFee)
		assert.True(t, receipt.ActualFee.IsZero())

		deployed, err := seq.ClassHash(address)
		require.NoError(t, err)
		assert.Equal(t, *plainHash, deployed)

		nonce, err := seq.Nonce(address)
		require.NoError(t, err)
		assert.Equal(t, felt.One, nonce)

		balance, err := seq.Balance(address)
		require.NoError(t, err)
		assert.Equal(t, *new(felt.Felt).SetUint64(5000), balance)
	})
}

func TestAddressDeterminism(t *testing.T) {
	salt := new(felt.Felt).SetUint64(7)
	calldata := []*felt.Felt{new(felt.Felt).SetUint64(1), new(felt.Felt).SetUint64(2)}

	var addresses []*felt.Felt
	for range 3 {
		executor, _ := recordingExecutor(t)
		seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
		require.NoError(t, err)

		_, address, err := seq.DripAndDeployAccount(classHash, version1, salt, calldata, nil, 1)
		require.NoError(t, err)
		addresses = append(addresses, address)
	}

	for _, address := range addresses[1:] {
		assert.Equal(t, addresses[0], address)
	}
}

func TestMaxFeeIsFundedBalance(t *testing.T) {
	for _, balance := range []uint64{0, 1, 5000, math.MaxUint64} {
		executor, txns := recordingExecutor(t)
		seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
		require.NoError(t, err)

		_, _, err = seq.DripAndDeployAccount(classHash, version1, new(felt.Felt).SetUint64(balance), nil, nil, balance)
		require.NoError(t, err)

		require.Len(t, *txns, 1)
		assert.Equal(t, new(felt.Felt).SetUint64(balance), (*txns)[0].MaxFee, "balance %d", balance)
	}
}

func TestSequentialDeploymentsAreIsolated(t *testing.T) {
	executor, txns := recordingExecutor(t)
	seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
	require.NoError(t, err)

	saltA, saltB := new(felt.Felt).SetUint64(1), new(felt.Felt).SetUint64(2)
	calldataA := []*felt.Felt{new(felt.Felt).SetUint64(0xa)}
	calldataB := []*felt.Felt{new(felt.Felt).SetUint64(0xb)}

	addressA, err := core.ContractAddress(saltA, classHash, calldataA, &felt.Zero)
	require.NoError(t, err)
	require.NoError(t, seq.Drip(addressA, new(felt.Felt).SetUint64(100)))

	_, gotA, err := seq.DeployAccount(classHash, version1, saltA, calldataA, nil)
	require.NoError(t, err)
	_, gotB, err := seq.DeployAccount(classHash, version1, saltB, calldataB, nil)
	require.NoError(t, err)

	assert.Equal(t, addressA, gotA)
	assert.NotEqual(t, gotA, gotB)

	require.Len(t, *txns, 2)
	assert.Equal(t, new(felt.Felt).SetUint64(100), (*txns)[0].MaxFee)
	assert.True(t, (*txns)[1].MaxFee.IsZero())
}

func TestUnfundedDeploymentIsNotRejected(t *testing.T) {
	t.Run("mock executor", func(t *testing.T) {
		executor, txns := recordingExecutor(t)
		seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
		require.NoError(t, err)

		_, _, err = seq.DeployAccount(classHash, version1, &felt.One, nil, nil)
		require.NoError(t, err)
		require.Len(t, *txns, 1)
		assert.True(t, (*txns)[0].MaxFee.IsZero())
	})

	t.Run("native executor with fees rejects it", func(t *testing.T) {
		seq := sequencer.New()
		plainHash, err := seq.DeclareClass(plainClass)
		require.NoError(t, err)

		_, _, err = seq.DeployAccount(plainHash, version1, &felt.One, nil, nil)
		require.ErrorIs(t, err, vm.ErrMaxFeeTooLow)
	})
}

func TestConcurrentDripAndDeploy(t *testing.T) {
	seq, plainHash := feelessSequencer(t)

	const deployers = 32
	txHashes := make([]*felt.Felt, deployers)
	addresses := make([]*felt.Felt, deployers)

	var wg conc.WaitGroup
	for i := range deployers {
		wg.Go(func() {
			salt := new(felt.Felt).SetUint64(uint64(i))
			txHash, address, err := seq.DripAndDeployAccount(plainHash, version1, salt, nil, nil, 1000+uint64(i))
			if assert.NoError(t, err) {
				txHashes[i], addresses[i] = txHash, address
			}
		})
	}
	wg.Wait()

	for i := range deployers {
		require.NotNil(t, txHashes[i])
		want := new(felt.Felt).SetUint64(1000 + uint64(i))

		receipt, err := seq.Receipt(txHashes[i])
		require.NoError(t, err)
		assert.Equal(t, want, receipt.MaxFee)

		balance, err := seq.Balance(addresses[i])
		require.NoError(t, err)
		assert.Equal(t, *want, balance)
	}
}

func TestExecutorErrorsArePassedThrough(t *testing.T) {
	executionErr := vm.TransactionExecutionError{Cause: vm.ErrInvalidNonce}

	executor := mocks.NewMockExecutor(gomock.NewController(t))
	executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, executionErr)
	seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
	require.NoError(t, err)

	txHash, address, err := seq.DripAndDeployAccount(classHash, version1, &felt.One, nil, nil, 10)
	assert.Equal(t, executionErr, err)
	assert.Nil(t, txHash)
	assert.Nil(t, address)

	// the drip happened before execution and stays
	want, err := core.ContractAddress(&felt.One, classHash, nil, &felt.Zero)
	require.NoError(t, err)
	balance, err := seq.Balance(want)
	require.NoError(t, err)
	assert.Equal(t, *new(felt.Felt).SetUint64(10), balance)
}

func TestDerivationErrors(t *testing.T) {
	// any call to the executor fails the test
	executor := mocks.NewMockExecutor(gomock.NewController(t))
	seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(executor))
	require.NoError(t, err)

	var derivationErr *core.DerivationError

	_, _, err = seq.DeployAccount(classHash, version1, nil, nil, nil)
	require.ErrorAs(t, err, &derivationErr)
	require.ErrorIs(t, err, core.ErrNilFelt)

	_, _, err = seq.DripAndDeployAccount(nil, version1, &felt.One, nil, nil, 1)
	require.ErrorAs(t, err, &derivationErr)

	_, _, err = seq.DeployAccount(classHash, nil, &felt.One, nil, nil)
	require.ErrorIs(t, err, core.ErrNilFelt)
}

func TestDeployAccountWithSignature(t *testing.T) {
	const balance = 1_000_000_000_000_000

	seq := sequencer.New()
	accountHash, err := core.DefaultAccountClass().Hash()
	require.NoError(t, err)

	key, err := crypto.GenerateKeyPair(crand.Reader)
	require.NoError(t, err)
	salt := new(felt.Felt).SetUint64(99)
	calldata := []*felt.Felt{key.PublicKey}

	txn, err := sequencer.DeployAccountTransaction(seq.BlockContext(), accountHash, version1, salt, calldata, nil,
		new(felt.Felt).SetUint64(balance))
	require.NoError(t, err)
	r, s, err := key.Sign(txn.TransactionHash)
	require.NoError(t, err)

	txHash, address, err := seq.DripAndDeployAccount(accountHash, version1, salt, calldata, []*felt.Felt{r, s}, balance)
	require.NoError(t, err)
	assert.Equal(t, txn.TransactionHash, txHash)
	assert.Equal(t, txn.ContractAddress, address)

	receipt, err := seq.Receipt(txHash)
	require.NoError(t, err)
	assert.False(t, receipt.ActualFee.IsZero())

	remaining, err := seq.Balance(address)
	require.NoError(t, err)
	assert.Equal(t, *new(felt.Felt).Sub(new(felt.Felt).SetUint64(balance), receipt.ActualFee), remaining)

	collected, err := seq.Balance(seq.BlockContext().SequencerAddress)
	require.NoError(t, err)
	assert.Equal(t, *receipt.ActualFee, collected)

	t.Run("wrong signature", func(t *testing.T) {
		_, _, err := seq.DripAndDeployAccount(accountHash, version1, new(felt.Felt).SetUint64(100), calldata,
			[]*felt.Felt{r, s}, balance)
		require.ErrorIs(t, err, vm.ErrInvalidSignature)
	})
}

func TestAddTransaction(t *testing.T) {
	seq, plainHash := feelessSequencer(t)

	txn, err := sequencer.DeployAccountTransaction(seq.BlockContext(), plainHash, version1, &felt.One, nil, nil, &felt.Zero)
	require.NoError(t, err)

	info, err := seq.AddTransaction(txn)
	require.NoError(t, err)
	assert.Equal(t, txn.TransactionHash, info.TransactionHash)
	assert.Equal(t, txn.ContractAddress, info.ContractAddress)

	receipt, err := seq.Receipt(txn.TransactionHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), receipt.BlockNumber)
	assert.Equal(t, uint64(10), receipt.ExecutionResources[core.StepsResource])

	_, err = seq.AddTransaction(txn)
	require.ErrorIs(t, err, vm.ErrInvalidNonce)
}

func TestDeclareClass(t *testing.T) {
	seq := sequencer.New()

	_, err := seq.DeclareClass(core.DefaultAccountClass())
	require.ErrorIs(t, err, sequencer.ErrClassAlreadyDeclared)

	plainHash, err := seq.DeclareClass(plainClass)
	require.NoError(t, err)
	class, err := seq.Class(plainHash)
	require.NoError(t, err)
	assert.Equal(t, plainClass, class)
}

func TestReceiptNotFound(t *testing.T) {
	_, err := sequencer.New().Receipt(new(felt.Felt).SetUint64(1))
	require.ErrorIs(t, err, sequencer.ErrReceiptNotFound)
}

func TestCloseBlock(t *testing.T) {
	backing := state.NewDictReader()
	var closedBlocks []uint64
	seq, err := sequencer.NewWithOptions(
		sequencer.WithExecutor(vm.NewNativeExecutor(utils.NewNopZapLogger(), true, false)),
		sequencer.WithBackingState(backing),
		sequencer.WithListener(&sequencer.SelectiveListener{
			OnBlockClosedCb: func(number uint64, _ int) {
				closedBlocks = append(closedBlocks, number)
			},
		}),
	)
	require.NoError(t, err)
	plainHash, err := seq.DeclareClass(plainClass)
	require.NoError(t, err)

	_, address, err := seq.DripAndDeployAccount(plainHash, version1, &felt.One, nil, nil, 77)
	require.NoError(t, err)

	diff, err := seq.CloseBlock(100)
	require.NoError(t, err)
	// two declared classes, one balance, one nonce, one deployed contract
	assert.Equal(t, 5, diff.Length())

	blockCtx := seq.BlockContext()
	assert.Equal(t, uint64(1), blockCtx.BlockNumber)
	assert.Equal(t, uint64(100), blockCtx.BlockTimestamp)

	height, err := backing.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)

	deployed, err := backing.ContractClassHash(address)
	require.NoError(t, err)
	assert.Equal(t, *plainHash, deployed)

	// committed state is still visible through the sequencer
	balance, err := seq.Balance(address)
	require.NoError(t, err)
	assert.Equal(t, *new(felt.Felt).SetUint64(77), balance)

	diff, err = seq.CloseBlock(200)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, []uint64{0, 1}, closedBlocks)

	t.Run("restart resumes after the committed height", func(t *testing.T) {
		restarted, err := sequencer.NewWithOptions(sequencer.WithBackingState(backing))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), restarted.BlockContext().BlockNumber)

		deployed, err := restarted.ClassHash(address)
		require.NoError(t, err)
		assert.Equal(t, *plainHash, deployed)
	})
}

type failingCommitter struct {
	*state.DictReader
}

func (failingCommitter) Commit(*core.StateDiff, uint64) error {
	return errors.New("disk full")
}

func TestCloseBlockCommitFailure(t *testing.T) {
	seq, err := sequencer.NewWithOptions(sequencer.WithBackingState(failingCommitter{state.NewDictReader()}))
	require.NoError(t, err)

	_, err = seq.CloseBlock(1)
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, uint64(0), seq.BlockContext().BlockNumber)
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(core.Transaction, *core.BlockContext, state.State) (*vm.ExecutionInfo, error) {
	panic("boom")
}

func TestPanicPoisonsState(t *testing.T) {
	seq, err := sequencer.NewWithOptions(sequencer.WithExecutor(panickingExecutor{}))
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_, _, _ = seq.DeployAccount(classHash, version1, &felt.One, nil, nil)
	})
	assert.PanicsWithValue(t, sequencer.ErrStatePoisoned, func() {
		_, _ = seq.Balance(&felt.One)
	})
	assert.PanicsWithValue(t, sequencer.ErrStatePoisoned, func() {
		_ = seq.Drip(&felt.One, &felt.One)
	})
}

func TestListener(t *testing.T) {
	var (
		drips, executions, failures int
		took                        time.Duration
	)
	listener := &sequencer.SelectiveListener{
		OnDripCb: func() { drips++ },
		OnExecutionCb: func(d time.Duration, err error) {
			executions++
			took += d
			if err != nil {
				failures++
			}
		},
	}
	seq, err := sequencer.NewWithOptions(
		sequencer.WithExecutor(vm.NewNativeExecutor(utils.NewNopZapLogger(), true, false)),
		sequencer.WithListener(listener),
	)
	require.NoError(t, err)

	_, _, err = seq.DripAndDeployAccount(classHash, version1, &felt.One, nil, nil, 1)
	require.ErrorIs(t, err, vm.ErrUndeclaredClass)

	assert.Equal(t, 1, drips)
	assert.Equal(t, 1, executions)
	assert.Equal(t, 1, failures)
	assert.GreaterOrEqual(t, took, time.Duration(0))
}
