package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/utils"
	"github.com/holiman/uint256"
)

var _ Executor = (*NativeExecutor)(nil)

var queryVersion1 = new(felt.Felt).Add(core.QueryVersionOffset, &felt.One)

// NativeExecutor executes transactions against class descriptors instead of
// running contract code. Each class states the resources its entry points use
// and the executor enforces step limits, signatures and fees from those.
type NativeExecutor struct {
	log          utils.SimpleLogger
	disableFees  bool
	skipValidate bool
}

func NewNativeExecutor(log utils.SimpleLogger, disableFees, skipValidate bool) *NativeExecutor {
	return &NativeExecutor{
		log:          log,
		disableFees:  disableFees,
		skipValidate: skipValidate,
	}
}

func (e *NativeExecutor) Execute(txn core.Transaction, blockCtx *core.BlockContext, st state.State) (*ExecutionInfo, error) {
	var (
		info *ExecutionInfo
		err  error
	)
	switch t := txn.(type) {
	case *core.DeployAccountTransaction:
		info, err = e.deployAccount(t, blockCtx, st)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedTransaction, txn)
	}
	if err != nil {
		return nil, TransactionExecutionError{Cause: err}
	}

	e.log.Debugw("Executed transaction",
		"hash", info.TransactionHash.ShortString(),
		"fee", info.ActualFee.String(),
		"steps", info.Resources[core.StepsResource])
	return info, nil
}

func (e *NativeExecutor) deployAccount(txn *core.DeployAccountTransaction, blockCtx *core.BlockContext,
	st state.State,
) (*ExecutionInfo, error) {
	if txn.Version == nil || !(txn.Version.Equal(&felt.One) || txn.Version.Equal(queryVersion1)) {
		return nil, fmt.Errorf("%w: deploy account supports version 1, got %v", ErrInvalidTransactionVersion, txn.Version)
	}

	hash, err := core.TransactionHash(txn, blockCtx.ChainIDFelt())
	if err != nil {
		return nil, err
	}
	if txn.TransactionHash != nil && !txn.TransactionHash.Equal(hash) {
		return nil, fmt.Errorf("%w: got %s, computed %s", ErrInvalidTransactionHash, txn.TransactionHash, hash)
	}

	address, err := core.ContractAddress(txn.ContractAddressSalt, txn.ClassHash, txn.ConstructorCallData, &felt.Zero)
	if err != nil {
		return nil, err
	}
	if !address.Equal(txn.ContractAddress) {
		return nil, fmt.Errorf("%w: got %s, derived %s", ErrInvalidContractAddress, txn.ContractAddress, address)
	}

	nonce, err := st.ContractNonce(address)
	if err != nil {
		return nil, err
	}
	if !nonce.Equal(txn.Nonce) {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidNonce, nonce.String(), txn.Nonce)
	}

	if _, err = st.ContractClassHash(address); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrContractAlreadyDeployed, address)
	} else if !errors.Is(err, state.ErrContractNotDeployed) {
		return nil, err
	}

	class, err := st.Class(txn.ClassHash)
	if err != nil {
		if errors.Is(err, state.ErrClassNotDeclared) {
			return nil, fmt.Errorf("%w: %s", ErrUndeclaredClass, txn.ClassHash)
		}
		return nil, err
	}
	if !class.AcceptsCalldata(len(txn.ConstructorCallData)) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d",
			ErrInvalidCalldata, class.Name, class.ConstructorArity, len(txn.ConstructorCallData))
	}

	resources := make(map[string]uint64, len(class.Builtins)+1)
	if !e.skipValidate {
		if err = e.validate(txn, hash, class, blockCtx); err != nil {
			return nil, err
		}
		resources[core.StepsResource] += class.ValidateSteps
	}

	if class.ConstructorSteps > blockCtx.InvokeTxMaxSteps {
		return nil, fmt.Errorf("%w: constructor of %s needs %d steps, limit is %d",
			ErrStepLimitExceeded, class.Name, class.ConstructorSteps, blockCtx.InvokeTxMaxSteps)
	}
	resources[core.StepsResource] += class.ConstructorSteps
	for builtin, usage := range class.Builtins {
		resources[builtin] += usage
	}

	// every write goes to child so that a failed fee transfer leaves st untouched
	child := state.NewCached(st)
	if err = child.SetClassHash(address, txn.ClassHash); err != nil {
		return nil, err
	}
	if err = child.SetNonce(address, new(felt.Felt).Add(&nonce, &felt.One)); err != nil {
		return nil, err
	}

	actualFee := new(felt.Felt)
	if !e.disableFees {
		if actualFee, err = e.chargeFee(txn, address, resources, blockCtx, child); err != nil {
			return nil, err
		}
	}

	if err = state.Apply(st, child.StateDiff()); err != nil {
		return nil, err
	}

	return &ExecutionInfo{
		TransactionHash: hash,
		ContractAddress: address,
		MaxFee:          txn.MaxFee,
		ActualFee:       actualFee,
		Resources:       resources,
	}, nil
}

func (e *NativeExecutor) validate(txn *core.DeployAccountTransaction, hash *felt.Felt, class *core.Class,
	blockCtx *core.BlockContext,
) error {
	if class.ValidateSteps > blockCtx.ValidateMaxSteps {
		return fmt.Errorf("%w: validation of %s needs %d steps, limit is %d",
			ErrStepLimitExceeded, class.Name, class.ValidateSteps, blockCtx.ValidateMaxSteps)
	}
	if class.Kind != core.ClassKindAccount {
		return nil
	}

	// accounts take their public key as the first constructor argument
	if len(txn.ConstructorCallData) == 0 {
		return fmt.Errorf("%w: account %s needs a public key", ErrInvalidCalldata, class.Name)
	}
	if len(txn.TransactionSignature) != 2 {
		return fmt.Errorf("%w: expected (r, s), got %d elements", ErrInvalidSignature, len(txn.TransactionSignature))
	}

	ok, err := crypto.VerifySignature(txn.ConstructorCallData[0], hash, txn.TransactionSignature[0], txn.TransactionSignature[1])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// chargeFee moves the fee for resources from the account to the sequencer
func (e *NativeExecutor) chargeFee(txn *core.DeployAccountTransaction, address *felt.Felt, resources map[string]uint64,
	blockCtx *core.BlockContext, st state.State,
) (*felt.Felt, error) {
	l1Gas, err := L1GasUsage(resources, blockCtx.ResourceFeeWeights)
	if err != nil {
		return nil, err
	}

	fee := new(uint256.Int).Mul(uint256.NewInt(l1Gas), uint256.NewInt(blockCtx.GasPrice))
	if fee.Gt(feltToUint256(txn.MaxFee)) {
		return nil, fmt.Errorf("%w: actual fee %s, max fee %s", ErrMaxFeeTooLow, fee.Dec(), txn.MaxFee)
	}

	accountKey, err := core.FeeTokenBalanceKey(address)
	if err != nil {
		return nil, err
	}
	balance, err := st.ContractStorage(blockCtx.FeeTokenAddress, accountKey)
	if err != nil {
		return nil, err
	}
	accountBalance := feltToUint256(&balance)
	if accountBalance.Lt(fee) {
		return nil, fmt.Errorf("%w: balance %s, fee %s", ErrInsufficientBalance, accountBalance.Dec(), fee.Dec())
	}

	sequencerKey, err := core.FeeTokenBalanceKey(blockCtx.SequencerAddress)
	if err != nil {
		return nil, err
	}
	sequencerBalance, err := st.ContractStorage(blockCtx.FeeTokenAddress, sequencerKey)
	if err != nil {
		return nil, err
	}

	accountBalance.Sub(accountBalance, fee)
	if err = st.SetStorage(blockCtx.FeeTokenAddress, accountKey, uint256ToFelt(accountBalance)); err != nil {
		return nil, err
	}
	// an account that is also the sequencer gets its fee back
	if address.Equal(blockCtx.SequencerAddress) {
		sequencerBalance = *uint256ToFelt(accountBalance)
	}
	credited := new(uint256.Int).Add(feltToUint256(&sequencerBalance), fee)
	if err = st.SetStorage(blockCtx.FeeTokenAddress, sequencerKey, uint256ToFelt(credited)); err != nil {
		return nil, err
	}
	return uint256ToFelt(fee), nil
}

// L1GasUsage turns execution resources into L1 gas: the most expensive
// resource, weighted, rounded up.
func L1GasUsage(resources map[string]uint64, weights map[string]float64) (uint64, error) {
	var gas float64
	for kind, usage := range resources {
		if usage == 0 {
			continue
		}
		weight, ok := weights[kind]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingResourceWeight, kind)
		}
		gas = math.Max(gas, weight*float64(usage))
	}
	return uint64(math.Ceil(gas)), nil
}

func feltToUint256(f *felt.Felt) *uint256.Int {
	b := f.Bytes()
	return new(uint256.Int).SetBytes32(b[:])
}

func uint256ToFelt(i *uint256.Int) *felt.Felt {
	b := i.Bytes32()
	return new(felt.Felt).SetBytes(b[:])
}
