package genesis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/sequencer"
	"github.com/NethermindEth/devnet/utils"
	"github.com/NethermindEth/devnet/validator"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownClass = errors.New("unknown class")
	ErrKeyMismatch  = errors.New("public key does not match private key")
)

// Config describes the classes and accounts a devnet starts with
type Config struct {
	Classes  []*core.Class `yaml:"classes" validate:"dive,required"`
	Accounts []Account     `yaml:"accounts" validate:"dive"`
}

type Account struct {
	// Class is the name of a class in Config.Classes. Empty selects the default account class.
	Class      string     `yaml:"class"`
	PublicKey  *felt.Felt `yaml:"public_key" validate:"required_without=PrivateKey"`
	PrivateKey *felt.Felt `yaml:"private_key"`
	Salt       *felt.Felt `yaml:"salt"`
	Balance    uint64     `yaml:"balance"`
}

// DeployedAccount is an account Apply funded and deployed
type DeployedAccount struct {
	Address         *felt.Felt
	ClassHash       *felt.Felt
	PublicKey       *felt.Felt
	PrivateKey      *felt.Felt
	TransactionHash *felt.Felt
	Balance         uint64
}

func Read(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(file))
	decoder.KnownFields(true)
	var config Config
	if err = decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("decode genesis file %s: %w", path, err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if err := validator.Validator().Struct(c); err != nil {
		return err
	}

	names := map[string]struct{}{core.DefaultAccountClass().Name: {}}
	for _, class := range c.Classes {
		names[class.Name] = struct{}{}
	}
	for i, account := range c.Accounts {
		if account.Class == "" {
			continue
		}
		if _, ok := names[account.Class]; !ok {
			return fmt.Errorf("account %d: %w %q", i, ErrUnknownClass, account.Class)
		}
	}
	return nil
}

// Apply declares the classes of cfg and funds and deploys its accounts. Classes
// that are already declared are skipped.
func Apply(seq *sequencer.Sequencer, cfg *Config, log utils.SimpleLogger) ([]DeployedAccount, error) {
	defaultClass := core.DefaultAccountClass()
	defaultHash, err := defaultClass.Hash()
	if err != nil {
		return nil, err
	}
	classHashes := map[string]*felt.Felt{defaultClass.Name: defaultHash}

	for _, class := range cfg.Classes {
		classHash, err := seq.DeclareClass(class)
		if errors.Is(err, sequencer.ErrClassAlreadyDeclared) {
			classHash, err = class.Hash()
		}
		if err != nil {
			return nil, fmt.Errorf("declare class %q: %w", class.Name, err)
		}
		classHashes[class.Name] = classHash
	}

	deployed := make([]DeployedAccount, 0, len(cfg.Accounts))
	for i, account := range cfg.Accounts {
		result, err := deployAccount(seq, &account, classHashes)
		if err != nil {
			return nil, fmt.Errorf("deploy account %d: %w", i, err)
		}
		log.Debugw("Deployed genesis account", "address", result.Address.ShortString(), "balance", result.Balance)
		deployed = append(deployed, *result)
	}
	log.Infow("Applied genesis", "classes", len(cfg.Classes), "accounts", len(deployed))
	return deployed, nil
}

func deployAccount(seq *sequencer.Sequencer, account *Account, classHashes map[string]*felt.Felt) (*DeployedAccount, error) {
	className := account.Class
	if className == "" {
		className = core.DefaultAccountClass().Name
	}
	classHash, ok := classHashes[className]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownClass, className)
	}

	publicKey := account.PublicKey
	var keys *crypto.KeyPair
	if account.PrivateKey != nil {
		var err error
		if keys, err = crypto.KeyPairFromPrivateKey(account.PrivateKey); err != nil {
			return nil, err
		}
		if publicKey != nil && !publicKey.Equal(keys.PublicKey) {
			return nil, ErrKeyMismatch
		}
		publicKey = keys.PublicKey
	}

	salt := account.Salt
	if salt == nil {
		salt = new(felt.Felt)
	}
	calldata := []*felt.Felt{publicKey}

	var signature []*felt.Felt
	if keys != nil {
		balance := new(felt.Felt).SetUint64(account.Balance)
		txn, err := sequencer.DeployAccountTransaction(seq.BlockContext(), classHash, &felt.One, salt, calldata, nil, balance)
		if err != nil {
			return nil, err
		}
		r, s, err := keys.Sign(txn.TransactionHash)
		if err != nil {
			return nil, err
		}
		signature = []*felt.Felt{r, s}
	}

	txHash, address, err := seq.DripAndDeployAccount(classHash, &felt.One, salt, calldata, signature, account.Balance)
	if err != nil {
		return nil, err
	}
	return &DeployedAccount{
		Address:         address,
		ClassHash:       classHash,
		PublicKey:       publicKey,
		PrivateKey:      account.PrivateKey,
		TransactionHash: txHash,
		Balance:         account.Balance,
	}, nil
}

// SeedAccounts generates n development accounts of the default account class.
// The same seed always yields the same keys.
func SeedAccounts(n int, balance, seed uint64) ([]Account, error) {
	var chachaSeed [32]byte
	binary.BigEndian.PutUint64(chachaSeed[:8], seed)
	rng := rand.NewChaCha8(chachaSeed)

	accounts := make([]Account, 0, n)
	for range n {
		keys, err := crypto.GenerateKeyPair(rng)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, Account{
			PublicKey:  keys.PublicKey,
			PrivateKey: keys.PrivateKey,
			Balance:    balance,
		})
	}
	return accounts, nil
}
