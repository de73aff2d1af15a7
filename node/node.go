package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/db"
	"github.com/NethermindEth/devnet/db/memory"
	"github.com/NethermindEth/devnet/db/pebble"
	"github.com/NethermindEth/devnet/genesis"
	"github.com/NethermindEth/devnet/sequencer"
	"github.com/NethermindEth/devnet/utils"
	"github.com/NethermindEth/devnet/validator"
	"github.com/NethermindEth/devnet/vm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
)

// Config is the top-level devnet configuration.
type Config struct {
	LogLevel     utils.LogLevel `mapstructure:"log-level"`
	Colour       bool           `mapstructure:"colour"`
	DatabasePath string         `mapstructure:"db-path"`

	Metrics     bool   `mapstructure:"metrics"`
	MetricsHost string `mapstructure:"metrics-host" validate:"omitempty,hostname|ip"`
	MetricsPort uint16 `mapstructure:"metrics-port"`

	ChainID          string             `mapstructure:"chain-id" validate:"omitempty,printascii,max=31"`
	SequencerAddress *felt.Felt         `mapstructure:"sequencer-address" validate:"omitempty,l2_address"`
	FeeTokenAddress  *felt.Felt         `mapstructure:"fee-token-address" validate:"omitempty,l2_address"`
	GasPrice         uint64             `mapstructure:"gas-price"`
	InvokeMaxSteps   uint64             `mapstructure:"invoke-max-steps"`
	ValidateMaxSteps uint64             `mapstructure:"validate-max-steps"`
	ResourceWeights  map[string]float64 `mapstructure:"resource-weights" validate:"dive,keys,resource_kind,endkeys,gte=0"`
	DisableFees      bool               `mapstructure:"disable-fees"`
	SkipValidate     bool               `mapstructure:"skip-validate"`

	GenesisFile  string        `mapstructure:"genesis-file" validate:"omitempty,file"`
	SeedAccounts int           `mapstructure:"seed-accounts" validate:"gte=0"`
	SeedBalance  uint64        `mapstructure:"seed-balance"`
	Seed         uint64        `mapstructure:"seed"`
	BlockTime    time.Duration `mapstructure:"block-time" validate:"gte=0"`
}

func (c *Config) Validate() error {
	return validator.Validator().Struct(c)
}

func (c *Config) blockContext() *core.BlockContext {
	return core.NewBlockContext(core.BlockContextConfig{
		ChainID:            c.ChainID,
		SequencerAddress:   c.SequencerAddress,
		FeeTokenAddress:    c.FeeTokenAddress,
		ResourceFeeWeights: c.ResourceWeights,
		GasPrice:           c.GasPrice,
		InvokeTxMaxSteps:   c.InvokeMaxSteps,
		ValidateMaxSteps:   c.ValidateMaxSteps,
	})
}

// DevnetNode is what the CLI runs
type DevnetNode interface {
	Run(ctx context.Context)
	Config() Config
}

type NewDevnetNodeFn func(cfg *Config, version string) (DevnetNode, error)

var _ DevnetNode = (*Node)(nil)

// service is a long running task of the node
type service interface {
	Run(ctx context.Context) error
}

type Node struct {
	cfg       *Config
	db        db.KeyValueStore
	sequencer *sequencer.Sequencer
	accounts  []genesis.DeployedAccount
	registry  *prometheus.Registry

	services []service
	log      utils.Logger

	version string
}

// New sets up the store, the sequencer and the services of a devnet. A fresh
// chain gets its genesis applied and committed as block 0.
func New(cfg *Config, version string) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := utils.NewZapLogger(&cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		log:      log,
		version:  version,
		registry: prometheus.NewRegistry(),
	}
	if cfg.Metrics {
		makeDevnetMetrics(n.registry, version)
	}

	if n.db, err = n.openDB(); err != nil {
		return nil, fmt.Errorf("open DB: %w", err)
	}

	if err = n.setup(); err != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			log.Errorw("Error while closing the DB", "err", closeErr)
		}
		return nil, err
	}
	return n, nil
}

func (n *Node) openDB() (db.KeyValueStore, error) {
	if n.cfg.DatabasePath == "" {
		n.log.Infow("Using in-memory state, nothing will be persisted")
		return memory.New(), nil
	}

	dbLog, err := utils.NewZapLogger(utils.NewLogLevel(utils.ERROR), n.cfg.Colour)
	if err != nil {
		return nil, fmt.Errorf("create DB logger: %w", err)
	}
	database, err := pebble.New(n.cfg.DatabasePath, dbLog)
	if err != nil {
		return nil, err
	}
	if n.cfg.Metrics {
		database.WithListener(makeDBMetrics(n.registry))
		makePebbleMetrics(n.registry, database.Impl())
	}
	return database, nil
}

func (n *Node) setup() error {
	backing := state.NewDBReader(n.db)
	_, err := backing.ChainHeight()
	fresh := errors.Is(err, state.ErrNoChainHeight)
	if err != nil && !fresh {
		return fmt.Errorf("read chain height: %w", err)
	}

	opts := []sequencer.Option{
		sequencer.WithLogger(n.log),
		sequencer.WithExecutor(vm.NewNativeExecutor(n.log, n.cfg.DisableFees, n.cfg.SkipValidate)),
		sequencer.WithBackingState(backing),
		sequencer.WithBlockContext(n.cfg.blockContext()),
	}
	if n.cfg.Metrics {
		opts = append(opts, sequencer.WithListener(makeSequencerMetrics(n.registry)))
	}
	if n.sequencer, err = sequencer.NewWithOptions(opts...); err != nil {
		return fmt.Errorf("create sequencer: %w", err)
	}

	if fresh {
		if err = n.buildGenesis(); err != nil {
			return fmt.Errorf("build genesis: %w", err)
		}
	} else {
		n.log.Infow("Resuming chain", "block", n.sequencer.BlockContext().BlockNumber)
	}

	if n.cfg.Metrics {
		listener, err := net.Listen("tcp", net.JoinHostPort(n.cfg.MetricsHost, strconv.Itoa(int(n.cfg.MetricsPort))))
		if err != nil {
			return fmt.Errorf("listen on metrics address: %w", err)
		}
		n.services = append(n.services, makeMetrics(listener, n.registry))
	}
	if n.cfg.BlockTime > 0 {
		n.services = append(n.services, newBlockProducer(n.sequencer, n.cfg.BlockTime, n.log))
	}
	return nil
}

func (n *Node) buildGenesis() error {
	cfg := new(genesis.Config)
	if n.cfg.GenesisFile != "" {
		var err error
		if cfg, err = genesis.Read(n.cfg.GenesisFile); err != nil {
			return err
		}
	}

	seeded, err := genesis.SeedAccounts(n.cfg.SeedAccounts, n.cfg.SeedBalance, n.cfg.Seed)
	if err != nil {
		return err
	}
	cfg.Accounts = append(cfg.Accounts, seeded...)

	if n.accounts, err = genesis.Apply(n.sequencer, cfg, n.log); err != nil {
		return err
	}
	if _, err = n.sequencer.CloseBlock(uint64(time.Now().Unix())); err != nil {
		return err
	}
	if len(n.accounts) > 0 {
		printAccounts(os.Stdout, n.accounts)
	}
	return nil
}

// Run starts the services of the node and blocks until ctx is cancelled or
// one of them fails. The open block is closed before the DB is.
func (n *Node) Run(ctx context.Context) {
	defer func() {
		if closeErr := n.db.Close(); closeErr != nil {
			n.log.Errorw("Error while closing the DB", "err", closeErr)
		}
	}()
	defer func() {
		if _, err := n.sequencer.CloseBlock(uint64(time.Now().Unix())); err != nil {
			n.log.Errorw("Error while closing the last block", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	for _, s := range n.services {
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
				cancel()
			}
		})
	}
	defer wg.Wait()

	<-ctx.Done()
	cancel()
	n.log.Infow("Shutting down devnet...")
}

func (n *Node) Config() Config {
	return *n.cfg
}

func (n *Node) Sequencer() *sequencer.Sequencer {
	return n.sequencer
}

// Accounts returns the accounts deployed at genesis, none when the chain was resumed
func (n *Node) Accounts() []genesis.DeployedAccount {
	return n.accounts
}
