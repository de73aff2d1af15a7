package main

import (
	"fmt"
	"time"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/node"
	"github.com/NethermindEth/devnet/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version string

const greeting = `
     _                      _
  __| | _____   ___ __   ___| |_
 / _' |/ _ \ \ / / '_ \ / _ \ __|
| (_| |  __/\ V /| | | |  __/ |_
 \__,_|\___| \_/ |_| |_|\___|\__|

A local Starknet sequencer for development and testing.

`

const (
	configF           = "config"
	logLevelF         = "log-level"
	colourF           = "colour"
	dbPathF           = "db-path"
	metricsF          = "metrics"
	metricsHostF      = "metrics-host"
	metricsPortF      = "metrics-port"
	chainIDF          = "chain-id"
	sequencerAddressF = "sequencer-address"
	feeTokenAddressF  = "fee-token-address"
	gasPriceF         = "gas-price"
	invokeMaxStepsF   = "invoke-max-steps"
	validateMaxStepsF = "validate-max-steps"
	disableFeesF      = "disable-fees"
	skipValidateF     = "skip-validate"
	genesisFileF      = "genesis-file"
	seedAccountsF     = "seed-accounts"
	seedBalanceF      = "seed-balance"
	seedF             = "seed"
	blockTimeF        = "block-time"

	defaultConfig       = ""
	defaultLogLevel     = utils.INFO
	defaultColour       = true
	defaultDBPath       = ""
	defaultMetrics      = false
	defaultMetricsHost  = "localhost"
	defaultMetricsPort  = uint16(9090)
	defaultChainID      = core.DefaultChainID
	defaultGasPrice     = uint64(core.DefaultGasPrice)
	defaultMaxSteps     = uint64(core.DefaultMaxSteps)
	defaultDisableFees  = false
	defaultSkipValidate = false
	defaultGenesisFile  = ""
	defaultSeedAccounts = 10
	defaultSeedBalance  = uint64(1_000_000_000_000_000_000)
	defaultSeed         = uint64(0)
	defaultBlockTime    = time.Duration(0)

	configFlagUsage       = "The YAML configuration file."
	logLevelFlagUsage     = "Options: debug, info, warn, error."
	colourUsage           = "Uses --colour=false command to disable colourized outputs (ANSI Escape Codes)."
	dbPathUsage           = "Location of the database files. The state is kept in memory if unset."
	metricsUsage          = "Enables the Prometheus metrics endpoint on the default port."
	metricsHostUsage      = "The interface on which the Prometheus endpoint will listen for requests."
	metricsPortUsage      = "The port on which the Prometheus endpoint will listen for requests."
	chainIDUsage          = "The chain id, a short string of at most 31 characters."
	sequencerAddressUsage = "The address collecting transaction fees."
	feeTokenAddressUsage  = "The address of the fee token contract."
	gasPriceUsage         = "The L1 gas price in wei."
	invokeMaxStepsUsage   = "The step limit of constructor execution."
	validateMaxStepsUsage = "The step limit of transaction validation."
	disableFeesUsage      = "Executes transactions without charging fees."
	skipValidateUsage     = "Skips the validation phase, signatures are not checked."
	genesisFileUsage      = "Path to a YAML genesis file with classes and accounts to deploy at block 0."
	seedAccountsUsage     = "The number of development accounts to deploy at block 0."
	seedBalanceUsage      = "The fee token balance of each development account."
	seedUsage             = "The seed the development account keys are derived from."
	blockTimeUsage        = "Interval between blocks, e.g. 10s. Zero closes the open block only on shutdown."
)

var DevnetNode node.DevnetNode

func NewCmd(newNodeFn node.NewDevnetNodeFn) *cobra.Command {
	devnetCmd := &cobra.Command{
		Use:     "devnet [flags]",
		Short:   "Local Starknet development sequencer.",
		Version: Version,
		Args:    cobra.NoArgs,
	}

	var cfgFile string
	logLevel := utils.NewLogLevel(defaultLogLevel)

	devnetCmd.Flags().StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	devnetCmd.Flags().Var(logLevel, logLevelF, logLevelFlagUsage)
	devnetCmd.Flags().Bool(colourF, defaultColour, colourUsage)
	devnetCmd.Flags().String(dbPathF, defaultDBPath, dbPathUsage)
	devnetCmd.Flags().Bool(metricsF, defaultMetrics, metricsUsage)
	devnetCmd.Flags().String(metricsHostF, defaultMetricsHost, metricsHostUsage)
	devnetCmd.Flags().Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)
	devnetCmd.Flags().String(chainIDF, defaultChainID, chainIDUsage)
	devnetCmd.Flags().String(sequencerAddressF, core.DefaultSequencerAddress.String(), sequencerAddressUsage)
	devnetCmd.Flags().String(feeTokenAddressF, core.DefaultFeeTokenAddress.String(), feeTokenAddressUsage)
	devnetCmd.Flags().Uint64(gasPriceF, defaultGasPrice, gasPriceUsage)
	devnetCmd.Flags().Uint64(invokeMaxStepsF, defaultMaxSteps, invokeMaxStepsUsage)
	devnetCmd.Flags().Uint64(validateMaxStepsF, defaultMaxSteps, validateMaxStepsUsage)
	devnetCmd.Flags().Bool(disableFeesF, defaultDisableFees, disableFeesUsage)
	devnetCmd.Flags().Bool(skipValidateF, defaultSkipValidate, skipValidateUsage)
	devnetCmd.Flags().String(genesisFileF, defaultGenesisFile, genesisFileUsage)
	devnetCmd.Flags().Int(seedAccountsF, defaultSeedAccounts, seedAccountsUsage)
	devnetCmd.Flags().Uint64(seedBalanceF, defaultSeedBalance, seedBalanceUsage)
	devnetCmd.Flags().Uint64(seedF, defaultSeed, seedUsage)
	devnetCmd.Flags().Duration(blockTimeF, defaultBlockTime, blockTimeUsage)

	devnetCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v := viper.New()
		if cfgFile != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}

		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if _, err := fmt.Fprint(cmd.OutOrStdout(), greeting); err != nil {
			return err
		}

		devnetCfg := new(node.Config)
		if err := v.Unmarshal(devnetCfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		))); err != nil {
			return err
		}

		var err error
		DevnetNode, err = newNodeFn(devnetCfg, Version)
		if err != nil {
			return err
		}

		DevnetNode.Run(cmd.Context())
		return nil
	}

	return devnetCmd
}
