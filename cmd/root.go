package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zecswap/config"
	"zecswap/pkg/address"
	"zecswap/pkg/chains"
	"zecswap/pkg/events"
	"zecswap/pkg/monitor"
	"zecswap/pkg/provider"
	"zecswap/pkg/provider/nearintents"
	"zecswap/pkg/provider/sideshift"
	"zecswap/pkg/quote"
	"zecswap/pkg/session"
	"zecswap/pkg/shield"
	"zecswap/pkg/swap"
	"zecswap/pkg/types"
	"zecswap/pkg/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "zecswap",
	Short: "Swap between shielded ZEC and assets on other chains",
	Long: `zecswap orchestrates swaps between the Zcash shielded pool and assets on
other chains. Inbound swaps land on a fresh transparent address and are
auto-shielded after a randomized delay; outbound swaps stage through a
fresh transparent address so shielded activity stays unlinkable.

Examples:
  zecswap quote 0.5 BTC to ZEC
  zecswap buy 0.5 BTC --refund-to <btc-address>
  zecswap sell 1.5 ZEC to USDC --to 0x123...
  zecswap continue <session-id> <unshield-txid>
  zecswap sessions`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

// engine bundles everything a command needs.
type engine struct {
	service *swap.Service
	cfg     *config.Config
	log     *logrus.Logger
}

// buildEngine wires the full stack from configuration.
func buildEngine(verbose bool) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	bus := events.NewBus(log)

	var store session.Store
	switch cfg.Storage.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		store, err = session.NewRedisStore(client)
	default:
		store, err = session.NewFileStore(cfg.Storage.FilePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	var w wallet.Wallet
	if cfg.Zcashd.CLIPath != "" {
		w = wallet.NewZcashdWallet(wallet.ZcashdConfig{
			CLIPath:        cfg.Zcashd.CLIPath,
			CLIArgs:        cfg.Zcashd.CLIArgs,
			ShieldedSource: cfg.Zcashd.ShieldedSource,
		})
	}

	allocator, err := address.NewAllocator(cfg.Privacy.CounterFilePath, w, cfg.Privacy.AccountIndex, log)
	if err != nil {
		return nil, err
	}

	providers := make(map[string]provider.Provider)
	if cfg.NearIntents.Enabled {
		p := nearintents.NewClient(cfg.NearIntents.JWTToken, log)
		providers[p.Name()] = p
	}
	if cfg.SideShift.Enabled {
		p := sideshift.NewClient(sideshift.Config{
			BaseURL:           cfg.SideShift.BaseURL,
			AffiliateID:       cfg.SideShift.AffiliateID,
			RequestsPerSecond: cfg.SideShift.RequestsPerSecond,
		}, log)
		providers[p.Name()] = p
	}

	providerList := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		providerList = append(providerList, p)
	}
	aggregator := quote.New(providerList, quote.DefaultProviderTimeout, log)

	coordinator := shield.New(w, store, bus, shield.Config{
		MinDelay:      cfg.Privacy.MinShieldDelay,
		MaxDelay:      cfg.Privacy.MaxShieldDelay,
		DustThreshold: types.Amount(cfg.Privacy.DustThreshold),
	}, log)

	mon := monitor.New(store, providers, coordinator, bus, monitor.Config{
		InitialDelay: cfg.Monitor.InitialDelay,
		PollInterval: cfg.Monitor.PollInterval,
		MaxPolls:     cfg.Monitor.MaxPolls,
	}, log)

	service, err := swap.NewService(swap.Deps{
		Aggregator: aggregator,
		Providers:  providers,
		Store:      store,
		Allocator:  allocator,
		Monitor:    mon,
		Bus:        bus,
		Config:     swap.Config{MinAmountIn: types.Amount(cfg.MinAmountIn)},
		Log:        log,
	})
	if err != nil {
		return nil, err
	}

	return &engine{service: service, cfg: cfg, log: log}, nil
}

// resolveAsset turns a token symbol and optional chain flag into a
// ChainAsset.
func resolveAsset(symbol, chainFlag string) (types.ChainAsset, error) {
	var chain types.Chain
	if chainFlag != "" {
		c, err := chains.ParseChain(chainFlag)
		if err != nil {
			return types.ChainAsset{}, err
		}
		chain = c
	} else {
		c, ok := chains.DefaultChainFor(symbol)
		if !ok {
			return types.ChainAsset{}, fmt.Errorf("no default chain for %s; specify one with --from-chain/--to-chain", symbol)
		}
		chain = c
	}
	return types.ChainAsset{Chain: chain, Asset: symbol}, nil
}

// quoteProbeAddresses are syntactically valid per-chain addresses used
// only when pricing and no real address is known yet. Execution always
// substitutes the real recipient.
var quoteProbeAddresses = map[types.Chain]string{
	types.ChainZcash:    "t1Kev8SEghzvCTAZRLPiNPSpLE4ucUZncoF",
	types.ChainBitcoin:  "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	types.ChainEthereum: "0x0000000000000000000000000000000000000001",
	types.ChainBase:     "0x0000000000000000000000000000000000000001",
	types.ChainArbitrum: "0x0000000000000000000000000000000000000001",
	types.ChainSolana:   "11111111111111111111111111111111",
	types.ChainNear:     "intents.near",
}

func probeAddress(chain types.Chain) string {
	return quoteProbeAddresses[chain]
}
