package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenWatch/internal/chain"
	"tokenWatch/internal/config"
	"tokenWatch/internal/erc20"
	"tokenWatch/internal/model"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register tracked tokens",
		Long: "Upserts tracked tokens. Tokens come from --token name=address pairs, or from\n" +
			"--address values whose names are read from the ERC20 contract over --rpc.\n" +
			"Without either, the built-in Ethereum and Polygon entries are seeded.",
		RunE: runSeed,
	}

	addStoreFlags(cmd)
	cmd.Flags().StringSlice("token", nil, "tokens as name=address (repeatable)")
	cmd.Flags().StringSlice("address", nil, "token addresses whose names are read on chain (comma-separated)")
	cmd.Flags().String("rpc", "", "EVM RPC URL used with --address")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSeed(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := tokensFromSpecs(cfg.Tokens)
	if err != nil {
		return err
	}

	if len(cfg.Addresses) > 0 {
		resolved, err := tokensFromChain(ctx, cfg.RPCURL, cfg.Addresses, logger)
		if err != nil {
			return err
		}
		tokens = append(tokens, resolved...)
	}

	store, err := openStore(ctx, cfg.Store, cfg.PGDSN, cfg.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertTokens(ctx, tokens); err != nil {
		return fmt.Errorf("upsert tokens: %w", err)
	}
	for _, t := range tokens {
		logger.Info("token seeded", zap.String("name", t.Name), zap.String("address", t.Address))
	}
	return nil
}

func tokensFromSpecs(specs []config.TokenSpec) ([]model.Token, error) {
	tokens := make([]model.Token, 0, len(specs))
	for _, spec := range specs {
		if !common.IsHexAddress(spec.Address) {
			return nil, fmt.Errorf("invalid address for %s: %s", spec.Name, spec.Address)
		}
		tokens = append(tokens, model.Token{
			Name:    spec.Name,
			Address: common.HexToAddress(spec.Address).Hex(),
		})
	}
	return tokens, nil
}

func tokensFromChain(ctx context.Context, rpcURL string, inputs []string, logger *zap.Logger) ([]model.Token, error) {
	addresses, err := erc20.ParseAddresses(inputs)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("resolving token names", zap.String("chain_id", chainID.String()), zap.Int("addresses", len(addresses)))

	tokens := make([]model.Token, 0, len(addresses))
	for _, addr := range addresses {
		meta, err := erc20.FetchMetadata(ctx, client, addr, logger)
		if err != nil {
			return nil, fmt.Errorf("token metadata %s: %w", addr.Hex(), err)
		}
		logger.Debug("token metadata", zap.String("address", meta.Address), zap.String("name", meta.Name), zap.String("symbol", meta.Symbol), zap.Uint8("decimals", meta.Decimals))
		tokens = append(tokens, model.Token{Name: meta.DisplayName(), Address: meta.Address})
	}
	return tokens, nil
}
