package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bazaar.com/internal/application/usecase"
	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/infrastructure/logger"
	"bazaar.com/internal/infrastructure/payment"
	"bazaar.com/internal/infrastructure/registry"
	"bazaar.com/internal/infrastructure/repository"
)

const demoOperator = "bazaar-marketplace"

var demoCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "demo",
	Short: "Run a list, buy and withdraw round against in-memory collaborators.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout())
	},
}

// runDemo lists an asset at 100, sells it for a payment of 150 and withdraws
// the seller's proceeds, printing the ledger state after each step.
func runDemo(ctx context.Context, out io.Writer) error {
	log := logger.New(io.Discard, "error")

	store := repository.NewInMemoryLedger(log)
	defer store.Close()
	assets := registry.NewInMemoryRegistry(log)
	payments := payment.NewInMemoryGateway(log)
	market := usecase.NewMarketplace(store, assets, payments, usecase.MarketplaceConfig{Operator: demoOperator}, log)

	key := entity.AssetKey{Contract: "0xdemo", TokenID: "1"}
	assets.Mint(key, "alice")
	assets.Approve(key, demoOperator)
	payments.Deposit("bob", decimal.NewFromInt(500))

	steps := []struct {
		name string
		run  func() error
	}{
		{"alice lists 0xdemo/1 at 100", func() error {
			return market.ListItem(ctx, entity.ListItemRequest{Caller: "alice", Asset: key, Price: decimal.NewFromInt(100)})
		}},
		{"bob buys 0xdemo/1 paying 150", func() error {
			_, err := market.BuyItem(ctx, entity.BuyItemRequest{Caller: "bob", Asset: key, Payment: decimal.NewFromInt(150)})
			return err
		}},
		{"alice withdraws her proceeds", func() error {
			_, err := market.WithdrawProceeds(ctx, "alice")
			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}

		listing, err := market.GetListing(ctx, key)
		if err != nil {
			return err
		}
		proceeds, err := market.GetProceeds(ctx, "alice")
		if err != nil {
			return err
		}
		owner, err := assets.OwnerOf(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n  listed=%t price=%s owner=%s proceeds[alice]=%s balance[alice]=%s balance[bob]=%s\n",
			step.name, listing.Active, listing.Price, owner, proceeds.Proceeds,
			payments.Balance("alice"), payments.Balance("bob"))
	}

	events, err := store.ListEvents(ctx, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "events:")
	enc := json.NewEncoder(out)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(demoCmd)
}
