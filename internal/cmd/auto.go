package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/weibaohui/negotiator/internal/model"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run an automatic negotiation in the terminal",
	Long: `Start a negotiation with the given prices and let the buyer and seller
alternate until a deal is reached or the round limit is hit.`,
	RunE: runAuto,
}

var (
	autoParams model.StartParams
	autoRounds int
)

func init() {
	flags := autoCmd.Flags()
	flags.StringVar(&autoParams.Item, "item", "Vintage camera", "item being negotiated")
	flags.StringVar(&autoParams.ItemDetails, "details", "Leica M3, 1956, fully serviced", "item description used in the listing")
	flags.Float64Var(&autoParams.SellerCost, "seller-cost", 400, "seller's cost")
	flags.Float64Var(&autoParams.SellerTarget, "seller-target", 900, "seller's asking price")
	flags.Float64Var(&autoParams.SellerMin, "seller-min", 700, "lowest price the seller accepts")
	flags.Float64Var(&autoParams.BuyerTarget, "buyer-target", 650, "price the buyer aims for")
	flags.Float64Var(&autoParams.BuyerMax, "buyer-max", 800, "buyer's budget")
	flags.IntVar(&autoRounds, "rounds", 0, "maximum buyer/seller exchanges (default from config)")
	rootCmd.AddCommand(autoCmd)
}

func runAuto(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	application, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Close()

	rounds := autoRounds
	if rounds <= 0 {
		rounds = cfg.Negotiation.AutoRounds
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintf(out, "Negotiating %q (up to %d rounds)\n\n", autoParams.Item, rounds)
	opening := application.Service.Start(ctx, autoParams)
	printTurn(out, opening)

	result := application.Service.AutoNegotiate(ctx, rounds)
	for _, turn := range result.Results {
		printTurn(out, turn)
	}

	summary, _ := application.Service.Status()
	fmt.Fprintf(out, "\nStatus: %s after %d rounds\n", summary.Status, summary.RoundCount)
	if summary.FinalPrice != nil {
		fmt.Fprintf(out, "Final price: $%s\n", llm.FormatPrice(*summary.FinalPrice))
	}
	return nil
}

func printTurn(out io.Writer, turn model.TurnResult) {
	if !turn.Success {
		fmt.Fprintf(out, "! %s\n", turn.Error)
		return
	}
	fmt.Fprintf(out, "[%s · round %d] %s\n", turn.Speaker, turn.Round, turn.Message)
}
