package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"margin-borrow-alerts/internal/app"
)

var (
	simulateAsset      string
	simulateOldBorrow  float64
	simulateNewBorrow  float64
	simulateRepay      float64
	simulateBorrowUSDT float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run a synthetic borrow change through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAsset == "" {
			return errors.New("--asset must be provided")
		}
		if simulateOldBorrow < 0 || simulateNewBorrow <= 0 {
			return errors.New("--new-borrow must be greater than 0 and --old-borrow must not be negative")
		}

		opts := app.SimulateOptions{
			Asset:      simulateAsset,
			OldBorrow:  decimal.NewFromFloat(simulateOldBorrow),
			NewBorrow:  decimal.NewFromFloat(simulateNewBorrow),
			Repay:      decimal.NewFromFloat(simulateRepay),
			BorrowUSDT: decimal.NewFromFloat(simulateBorrowUSDT),
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "", "Asset symbol (for example BTC)")
	simulateCmd.Flags().Float64Var(&simulateOldBorrow, "old-borrow", 0, "Previous 24h borrowed amount")
	simulateCmd.Flags().Float64Var(&simulateNewBorrow, "new-borrow", 0, "New 24h borrowed amount")
	simulateCmd.Flags().Float64Var(&simulateRepay, "repay", 0, "New 24h repayed amount")
	simulateCmd.Flags().Float64Var(&simulateBorrowUSDT, "borrow-usdt", 0, "New 24h borrowed amount in USDT")
}
