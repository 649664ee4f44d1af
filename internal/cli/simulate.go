package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateSummary   string
	simulateSentiment string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a sample message through the delivery pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateDelivery(cmd.Context(), simulateSummary, simulateSentiment)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSummary, "summary", "Test delivery from newswatcher", "Summary text of the simulated item")
	simulateCmd.Flags().StringVar(&simulateSentiment, "sentiment", "Neutral", "Sentiment label of the simulated item")
}
