package cli

import (
	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

type holdoutFlags struct {
	days int
	from string
	to   string
}

func (h *holdoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&h.days, "holdout-days", 0, "Hold out the last N rows (rolling mode)")
	cmd.Flags().StringVar(&h.from, "from", "", "Holdout start date, YYYY-MM-DD (calendar mode, inclusive)")
	cmd.Flags().StringVar(&h.to, "to", "", "Holdout end date, YYYY-MM-DD (calendar mode, inclusive)")
	cmd.MarkFlagsMutuallyExclusive("holdout-days", "from")
	cmd.MarkFlagsMutuallyExclusive("holdout-days", "to")
	cmd.MarkFlagsRequiredTogether("from", "to")
}

func (h *holdoutFlags) options() app.HoldoutOptions {
	return app.HoldoutOptions{Days: h.days, From: h.from, To: h.to}
}
