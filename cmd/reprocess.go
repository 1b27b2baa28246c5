package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naqeebali-shamsi/intellifill/internal/reprocess"
)

var reprocessBatch bool

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <document-id>...",
	Short: "Queue low-confidence documents for escalated re-extraction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if reprocessBatch || len(args) > 1 {
			outcomes, err := env.Reprocess.RequestBatch(ctx, args)
			if err != nil {
				return err
			}
			return enc.Encode(outcomes)
		}

		attempt, err := env.Reprocess.Request(ctx, args[0])
		if err != nil {
			return err
		}
		return enc.Encode(struct {
			Attempt  any `json:"attempt"`
			Settings any `json:"settings"`
		}{attempt, reprocess.SettingsForTier(attempt.SettingsTier)})
	},
}

func init() {
	reprocessCmd.Flags().BoolVar(&reprocessBatch, "batch", false, "treat all arguments as one batch request")
	rootCmd.AddCommand(reprocessCmd)
}
