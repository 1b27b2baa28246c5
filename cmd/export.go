package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <user-id>",
	Short: "Export a user's aggregated profile as an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Profiles.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := export.WriteProfile(p, exportOut); err != nil {
			return err
		}

		zap.L().Info("profile exported",
			zap.String("user_id", args[0]),
			zap.Int("fields", len(p.Fields)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "profile.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}
