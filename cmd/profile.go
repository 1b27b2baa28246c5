package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

var (
	profileRefresh  bool
	profileDelete   bool
	profileAddKey   string
	profileAddValue string
	profileAddType  string
)

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show, refresh or edit a user's aggregated profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if profileDelete {
			env.Profiles.Delete(userID)
			cmd.Println("profile cache cleared")
			return nil
		}

		var p *model.Profile
		switch {
		case profileAddKey != "":
			if profileAddValue == "" {
				return eris.New("--add-value is required with --add-key")
			}
			p, err = env.Profiles.AddManualValue(ctx, userID, profileAddKey,
				model.FieldType(profileAddType), profileAddValue)
		case profileRefresh:
			p, err = env.Profiles.Refresh(ctx, userID)
		default:
			p, err = env.Profiles.Get(ctx, userID)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	profileCmd.Flags().BoolVar(&profileRefresh, "refresh", false, "recompute from scratch, bypassing the cache TTL")
	profileCmd.Flags().BoolVar(&profileDelete, "delete", false, "drop the cached profile (documents are untouched)")
	profileCmd.Flags().StringVar(&profileAddKey, "add-key", "", "field key for a manual value")
	profileCmd.Flags().StringVar(&profileAddValue, "add-value", "", "manual value to merge")
	profileCmd.Flags().StringVar(&profileAddType, "add-type", "text", "field type of the manual value")
	rootCmd.AddCommand(profileCmd)
}
