package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/naqeebali-shamsi/intellifill/internal/templates"
)

var (
	tmplFields string
	tmplUser   string
	tmplRecord bool
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Match saved templates and detect form types",
}

var templatesMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank stored templates against a field-name set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tmpls, err := env.Store.ListVisibleTemplates(ctx, tmplUser)
		if err != nil {
			return err
		}

		matches, err := env.Matcher.Match(splitFields(tmplFields), tmpls)
		if err != nil {
			return err
		}
		if tmplRecord && len(matches) > 0 {
			templates.RecordUsage(ctx, env.Store, matches[0].Template.ID)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	},
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates visible to a user (own + public)",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		tmpls, err := env.Store.ListVisibleTemplates(cmd.Context(), tmplUser)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tmpls)
	},
}

var templatesDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the form type of a field-name set",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		match, err := env.Matcher.DetectFormType(splitFields(tmplFields), env.FormTypes)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	},
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

func init() {
	for _, c := range []*cobra.Command{templatesMatchCmd, templatesDetectCmd} {
		c.Flags().StringVar(&tmplFields, "fields", "", "comma-separated field names")
		c.MarkFlagRequired("fields")
	}
	for _, c := range []*cobra.Command{templatesMatchCmd, templatesListCmd} {
		c.Flags().StringVar(&tmplUser, "user", "", "user id for visibility (own + public templates)")
	}
	templatesMatchCmd.Flags().BoolVar(&tmplRecord, "record-usage", false, "bump the top match's usage counter")
	templatesCmd.AddCommand(templatesMatchCmd, templatesListCmd, templatesDetectCmd)
	rootCmd.AddCommand(templatesCmd)
}
