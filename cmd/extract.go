package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

var (
	extractDocID string
	extractSave  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <text-file>",
	Short: "Extract field values from recognized document text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		doc := model.RecognizedDocument{
			DocumentID: extractDocID,
			Text:       string(data),
		}
		fields := env.Extractor.Extract(doc)

		if extractSave {
			if extractDocID == "" {
				return eris.New("--save requires --document")
			}
			if err := env.Store.ReplaceFields(ctx, extractDocID, fields); err != nil {
				return err
			}
			zap.L().Info("fields saved",
				zap.String("document_id", extractDocID),
				zap.Int("fields", len(fields)),
			)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDocID, "document", "", "document id to attribute fields to")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist extracted fields to the store")
	rootCmd.AddCommand(extractCmd)
}
