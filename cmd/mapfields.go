package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/naqeebali-shamsi/intellifill/internal/mapper"
	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

var (
	mapDocID     string
	mapFormID    string
	mapFormSpec  string
	mapSave      bool
	mapOverrides []string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map a document's extracted fields onto a target form",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(mapFormSpec)
		if err != nil {
			return eris.Wrapf(err, "read form spec %s", mapFormSpec)
		}
		var form []model.FormFieldDescriptor
		if err := json.Unmarshal(data, &form); err != nil {
			return eris.Wrapf(err, "parse form spec %s", mapFormSpec)
		}

		fields, err := env.Store.FieldsForDocument(ctx, mapDocID)
		if err != nil {
			return err
		}

		mappings, err := env.Mapper.Map(form, mapper.CandidatesFromFields(fields))
		if err != nil {
			var ve *mapper.ValidationError
			if errors.As(err, &ve) {
				return eris.Wrap(err, "invalid mapping input")
			}
			return err
		}

		for _, o := range mapOverrides {
			formField, sourceField, ok := splitOverride(o)
			if !ok {
				return eris.Errorf("invalid override %q, want form_field=source_field", o)
			}
			mappings = mapper.ApplyOverride(mappings, formField, sourceField)
		}

		if mapSave {
			if mapFormID == "" {
				return eris.New("--save requires --form")
			}
			if err := env.Store.SaveMappings(ctx, mapDocID, mapFormID, mappings); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mappings)
	},
}

func splitOverride(s string) (formField, sourceField string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], i > 0 && i < len(s)-1
		}
	}
	return "", "", false
}

func init() {
	mapCmd.Flags().StringVar(&mapDocID, "document", "", "source document id")
	mapCmd.Flags().StringVar(&mapFormID, "form", "", "target form id (for --save)")
	mapCmd.Flags().StringVar(&mapFormSpec, "form-fields", "", "JSON file with the form's field descriptors")
	mapCmd.Flags().BoolVar(&mapSave, "save", false, "persist the mappings")
	mapCmd.Flags().StringArrayVar(&mapOverrides, "override", nil, "manual override form_field=source_field (repeatable)")
	mapCmd.MarkFlagRequired("document")
	mapCmd.MarkFlagRequired("form-fields")
	rootCmd.AddCommand(mapCmd)
}
