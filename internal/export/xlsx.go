// Package export renders aggregated profiles as spreadsheet workbooks.
package export

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

var profileHeader = []string{"Field", "Values", "Sources", "Confidence", "Last Updated"}

// ProfileWorkbook builds a single-sheet workbook from a profile, one row per
// field, keys sorted alphabetically.
func ProfileWorkbook(p *model.Profile) (*xlsx.File, error) {
	if p == nil {
		return nil, eris.New("export: nil profile")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Profile")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range profileHeader {
		header.AddCell().Value = h
	}

	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		field := p.Fields[k]
		displays := make([]string, 0, len(field.Values))
		for _, v := range field.Values {
			displays = append(displays, v.Display)
		}

		row := sheet.AddRow()
		row.AddCell().Value = field.Key
		row.AddCell().Value = strings.Join(displays, "; ")
		row.AddCell().SetInt(field.SourceCount)
		row.AddCell().SetFloatWithFormat(field.Confidence, "0.0")
		row.AddCell().Value = field.LastUpdated.UTC().Format(time.RFC3339)
	}

	return f, nil
}

// WriteProfile saves the profile workbook to the given path.
func WriteProfile(p *model.Profile, path string) error {
	f, err := ProfileWorkbook(p)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
