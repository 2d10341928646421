// Package export renders scraped accounts as a downloadable spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/use-agent/taxscrape/models"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbook produced by WriteWorkbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the single sheet the accounts are written to.
const SheetName = "Sheet1"

// Header is the first row. The leading blank column holds the row index.
var Header = []string{"", "Query", "Page", "Acct", "Due", "Owner", "Type", "Location", "Link"}

// WriteWorkbook writes accounts as an xlsx workbook to w, one row per
// account prefixed with its zero-based index.
func WriteWorkbook(w io.Writer, accounts []models.TaxAccount) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, a := range accounts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		row := []interface{}{i, a.Query, a.Page, a.Acct, a.Due, a.Owner, a.Type, a.Location, a.Link}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
