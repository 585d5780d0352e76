package sheets

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/dispatcher"
)

const maxXLSRows = 100000

// ContentType is the MIME type of the files written by ExportTable.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportTable writes a list table as a single-sheet workbook. The sheet is
// named after the table and the first row holds the column headers.
func ExportTable(w io.Writer, table dispatcher.Table) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	sheet := table.Label
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if len(table.Columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err != nil {
			return err
		}
		if err := file.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	for i, row := range table.Rows {
		cells := make([]any, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportFilename is the download name for a kind's export.
func ExportFilename(kind crm.Kind) string {
	return string(kind) + ".xlsx"
}

// ReadDrafts reads a spreadsheet whose header row names the kind's form
// fields, either by field name ("budgetRange.min") or by label
// ("Budget Min"). Unknown columns are ignored and blank rows skipped.
// Cells holding a missing-value placeholder such as "N/A" count as blank,
// so an exported sheet reads back cleanly.
func ReadDrafts(reader io.Reader, filename string, kind crm.RecordKind) ([]dispatcher.ImportRow, error) {
	rows, err := readRowsFromSpreadsheet(reader, filename)
	if err != nil {
		return nil, err
	}

	byHeader := map[string]string{}
	for _, f := range kind.FormFields() {
		byHeader[normalizeHeader(f.Name)] = f.Name
		byHeader[normalizeHeader(f.Label)] = f.Name
	}

	columns := map[int]string{}
	for i, header := range rows[0] {
		if name, ok := byHeader[normalizeHeader(header)]; ok {
			columns[i] = name
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no %s columns found in header row", kind.Singular())
	}
	for _, required := range kind.RequiredFields() {
		found := false
		for _, name := range columns {
			if name == required {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	var out []dispatcher.ImportRow
	for i, row := range rows[1:] {
		draft := crm.NewDraft(kind)
		blank := true
		for idx, name := range columns {
			v := cellValue(row, idx)
			if v == "" || crm.IsPlaceholder(v) {
				continue
			}
			blank = false
			draft[name] = v
		}
		if blank {
			continue
		}
		out = append(out, dispatcher.ImportRow{Line: i + 2, Draft: draft})
	}
	return out, nil
}

func readRowsFromSpreadsheet(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls", ".xsl":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		if workbook.NumSheets() > 1 {
			return nil, fmt.Errorf("multiple worksheets found; please upload a file with a single sheet")
		}
		rows := workbook.ReadAllCells(maxXLSRows)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}

		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
