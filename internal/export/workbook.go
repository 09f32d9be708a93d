// Package export renders batch analysis results as spreadsheets.
package export

import (
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
)

const sheetName = "Batch Analysis"

// BuildBatchWorkbook lays batches out side by side: one parameter per row,
// one column per batch, basic fields above the test parameters in schema
// order.
func BuildBatchWorkbook(records []llm.BatchRecord, logger *slog.Logger) ([]byte, error) {
	if len(records) == 0 {
		return nil, common.NewAppError("INVALID_INPUT", "no batch records to export", common.ErrInvalidInput)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, common.WrapError(err, "creating worksheet")
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, common.WrapError(err, "removing default sheet")
	}

	header := []any{"Parameter"}
	for _, rec := range records {
		title := rec.BatchNumber
		if title == "" || title == constants.SentinelTBD {
			title = rec.Filename
		}
		header = append(header, title)
	}
	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}

	rows := [][]any{
		buildRow("Manufacture Date", records, func(r llm.BatchRecord) string { return r.ManufactureDate }),
		buildRow("Manufacturer", records, func(r llm.BatchRecord) string { return r.Manufacturer }),
	}
	for _, param := range constants.TestParameters {
		p := param
		rows = append(rows, buildRow(p, records, func(r llm.BatchRecord) string { return r.TestResults[p] }))
	}

	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCol, _ := excelize.ColumnNumberToName(len(records) + 1)
		_ = f.SetCellStyle(sheetName, "A1", endCol+"1", style)
	}
	_ = f.SetColWidth(sheetName, "A", "A", 42)

	buf, err := f.WriteToBuffer()
	if err != nil {
		logger.Error("failed to render workbook", "error", err)
		return nil, common.WrapError(err, "rendering workbook")
	}
	logger.Info("export.workbook_built", "batches", len(records), "rows", len(rows))
	return buf.Bytes(), nil
}

func buildRow(label string, records []llm.BatchRecord, get func(llm.BatchRecord) string) []any {
	row := []any{label}
	for _, rec := range records {
		row = append(row, get(rec))
	}
	return row
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return common.WrapError(err, "writing worksheet row")
	}
	return nil
}
