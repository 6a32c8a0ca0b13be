package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ResponseTable is a rectangular view of a survey's responses: one row per response and
// one column per question after the fixed columns.
type ResponseTable struct {
	Header []string
	Rows   [][]string
}

var fixedExportColumns = []string{"response_id", "participant_id", "submitted_at"}

// BuildResponseTable lays responses out in question order. MULTI_SELECT answers are joined with "; ".
func BuildResponseTable(questions []*Question, responses []*Response) ResponseTable {
	header := append([]string{}, fixedExportColumns...)
	for _, q := range questions {
		header = append(header, q.Text)
	}
	rows := make([][]string, 0, len(responses))
	for _, r := range responses {
		row := make([]string, 0, len(header))
		row = append(row, r.ID, r.ParticipantID, r.CreatedAt.UTC().Format(time.RFC3339))
		for _, q := range questions {
			row = append(row, strings.Join(answerValues(r.Data[q.ID]), "; "))
		}
		rows = append(rows, row)
	}
	return ResponseTable{Header: header, Rows: rows}
}

// ExportCSV renders t as CSV.
func ExportCSV(t ResponseTable) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportXLSX renders t into a single-sheet workbook with a bold, frozen header row.
func ExportXLSX(t ResponseTable, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = "Responses"
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	for col, h := range t.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
	}
	for i, row := range t.Rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
