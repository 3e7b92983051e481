package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportColumns are the header cells of the exported sheet.
var ExportColumns = []string{
	"ID", "Created", "Patient", "Doctor", "Date", "Time",
	"Outcome", "Status", "Appointment", "Message", "Error",
}

const exportSheet = "Attempts"

// sheetWriter appends rows to a single excelize sheet.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter(sheet string) *sheetWriter {
	f := excelize.NewFile()
	// Rename default sheet
	_ = f.SetSheetName("Sheet1", sheet)
	return &sheetWriter{file: f, sheet: sheet, row: 1}
}

func (w *sheetWriter) writeHeader(columns []string) error {
	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	if err := w.writeRow(cells); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// ExportExcel writes every attempt, newest first, as an xlsx workbook to out.
func (j *Journal) ExportExcel(ctx context.Context, out io.Writer) error {
	attempts, err := j.List(ctx, ListFilter{})
	if err != nil {
		return err
	}

	w := newSheetWriter(exportSheet)
	defer w.file.Close()

	if err := w.writeHeader(ExportColumns); err != nil {
		return err
	}
	for _, a := range attempts {
		row := []interface{}{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.Request.PatientName,
			a.Request.DoctorName,
			a.Request.Date,
			a.Request.Time,
			string(a.Outcome),
			a.StatusCode,
			a.AppointmentID,
			a.Message,
			a.Error,
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	if _, err := w.file.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
