package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Attendance"

var exportHeader = []string{"No", "Name", "Student ID", "Class", "Major", "Check-in time"}

// ExportName is the download filename for an export taken at t
func ExportName(t time.Time) string {
	return fmt.Sprintf("attendance_%s.xlsx", t.Format("2006-01-02"))
}

// Workbook builds a spreadsheet of the rows matching query
func (d *Dashboard) Workbook(query string) (*excelize.File, error) {
	return buildWorkbook(exportSheet, d.Search(query))
}

// buildWorkbook returns an open file the caller must Close. The file is
// closed here when filling it fails.
func buildWorkbook(sheet string, rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillSheet(f, sheet, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fillSheet(f *excelize.File, sheet string, rows []Row) error {
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for c, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	end, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", end, bold)
	}
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	widths := make([]int, len(exportHeader))
	for c, h := range exportHeader {
		widths[c] = len(h)
	}
	for r, row := range rows {
		values := []string{
			strconv.Itoa(row.Index),
			row.Name,
			row.StudentID,
			row.ClassName,
			row.Major,
			strings.ReplaceAll(row.Time, "<br>", " "),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
			if l := len(v); l > widths[c] {
				widths[c] = l
			}
		}
	}
	for c, w := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		width := float64(w) * 0.9
		if width < 10 {
			width = 10
		}
		if width > 40 {
			width = 40
		}
		_ = f.SetColWidth(sheet, col, col, width)
	}
	return nil
}

// Export writes the xlsx for query to w
func (d *Dashboard) Export(w io.Writer, query string) error {
	f, err := d.Workbook(query)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
