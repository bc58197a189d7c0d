package export

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

var xlsxHeader = []interface{}{"Status", "Angle Name", "Measured (°)", "ASME Standard", "Confidence", "Recommendation/Notes"}

var xlsxWidths = []float64{12, 25, 12, 20, 12, 60}

// XLSX writes one worksheet per report.
func XLSX(w io.Writer, reports []types.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "failed to create header style")
	}

	if len(reports) == 0 {
		if err := f.SetSheetName("Sheet1", "Reports"); err != nil {
			return errors.Wrap(err, "failed to name sheet")
		}
		if err := f.SetCellValue("Reports", "A1", "No reports."); err != nil {
			return errors.Wrap(err, "failed to write sheet")
		}
	}

	for i, r := range reports {
		sheet := "Report " + strconv.Itoa(i+1)
		if i == 0 {
			err = f.SetSheetName("Sheet1", sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to create sheet %s", sheet)
		}
		if err := xlsxSheet(f, sheet, r, bold); err != nil {
			return errors.Wrapf(err, "failed to write sheet %s", sheet)
		}
	}

	return errors.Wrap(f.Write(w), "failed to write workbook")
}

func xlsxSheet(f *excelize.File, sheet string, r types.Report, headerStyle int) error {
	var rows [][]interface{}
	switch {
	case r.Error != "":
		rows = [][]interface{}{{"Error:"}, {r.Error}}
	case r.Results == nil:
		rows = [][]interface{}{{"No results for this image."}}
	default:
		rows = append(rows, xlsxHeader)
		for _, m := range r.Results {
			rows = append(rows, []interface{}{
				status(m), m.AngleName, m.MeasuredValue, m.Standard, string(m.Confidence), m.Recommendation,
			})
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if r.Error == "" && r.Results != nil {
		if err := f.SetCellStyle(sheet, "A1", "F1", headerStyle); err != nil {
			return err
		}
	}
	for i, width := range xlsxWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}
