package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

var csvHeader = []string{
	"Report", "File", "Material", "Status", "Angle Name", "Measured (°)", "Original (°)", "ASME Standard", "Confidence", "Recommendation/Notes",
}

// CSV writes every measurement of every report as one flat table. A failed
// report contributes a single row carrying its error.
func CSV(w io.Writer, reports []types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}

	for i, r := range reports {
		n := strconv.Itoa(i + 1)
		if r.Error != "" {
			if err := cw.Write([]string{n, fileName(r), r.Material, "Error", "", "", "", "", "", r.Error}); err != nil {
				return errors.Wrap(err, "failed to write csv row")
			}
			continue
		}
		for _, m := range r.Results {
			row := []string{
				n, fileName(r), r.Material, status(m), m.AngleName,
				strconv.FormatFloat(m.MeasuredValue, 'f', -1, 64),
				strconv.FormatFloat(m.Base(), 'f', -1, 64),
				m.Standard, string(m.Confidence), m.Recommendation,
			}
			if err := cw.Write(row); err != nil {
				return errors.Wrap(err, "failed to write csv row")
			}
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}
