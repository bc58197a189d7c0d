package calibration

import (
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

// Apply offsets every measurement from its original value and re-evaluates
// it against the catalog for material, standards.DefaultMaterial when empty.
// The input is not modified.
//
// Because the offset is always added to the original value, applying a new
// calibration replaces the previous one instead of stacking on top of it.
func Apply(in []types.AngleMeasurement, offset float64, material string, catalog *standards.Catalog) []types.AngleMeasurement {
	if in == nil {
		return nil
	}
	material = resolveMaterial(material)

	out := make([]types.AngleMeasurement, len(in))
	for i, m := range in {
		base := m.Base()
		value := base + offset
		ev := catalog.Evaluate(m.AngleName, value, material)

		m.OriginalValue = &base
		m.MeasuredValue = value
		m.Standard = ev.Standard
		m.IsCompliant = ev.Compliant
		m.Recommendation = ev.Recommendation
		if m.Coordinates != nil {
			c := *m.Coordinates
			m.Coordinates = &c
		}
		out[i] = m
	}
	return out
}

// ApplyReports runs Apply over every successful report. Failed reports are
// passed through untouched.
func ApplyReports(in []types.Report, offset float64, material string, catalog *standards.Catalog) []types.Report {
	material = resolveMaterial(material)
	out := make([]types.Report, len(in))
	for i, r := range in {
		if r.Error == "" {
			r.Results = Apply(r.Results, offset, material, catalog)
			r.Material = material
		}
		out[i] = r
	}
	return out
}

func resolveMaterial(material string) string {
	if material == "" {
		return standards.DefaultMaterial
	}
	return material
}
