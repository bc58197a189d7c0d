package calibration

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

func rake(v float64) types.AngleMeasurement {
	return types.AngleMeasurement{
		AngleName:     "Rake Angle",
		MeasuredValue: v,
		Standard:      "5° - 15°",
		IsCompliant:   true,
		Confidence:    types.ConfidenceHigh,
		Coordinates: &types.Coordinates{
			Vertex: types.Point{X: 500, Y: 500},
			Point1: types.Point{X: 600, Y: 500},
			Point2: types.Point{X: 500, Y: 400},
		},
	}
}

func TestApplyWithinRange(t *testing.T) {
	out := Apply([]types.AngleMeasurement{rake(10)}, 3, "HSS", standards.Default())
	require.Len(t, out, 1)

	m := out[0]
	assert.InDelta(t, 13.0, m.MeasuredValue, 1e-9)
	require.NotNil(t, m.OriginalValue)
	assert.Equal(t, 10.0, *m.OriginalValue)
	assert.True(t, m.IsCompliant)
	assert.Empty(t, m.Recommendation)
	assert.Equal(t, "5° - 15°", m.Standard)
}

func TestApplyOutOfRange(t *testing.T) {
	out := Apply([]types.AngleMeasurement{rake(10)}, 10, "HSS", standards.Default())

	m := out[0]
	assert.InDelta(t, 20.0, m.MeasuredValue, 1e-9)
	assert.False(t, m.IsCompliant)
	assert.Contains(t, m.Recommendation, "decreasing")
	assert.Contains(t, m.Recommendation, "5° - 15°")

	out = Apply([]types.AngleMeasurement{rake(10)}, -8, "HSS", standards.Default())
	assert.False(t, out[0].IsCompliant)
	assert.Contains(t, out[0].Recommendation, "increasing")
}

func TestApplyReplacesPreviousCalibration(t *testing.T) {
	first := Apply([]types.AngleMeasurement{rake(10)}, 3, "HSS", standards.Default())
	second := Apply(first, -1, "HSS", standards.Default())

	assert.InDelta(t, 9.0, second[0].MeasuredValue, 1e-9)
	assert.Equal(t, 10.0, *second[0].OriginalValue)

	reset := Apply(second, 0, "HSS", standards.Default())
	assert.Equal(t, 10.0, reset[0].MeasuredValue)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := []types.AngleMeasurement{rake(10), rake(14)}
	before := []types.AngleMeasurement{rake(10), rake(14)}

	out := Apply(in, 5, "HSS", standards.Default())
	if diff := cmp.Diff(before, in); diff != "" {
		t.Fatalf("input changed (-want +got):\n%s", diff)
	}

	out[0].Coordinates.Vertex.X = 0
	assert.Equal(t, 500.0, in[0].Coordinates.Vertex.X)
}

func TestApplyUnknownStandard(t *testing.T) {
	m := types.AngleMeasurement{AngleName: "Chisel Edge Angle", MeasuredValue: 120}
	out := Apply([]types.AngleMeasurement{m}, 500, "HSS", standards.Default())

	assert.Equal(t, standards.NotSpecified, out[0].Standard)
	assert.True(t, out[0].IsCompliant)
	assert.Empty(t, out[0].Recommendation)
}

func TestApplyNegativeLowerBound(t *testing.T) {
	cat := standards.New(standards.Table{
		"Ceramic": {"Rake Angle": {Min: -10, Max: -5}},
	})
	out := Apply([]types.AngleMeasurement{{AngleName: "Rake Angle", MeasuredValue: -6}}, -6, "Ceramic", cat)

	assert.InDelta(t, -12.0, out[0].MeasuredValue, 1e-9)
	assert.False(t, out[0].IsCompliant)
	assert.Contains(t, out[0].Recommendation, "below")
	assert.Contains(t, out[0].Recommendation, "-10° - -5°")
}

func TestApplyEmpty(t *testing.T) {
	assert.Nil(t, Apply(nil, 3, "HSS", standards.Default()))
	assert.Empty(t, Apply([]types.AngleMeasurement{}, 3, "HSS", standards.Default()))
}

func TestApplyReports(t *testing.T) {
	in := []types.Report{
		{ID: "a", Material: "HSS", Results: []types.AngleMeasurement{rake(10)}},
		{ID: "b", Error: "Failed to analyze image. Please try again."},
	}
	out := ApplyReports(in, 2, "Carbide", standards.Default())

	require.Len(t, out, 2)
	assert.Equal(t, "Carbide", out[0].Material)
	assert.InDelta(t, 12.0, out[0].Results[0].MeasuredValue, 1e-9)
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, "HSS", in[0].Material)
	assert.Equal(t, 10.0, in[0].Results[0].MeasuredValue)
}

func TestApplyEmptyMaterialUsesDefault(t *testing.T) {
	out := Apply([]types.AngleMeasurement{rake(10)}, 8, "", standards.Default())
	require.Len(t, out, 1)
	assert.Equal(t, "5° - 15°", out[0].Standard)
	assert.False(t, out[0].IsCompliant)
	assert.Contains(t, out[0].Recommendation, "decreasing")

	reports := ApplyReports([]types.Report{{ID: "a", Results: []types.AngleMeasurement{rake(10)}}}, 0, "", standards.Default())
	assert.Equal(t, standards.DefaultMaterial, reports[0].Material)
	assert.Equal(t, "5° - 15°", reports[0].Results[0].Standard)
}
