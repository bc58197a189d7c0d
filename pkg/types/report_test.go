package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportSummary(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{
			name:   "error report",
			report: Report{Error: "Failed to analyze image. Please try again."},
			want:   "Error",
		},
		{
			name:   "no results",
			report: Report{},
			want:   "No Data",
		},
		{
			name: "all compliant",
			report: Report{Results: []AngleMeasurement{
				{AngleName: "Rake Angle", IsCompliant: true},
				{AngleName: "Relief Angle", IsCompliant: true},
			}},
			want: "Passed",
		},
		{
			name:   "empty results still pass",
			report: Report{Results: []AngleMeasurement{}},
			want:   "Passed",
		},
		{
			name: "two issues",
			report: Report{Results: []AngleMeasurement{
				{AngleName: "Rake Angle", IsCompliant: false},
				{AngleName: "Relief Angle", IsCompliant: true},
				{AngleName: "Clearance Angle", IsCompliant: false},
			}},
			want: "2 Issues",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Summary())
		})
	}
}

func TestMeasurementBase(t *testing.T) {
	orig := 10.0
	assert.Equal(t, 12.0, AngleMeasurement{MeasuredValue: 12}.Base())
	assert.Equal(t, 10.0, AngleMeasurement{MeasuredValue: 13, OriginalValue: &orig}.Base())
}
