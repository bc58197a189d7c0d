package analyzer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

var sampleResults = []types.AngleMeasurement{
	{AngleName: "Rake Angle", MeasuredValue: 12.5, IsCompliant: true},
	{AngleName: "Relief Angle", MeasuredValue: 3, IsCompliant: false},
}

func TestRecommendationPrompt(t *testing.T) {
	p := RecommendationPrompt(sampleResults, WorkpieceProfile{
		Material: "Aluminium 6061",
		Outcome:  "Fine surface finish",
		Hardness: "95 HB",
	})

	assert.Contains(t, p, "Rake Angle: 12.5° (Compliant)")
	assert.Contains(t, p, "Relief Angle: 3° (Non-Compliant)")
	assert.Contains(t, p, "Workpiece Material: Aluminium 6061")
	assert.Contains(t, p, "Target Outcome: Fine surface finish")
	assert.Contains(t, p, "- Hardness: 95 HB")
	assert.NotContains(t, p, "Ductility")
}

func TestRecommend(t *testing.T) {
	m := &fakeModel{advice: "## Increase relief"}
	a := newTestAnalyzer(m)

	out, err := a.Recommend(context.Background(), sampleResults, WorkpieceProfile{Material: "Steel", Outcome: "Tool life"})
	require.NoError(t, err)
	assert.Equal(t, "## Increase relief", out)
	require.Len(t, m.prompts, 1)
}

func TestRecommendEmptyAnswer(t *testing.T) {
	a := newTestAnalyzer(&fakeModel{advice: "  "})
	out, err := a.Recommend(context.Background(), sampleResults, WorkpieceProfile{Material: "Steel", Outcome: "Tool life"})
	require.NoError(t, err)
	assert.Equal(t, NoRecommendations, out)
}

func TestRecommendErrors(t *testing.T) {
	m := &fakeModel{adviseErr: errors.New("quota")}
	a := newTestAnalyzer(m)

	_, err := a.Recommend(context.Background(), sampleResults, WorkpieceProfile{Material: "Steel"})
	assert.ErrorIs(t, err, ErrIncompleteProfile)

	_, err = a.Recommend(context.Background(), nil, WorkpieceProfile{Material: "Steel", Outcome: "x"})
	assert.ErrorIs(t, err, ErrNoMeasurements)

	_, err = a.Recommend(context.Background(), sampleResults, WorkpieceProfile{Material: "Steel", Outcome: "x"})
	assert.Error(t, err)
	assert.Len(t, m.prompts, 1)
}
