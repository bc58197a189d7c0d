package history

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(i int, results ...types.AngleMeasurement) types.Report {
	return types.Report{
		ID:        fmt.Sprintf("r%d", i),
		Timestamp: base.Add(time.Duration(i) * time.Minute),
		FileName:  fmt.Sprintf("tool-%d.jpg", i),
		Material:  "HSS",
		Results:   results,
	}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 400, 200)), nil))
	return buf.Bytes()
}

func TestSaveAndGet(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	orig := 10.0
	r := report(1, types.AngleMeasurement{
		AngleName:     "Rake Angle",
		MeasuredValue: 13,
		OriginalValue: &orig,
		Standard:      "5° - 15°",
		IsCompliant:   true,
		Confidence:    types.ConfidenceHigh,
	})
	r.Image = jpegBytes(t)
	r.ImageMIME = "image/jpeg"
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Results, got.Results)
	assert.Equal(t, r.Image, got.Image)
	assert.Equal(t, "image/jpeg", got.ImageMIME)
	assert.True(t, r.Timestamp.Equal(got.Timestamp))

	thumb, err := s.Thumbnail(ctx, "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveErrorReport(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	r := report(1)
	r.Error = "Failed to analyze image. Please try again."
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.Results)
	assert.Equal(t, r.Error, got.Error)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Error", list[0].Summary)
}

func TestListNewestFirstAndCapped(t *testing.T) {
	s := openStore(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Save(ctx, report(i)))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "r5", list[0].ID)
	assert.Equal(t, "r3", list[2].ID)
	assert.Equal(t, "No Data", list[0].Summary)
}

func TestDeleteClearPrune(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Save(ctx, report(i)))
	}

	require.NoError(t, s.Delete(ctx, "r2"))
	assert.ErrorIs(t, s.Delete(ctx, "r2"), ErrNotFound)

	n, err := s.Prune(ctx, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), report(1)))
	require.NoError(t, s.Close())

	s, err = Open(path, 0)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStats(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	rake := func(v float64, ok bool) types.AngleMeasurement {
		return types.AngleMeasurement{AngleName: "Rake Angle", MeasuredValue: v, IsCompliant: ok}
	}
	require.NoError(t, s.Save(ctx, report(1, rake(10, true), types.AngleMeasurement{AngleName: "Relief Angle", MeasuredValue: 9, IsCompliant: true})))
	require.NoError(t, s.Save(ctx, report(2, rake(20, false))))
	failed := report(3)
	failed.Error = "boom"
	require.NoError(t, s.Save(ctx, failed))
	carbide := report(4, rake(0, true))
	carbide.Material = "Carbide"
	require.NoError(t, s.Save(ctx, carbide))

	st, err := s.Stats(ctx, "HSS")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Reports)
	assert.Equal(t, 1, st.Failed)
	require.Len(t, st.Angles, 2)

	r := st.Angles[0]
	assert.Equal(t, "Rake Angle", r.AngleName)
	assert.Equal(t, 2, r.Count)
	assert.InDelta(t, 15.0, r.Mean, 1e-9)
	assert.InDelta(t, 7.0710678, r.StdDev, 1e-6)
	assert.Equal(t, 10.0, r.Min)
	assert.Equal(t, 20.0, r.Max)
	assert.InDelta(t, 0.5, r.ComplianceRate, 1e-9)

	assert.Equal(t, 0.0, st.Angles[1].StdDev)

	all, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Reports)
	assert.Equal(t, 3, all.Angles[0].Count)
}
