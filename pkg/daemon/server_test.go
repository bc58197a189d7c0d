package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/events"
	"github.com/cuttingtool/toolinspect/pkg/history"
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

type fakeModel struct {
	measurements []analyzer.RawMeasurement
	measureErr   error
	advice       string
	onMeasure    func()
}

func (f *fakeModel) Measure(context.Context, []byte, string) ([]analyzer.RawMeasurement, error) {
	if f.onMeasure != nil {
		f.onMeasure()
	}
	return f.measurements, f.measureErr
}

func (f *fakeModel) Advise(context.Context, string) (string, error) {
	return f.advice, nil
}

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T, model analyzer.Model) *testServer {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	dir := t.TempDir()
	conf, err := config.NewFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	store, err := history.Open(filepath.Join(dir, "history.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := NewServer(Options{
		Config:  conf,
		Catalog: standards.Default(),
		Model:   model,
		Store:   store,
		Hub:     events.NewEventHub(),
	})
	return &testServer{Server: s, handler: s.Router()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

type upload struct {
	name string
	data []byte
}

func (ts *testServer) analyze(t *testing.T, material string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	if material != "" {
		require.NoError(t, mw.WriteField("material", material))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30))))
	return buf.Bytes()
}

func rakeModel(value float64) *fakeModel {
	return &fakeModel{
		measurements: []analyzer.RawMeasurement{
			{AngleName: "Rake Angle", MeasuredValue: value, Confidence: types.ConfidenceHigh},
		},
		advice: "## Advice\n\nIncrease the relief angle.",
	}
}

// analyzeOne runs an analysis of a single image and returns the result set.
func analyzeOne(t *testing.T, ts *testServer) types.ResultSet {
	t.Helper()
	w := ts.analyze(t, "", upload{"insert.png", pngBytes(t)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[types.ResultSet](t, w)
}

func clickRightAngle(t *testing.T, ts *testServer) {
	t.Helper()
	for _, p := range []types.Point{{X: 100, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 100}} {
		w := ts.do(t, http.MethodPost, "/calibration/point", p)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestVersionAndConfig(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	eff := decode[config.Effective](t, w)
	assert.Equal(t, "HSS", eff.DefaultMaterial)
	assert.Equal(t, 3, eff.MaxImages)
	assert.False(t, eff.APIKeySet)
}

func TestStandardsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/standards/Carbide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	angles := decode[map[string]standards.AngleRange](t, w)
	assert.Equal(t, standards.AngleRange{Min: -5, Max: 10}, angles["Rake Angle"])

	w = ts.do(t, http.MethodGet, "/standards/Brass", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/standards/evaluate", map[string]any{"angleName": "Rake Angle", "value": 20})
	require.Equal(t, http.StatusOK, w.Code)
	ev := decode[standards.Evaluation](t, w)
	assert.Equal(t, "5° - 15°", ev.Standard)
	assert.False(t, ev.Compliant)
	assert.Contains(t, ev.Recommendation, "decreasing")

	w = ts.do(t, http.MethodPost, "/standards/evaluate", map[string]any{"angleName": "Nose Radius", "value": 1, "material": "Brass"})
	require.Equal(t, http.StatusOK, w.Code)
	ev = decode[standards.Evaluation](t, w)
	assert.Equal(t, standards.NotSpecified, ev.Standard)
	assert.True(t, ev.Compliant)

	w = ts.do(t, http.MethodPost, "/standards/evaluate", map[string]any{"angleName": "Rake Angle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeWithoutModel(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.analyze(t, "", upload{"insert.png", pngBytes(t)})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodPost, "/recommendations", analyzer.WorkpieceProfile{Material: "Steel", Outcome: "Finish"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, rakeModel(10))

	w := ts.analyze(t, "", upload{"insert.png", pngBytes(t)}, upload{"notes.txt", []byte("not an image")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rs := decode[types.ResultSet](t, w)
	require.Len(t, rs.Reports, 1)
	assert.Equal(t, "insert.png", rs.Reports[0].FileName)
	assert.Equal(t, "HSS", rs.Material)
	require.Len(t, rs.Reports[0].Results, 1)
	assert.True(t, rs.Reports[0].Results[0].IsCompliant)

	w = ts.do(t, http.MethodGet, "/reports/0/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	w = ts.do(t, http.MethodGet, "/reports/3/image", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]types.ReportSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Passed", list[0].Summary)

	w = ts.analyze(t, "", upload{"notes.txt", []byte("not an image")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.analyze(t, "Brass", upload{"insert.png", pngBytes(t)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	img := pngBytes(t)
	w = ts.analyze(t, "", upload{"1.png", img}, upload{"2.png", img}, upload{"3.png", img}, upload{"4.png", img})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rs = decode[types.ResultSet](t, ts.do(t, http.MethodGet, "/reports", nil))
	assert.Empty(t, rs.Reports)
}

func TestAnalyzeModelFailure(t *testing.T) {
	ts := newTestServer(t, &fakeModel{measureErr: errors.New("quota exceeded")})

	rs := analyzeOne(t, ts)
	require.Len(t, rs.Reports, 1)
	assert.Equal(t, analyzer.FailedAnalysisMessage, rs.Reports[0].Error)

	list := decode[[]types.ReportSummary](t, ts.do(t, http.MethodGet, "/history", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Error", list[0].Summary)
}

func TestAnalyzeCancelledKeepsFinishedReports(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := rakeModel(10)
	model.onMeasure = cancel
	ts := newTestServer(t, model)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	img := pngBytes(t)
	for _, name := range []string{"1.png", "2.png"} {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body).WithContext(ctx)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	rs := decode[types.ResultSet](t, ts.do(t, http.MethodGet, "/reports", nil))
	require.Len(t, rs.Reports, 1)
	assert.Equal(t, "1.png", rs.Reports[0].FileName)

	list := decode[[]types.ReportSummary](t, ts.do(t, http.MethodGet, "/history", nil))
	require.Len(t, list, 1)
	assert.Equal(t, rs.Reports[0].ID, list[0].ID)
}

func TestCalibrationFlow(t *testing.T) {
	ts := newTestServer(t, rakeModel(10))

	w := ts.do(t, http.MethodPost, "/calibration/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "no results yet")
	w = ts.do(t, http.MethodPost, "/calibration/point", types.Point{X: 1, Y: 1})
	assert.Equal(t, http.StatusConflict, w.Code, "no session yet")

	analyzeOne(t, ts)

	w = ts.do(t, http.MethodPost, "/calibration/start", map[string]int{"reportIndex": 0})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	st := decode[calibration.Status](t, w)
	assert.Equal(t, calibration.PhaseCollecting, st.Phase)
	assert.Equal(t, calibration.DefaultKnownAngle, st.KnownAngleDefault)

	w = ts.do(t, http.MethodPost, "/calibration/reset", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	clickRightAngle(t, ts)

	w = ts.do(t, http.MethodPost, "/calibration/point", types.Point{X: 5, Y: 5})
	require.Equal(t, http.StatusOK, w.Code)
	pr := decode[calibration.PointResult](t, w)
	assert.False(t, pr.Accepted)
	assert.Equal(t, calibration.PhaseReady, pr.Status.Phase)
	require.NotNil(t, pr.Status.ComputedAngle)
	assert.InDelta(t, 90.0, *pr.Status.ComputedAngle, 1e-9)
	assert.True(t, pr.Status.CanConfirm)

	// invalid input leaves everything as it was
	w = ts.do(t, http.MethodPost, "/calibration/confirm", map[string]string{"knownAngle": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	st = decode[calibration.Status](t, ts.do(t, http.MethodGet, "/calibration", nil))
	assert.Equal(t, calibration.PhaseReady, st.Phase)
	rs := decode[types.ResultSet](t, ts.do(t, http.MethodGet, "/reports", nil))
	assert.Equal(t, 10.0, rs.Reports[0].Results[0].MeasuredValue)
	assert.Zero(t, rs.Offset)

	w = ts.do(t, http.MethodPost, "/calibration/confirm", map[string]string{"knownAngle": " 93 "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cr := decode[calibration.ConfirmResult](t, w)
	assert.Equal(t, calibration.PhaseConfirmed, cr.Status.Phase)
	assert.InDelta(t, 3.0, cr.Results.Offset, 1e-9)
	m := cr.Results.Reports[0].Results[0]
	assert.InDelta(t, 13.0, m.MeasuredValue, 1e-9)
	assert.True(t, m.IsCompliant)
	assert.Empty(t, m.Recommendation)

	w = ts.do(t, http.MethodPost, "/calibration/point", types.Point{X: 1, Y: 1})
	assert.Equal(t, http.StatusConflict, w.Code, "session is closed")

	// a second calibration offsets from the original value
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/calibration/start", nil).Code)
	clickRightAngle(t, ts)
	w = ts.do(t, http.MethodPost, "/calibration/confirm", map[string]string{"knownAngle": "89"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cr = decode[calibration.ConfirmResult](t, w)
	assert.InDelta(t, 9.0, cr.Results.Reports[0].Results[0].MeasuredValue, 1e-9)
	require.NotNil(t, cr.Results.Reports[0].Results[0].OriginalValue)
	assert.Equal(t, 10.0, *cr.Results.Reports[0].Results[0].OriginalValue)
}

func TestCalibrationDefaultAngleAndCancel(t *testing.T) {
	ts := newTestServer(t, rakeModel(10))
	analyzeOne(t, ts)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/calibration/start", nil).Code)
	w := ts.do(t, http.MethodPost, "/calibration/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "not ready")

	w = ts.do(t, http.MethodPost, "/calibration/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, calibration.PhaseCancelled, decode[calibration.Status](t, w).Phase)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/calibration/start", nil).Code)
	clickRightAngle(t, ts)
	w = ts.do(t, http.MethodPost, "/calibration/confirm", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 0.0, decode[calibration.ConfirmResult](t, w).Results.Offset, 1e-9)

	w = ts.do(t, http.MethodPost, "/calibration/confirm", map[string]string{"knownAngle": ""})
	assert.Equal(t, http.StatusConflict, w.Code, "session already confirmed")
}

func TestSetMaterialReevaluates(t *testing.T) {
	ts := newTestServer(t, &fakeModel{measurements: []analyzer.RawMeasurement{
		{AngleName: "Relief Angle", MeasuredValue: 11, Confidence: types.ConfidenceMedium},
	}})
	rs := analyzeOne(t, ts)
	require.True(t, rs.Reports[0].Results[0].IsCompliant)

	w := ts.do(t, http.MethodPut, "/material", "Carbide")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rs = decode[types.ResultSet](t, ts.do(t, http.MethodGet, "/reports", nil))
	assert.Equal(t, "Carbide", rs.Material)
	m := rs.Reports[0].Results[0]
	assert.Equal(t, "5° - 10°", m.Standard)
	assert.False(t, m.IsCompliant)
	assert.Contains(t, m.Recommendation, "decreasing")

	assert.Equal(t, "Carbide", ts.conf.DefaultMaterial())

	w = ts.do(t, http.MethodPut, "/material", "Brass")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t, rakeModel(20))
	first := analyzeOne(t, ts).Reports[0]
	analyzeOne(t, ts)

	list := decode[[]types.ReportSummary](t, ts.do(t, http.MethodGet, "/history", nil))
	require.Len(t, list, 2)

	w := ts.do(t, http.MethodGet, "/history/"+first.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 Issues", decode[types.Report](t, w).Summary())

	w = ts.do(t, http.MethodGet, "/history/"+first.ID+"/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = ts.do(t, http.MethodGet, "/history/"+first.ID+"/thumbnail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/webp", w.Header().Get("Content-Type"))

	w = ts.do(t, http.MethodGet, "/history/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[history.Stats](t, w)
	assert.Equal(t, 2, stats.Reports)
	require.Len(t, stats.Angles, 1)
	assert.Equal(t, 2, stats.Angles[0].Count)
	assert.Zero(t, stats.Angles[0].ComplianceRate)

	w = ts.do(t, http.MethodPost, "/history/"+first.ID+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rs := decode[types.ResultSet](t, w)
	require.Len(t, rs.Reports, 1)
	assert.Equal(t, first.ID, rs.Reports[0].ID)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/history/"+first.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/history/"+first.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/history/"+first.ID, nil).Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/history", nil).Code)
	list = decode[[]types.ReportSummary](t, ts.do(t, http.MethodGet, "/history", nil))
	assert.Empty(t, list)
}

func TestRetention(t *testing.T) {
	ts := newTestServer(t, rakeModel(10))

	w := ts.do(t, http.MethodPut, "/history/retention", map[string]any{"cron": "@hourly", "days": 7})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	st := decode[history.RetentionStatus](t, w)
	assert.Equal(t, "@hourly", st.Cron)
	assert.Equal(t, 7, st.Days)
	assert.False(t, st.NextRun.IsZero())
	assert.Equal(t, history.DefaultLimit, st.Limit)

	w = ts.do(t, http.MethodPut, "/history/retention", map[string]any{"cron": "every tuesday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPut, "/history/retention", map[string]any{"days": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/history/retention/skip", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	skipped := decode[history.RetentionStatus](t, w)
	assert.True(t, skipped.NextRun.After(st.NextRun))

	w = ts.do(t, http.MethodPut, "/history/retention", map[string]any{"cron": ""})
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/history/retention/skip", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	analyzeOne(t, ts)
	w = ts.do(t, http.MethodPost, "/history/prune", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "removed 0 reports", decode[string](t, w))
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, rakeModel(20))

	w := ts.do(t, http.MethodGet, "/export/csv", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	analyzeOne(t, ts)

	for path, contentType := range map[string]string{
		"/export/csv":        "text/csv; charset=utf-8",
		"/export/pdf":        "application/pdf",
		"/export/xlsx":       "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"/export/chart.png":  "image/png",
		"/export/chart.html": "text/html; charset=utf-8",
	} {
		w := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, contentType, w.Header().Get("Content-Type"), path)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment", path)
		assert.NotZero(t, w.Body.Len(), path)
	}

	w = ts.do(t, http.MethodGet, "/export/docx", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecommend(t *testing.T) {
	ts := newTestServer(t, rakeModel(20))

	w := ts.do(t, http.MethodPost, "/recommendations", analyzer.WorkpieceProfile{Material: "Steel", Outcome: "Finish"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no measurements")

	analyzeOne(t, ts)

	w = ts.do(t, http.MethodPost, "/recommendations", analyzer.WorkpieceProfile{Material: "Steel"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing outcome")

	w = ts.do(t, http.MethodPost, "/recommendations", analyzer.WorkpieceProfile{Material: "Steel", Outcome: "Finish"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[string](t, w), "relief angle")
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return ts.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	ts.hub.Publish(events.HistoryPruned, events.HistoryPrunedEvent{Removed: 2})

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if strings.TrimSpace(l) != "" {
				got = append(got, l)
			}
		case <-timeout:
			t.Fatalf("no event received, got %v", got)
		}
	}
	assert.Equal(t, "event:"+events.HistoryPruned, got[0])
	assert.Contains(t, got[1], `"removed":2`)
	cancel()
}
