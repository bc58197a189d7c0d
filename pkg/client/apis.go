package client

import (
	"encoding/json"
	"net/url"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/history"
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func sendJSON[T any](c *Client, method, path string, payload any, what string) (*T, error) {
	data := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = string(b)
	}
	ret, err := c.Send(method, path, data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to %s", what)
	}
	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal response to %s", what)
	}
	return &v, nil
}

// message decodes the JSON string most mutating endpoints answer with.
func message(ret string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	var msg string
	if err := json.Unmarshal([]byte(ret), &msg); err != nil {
		return ret, nil
	}
	return msg, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return message(ret, nil)
}

func (c *Client) GetConfig() (*config.Effective, error) {
	return getJSON[config.Effective](c, "/config", "config")
}

func (c *Client) SetMaterial(material string) (string, error) {
	b, err := json.Marshal(material)
	if err != nil {
		return "", err
	}
	return message(c.Put("/material", string(b)))
}

// ===== Standards APIs =====

func (c *Client) GetStandards() (standards.Table, error) {
	t, err := getJSON[standards.Table](c, "/standards", "standards")
	if err != nil {
		return nil, err
	}
	return *t, nil
}

func (c *Client) GetMaterialStandards(material string) (map[string]standards.AngleRange, error) {
	m, err := getJSON[map[string]standards.AngleRange](c, "/standards/"+url.PathEscape(material), "standards of "+material)
	if err != nil {
		return nil, err
	}
	return *m, nil
}

func (c *Client) Evaluate(angleName string, value float64, material string) (*standards.Evaluation, error) {
	return sendJSON[standards.Evaluation](c, "POST", "/standards/evaluate", map[string]any{
		"angleName": angleName,
		"value":     value,
		"material":  material,
	}, "evaluate "+angleName)
}

// ===== Analysis APIs =====

// Analyze uploads image files for analysis. An empty material selects the
// daemon's default.
func (c *Client) Analyze(files []string, material string) (*types.ResultSet, error) {
	values := map[string]string{}
	if material != "" {
		values["material"] = material
	}
	ret, err := c.Upload("/analyze", "images", files, values)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to analyze images")
	}
	var rs types.ResultSet
	if err := json.Unmarshal([]byte(ret), &rs); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal analysis results")
	}
	return &rs, nil
}

func (c *Client) GetResults() (*types.ResultSet, error) {
	return getJSON[types.ResultSet](c, "/reports", "results")
}

func (c *Client) ClearResults() (string, error) {
	return message(c.Delete("/reports"))
}

func (c *Client) GetReportImage(index int) ([]byte, error) {
	b, err := c.GetBytes("/reports/" + strconv.Itoa(index) + "/image")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get image of report %d", index)
	}
	return b, nil
}

func (c *Client) Recommend(p analyzer.WorkpieceProfile) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	ret, err := c.Post("/recommendations", string(b))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get recommendations")
	}
	return message(ret, nil)
}

// Export downloads the active result set as format, one of pdf, xlsx, csv,
// chart.png or chart.html.
func (c *Client) Export(format string) ([]byte, error) {
	b, err := c.GetBytes("/export/" + url.PathEscape(format))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to export %s", format)
	}
	return b, nil
}

// ===== Calibration APIs =====

func (c *Client) GetCalibration() (*calibration.Status, error) {
	return getJSON[calibration.Status](c, "/calibration", "calibration status")
}

func (c *Client) StartCalibration(reportIndex int) (*calibration.Status, error) {
	return sendJSON[calibration.Status](c, "POST", "/calibration/start", map[string]int{"reportIndex": reportIndex}, "start calibration")
}

func (c *Client) AddCalibrationPoint(x, y float64) (*calibration.PointResult, error) {
	return sendJSON[calibration.PointResult](c, "POST", "/calibration/point", types.Point{X: x, Y: y}, "add calibration point")
}

func (c *Client) ResetCalibration() (*calibration.Status, error) {
	return sendJSON[calibration.Status](c, "POST", "/calibration/reset", nil, "reset calibration")
}

// ConfirmCalibration declares the true angle. A nil knownAngle accepts the
// suggested default.
func (c *Client) ConfirmCalibration(knownAngle *string) (*calibration.ConfirmResult, error) {
	payload := map[string]string{}
	if knownAngle != nil {
		payload["knownAngle"] = *knownAngle
	}
	return sendJSON[calibration.ConfirmResult](c, "POST", "/calibration/confirm", payload, "confirm calibration")
}

func (c *Client) CancelCalibration() (*calibration.Status, error) {
	return sendJSON[calibration.Status](c, "POST", "/calibration/cancel", nil, "cancel calibration")
}

// ===== History APIs =====

func (c *Client) ListHistory() ([]types.ReportSummary, error) {
	l, err := getJSON[[]types.ReportSummary](c, "/history", "history")
	if err != nil {
		return nil, err
	}
	return *l, nil
}

func (c *Client) GetHistoryReport(id string) (*types.Report, error) {
	return getJSON[types.Report](c, "/history/"+url.PathEscape(id), "report "+id)
}

func (c *Client) GetHistoryImage(id string) ([]byte, error) {
	b, err := c.GetBytes("/history/" + url.PathEscape(id) + "/image")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get image of report %s", id)
	}
	return b, nil
}

func (c *Client) GetHistoryThumbnail(id string) ([]byte, error) {
	b, err := c.GetBytes("/history/" + url.PathEscape(id) + "/thumbnail")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get thumbnail of report %s", id)
	}
	return b, nil
}

func (c *Client) LoadHistoryReport(id string) (*types.ResultSet, error) {
	return sendJSON[types.ResultSet](c, "POST", "/history/"+url.PathEscape(id)+"/load", nil, "load report "+id)
}

func (c *Client) DeleteHistoryReport(id string) (string, error) {
	return message(c.Delete("/history/" + url.PathEscape(id)))
}

func (c *Client) ClearHistory() (string, error) {
	return message(c.Delete("/history"))
}

func (c *Client) GetHistoryStats(material string) (*history.Stats, error) {
	path := "/history/stats"
	if material != "" {
		path += "?material=" + url.QueryEscape(material)
	}
	return getJSON[history.Stats](c, path, "history statistics")
}

func (c *Client) GetRetention() (*history.RetentionStatus, error) {
	return getJSON[history.RetentionStatus](c, "/history/retention", "history retention")
}

// SetRetention changes the prune schedule and the maximum report age. Nil
// fields are left unchanged.
func (c *Client) SetRetention(cron *string, days *int) (*history.RetentionStatus, error) {
	payload := map[string]any{}
	if cron != nil {
		payload["cron"] = *cron
	}
	if days != nil {
		payload["days"] = *days
	}
	return sendJSON[history.RetentionStatus](c, "PUT", "/history/retention", payload, "set history retention")
}

// SkipPrune postpones the next scheduled cleanup by one occurrence.
func (c *Client) SkipPrune() (*history.RetentionStatus, error) {
	return sendJSON[history.RetentionStatus](c, "POST", "/history/retention/skip", nil, "skip history cleanup")
}

func (c *Client) PruneHistory() (string, error) {
	return message(c.Post("/history/prune", ""))
}

// IsNotFound reports whether err came from a 404 answer.
func IsNotFound(err error) bool {
	return pkgerrors.Is(err, ErrNotFound)
}
