package daemon

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/events"
	"github.com/cuttingtool/toolinspect/pkg/history"
	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

var (
	ErrNoModel           = errors.New("no analysis model configured, set GEMINI_API_KEY or apiKey in the config")
	ErrAnalysisRunning   = errors.New("an analysis is already running")
	ErrNoResults         = errors.New("no analysis results, run an analysis or load a report from history first")
	ErrNoImage           = errors.New("report has no image")
	ErrUnknownMaterial   = errors.New("unknown tool material")
	ErrReportOutOfRange  = errors.New("report index out of range")
	ErrInvalidRetention  = errors.New("retention days must not be negative")
	ErrUnsupportedUpload = errors.New("only image files can be analyzed")
)

// Options are the dependencies of a Server.
type Options struct {
	Config  config.Config
	Catalog *standards.Catalog
	// Model may be nil, in which case analysis and recommendations answer
	// ErrNoModel.
	Model analyzer.Model
	Store *history.Store
	Hub   *events.EventHub
}

// Server holds the daemon state: the active result set shown to the user and
// the calibration session running on it.
type Server struct {
	conf     config.Config
	model    analyzer.Model
	analyzer *analyzer.Analyzer
	store    *history.Store
	hub      *events.EventHub
	pruner   *Scheduler

	mu sync.Mutex
	ws workspace

	analyzing atomic.Bool
}

// workspace is guarded by Server.mu.
type workspace struct {
	reports  []types.Report
	material string
	offset   float64
	session  *calibration.Session
}

func NewServer(o Options) *Server {
	if o.Catalog == nil {
		o.Catalog = standards.Default()
	}
	if o.Hub == nil {
		o.Hub = events.NewEventHub()
	}

	s := &Server{
		conf:     o.Config,
		model:    o.Model,
		analyzer: analyzer.New(o.Model, o.Catalog, o.Config.MaxImages()),
		store:    o.Store,
		hub:      o.Hub,
		ws:       workspace{material: o.Config.DefaultMaterial()},
	}
	s.pruner = NewScheduler(s.pruneHistory, func(data any) {
		logrus.WithField("took", data).Debug("history retention finished")
	}, nil)
	return s
}

func (s *Server) catalog() *standards.Catalog {
	return s.analyzer.Catalog()
}

// SetCatalog replaces the standards catalog. The active result set is not
// re-evaluated until the material changes or a calibration is applied.
func (s *Server) SetCatalog(c *standards.Catalog) {
	s.analyzer.SetCatalog(c)
}

// Router builds the HTTP API.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.MaxMultipartMemory = 32 << 20

	router.GET("/version", getVersion)
	router.GET("/config", s.getConfig)
	router.PUT("/material", s.setMaterial)

	router.GET("/standards", s.getStandards)
	router.GET("/standards/:material", s.getMaterialStandards)
	router.POST("/standards/evaluate", s.evaluate)

	router.POST("/analyze", s.analyze)
	router.GET("/reports", s.getReports)
	router.DELETE("/reports", s.clearReports)
	router.GET("/reports/:index/image", s.getReportImage)

	router.GET("/calibration", s.getCalibration)
	router.POST("/calibration/start", s.startCalibration)
	router.POST("/calibration/point", s.addCalibrationPoint)
	router.POST("/calibration/reset", s.resetCalibration)
	router.POST("/calibration/confirm", s.confirmCalibration)
	router.POST("/calibration/cancel", s.cancelCalibration)

	router.GET("/history", s.listHistory)
	router.DELETE("/history", s.clearHistory)
	router.GET("/history/stats", s.getHistoryStats)
	router.GET("/history/retention", s.getRetention)
	router.PUT("/history/retention", s.setRetention)
	router.POST("/history/retention/skip", s.skipRetention)
	router.POST("/history/prune", s.pruneHistoryNow)
	router.GET("/history/:id", s.getHistoryReport)
	router.DELETE("/history/:id", s.deleteHistoryReport)
	router.GET("/history/:id/image", s.getHistoryImage)
	router.GET("/history/:id/thumbnail", s.getHistoryThumbnail)
	router.POST("/history/:id/load", s.loadHistoryReport)

	router.POST("/recommendations", s.recommend)
	router.GET("/export/:format", s.export)

	router.GET("/events", s.streamEvents)

	return router
}

// resultSetLocked snapshots the workspace. s.mu must be held.
func (s *Server) resultSetLocked() types.ResultSet {
	reports := s.ws.reports
	if reports == nil {
		reports = []types.Report{}
	}
	return types.ResultSet{
		Reports:  reports,
		Material: s.ws.material,
		Offset:   s.ws.offset,
	}
}

// replaceResultsLocked installs a new active result set and drops any
// calibration session that was running on the previous one. s.mu must be
// held.
func (s *Server) replaceResultsLocked(reports []types.Report, material, reason string) {
	s.closeSessionLocked("results replaced")
	s.ws.reports = reports
	s.ws.material = material
	s.ws.offset = 0
	s.publishResultsLocked(reason)
}

func (s *Server) closeSessionLocked(msg string) {
	if s.ws.session == nil {
		return
	}
	from := s.ws.session.Phase()
	s.ws.session = nil
	if from != calibration.PhaseIdle {
		s.publishPhase(from, calibration.PhaseIdle, msg)
	}
}

func (s *Server) publishResultsLocked(reason string) {
	s.hub.Publish(events.ResultsUpdated, events.ResultsUpdatedEvent{
		Reason:   reason,
		Material: s.ws.material,
		Offset:   s.ws.offset,
		Ts:       time.Now().Unix(),
	})
}

func (s *Server) publishPhase(from, to calibration.Phase, msg string) {
	s.hub.Publish(events.CalibrationPhase, events.CalibrationPhaseEvent{
		From:    string(from),
		To:      string(to),
		Message: msg,
		Ts:      time.Now().Unix(),
	})
	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Debug("calibration phase changed")
}

func (s *Server) publishAction(a calibration.Action, msg string) {
	s.hub.Publish(events.CalibrationAction, events.CalibrationActionEvent{
		Action:  string(a),
		Message: msg,
		Ts:      time.Now().Unix(),
	})
}
