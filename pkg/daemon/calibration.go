package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

type startCalibrationRequest struct {
	ReportIndex int `json:"reportIndex"`
}

type pointRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

type confirmRequest struct {
	// KnownAngle is free text; a missing field means the suggested default.
	KnownAngle *string `json:"knownAngle"`
}

// calibrationStatusCode maps session errors to HTTP status codes. Invalid
// user input is a bad request; everything else is a state conflict.
func calibrationStatusCode(err error) int {
	switch {
	case errors.Is(err, calibration.ErrInvalidKnownAngle):
		return http.StatusBadRequest
	case errors.Is(err, calibration.ErrNoSession),
		errors.Is(err, calibration.ErrSessionClosed),
		errors.Is(err, calibration.ErrNothingToReset),
		errors.Is(err, calibration.ErrNotReady),
		errors.Is(err, ErrNoResults),
		errors.Is(err, ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, ErrReportOutOfRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) statusLocked() calibration.Status {
	if s.ws.session == nil {
		return calibration.IdleStatus()
	}
	return s.ws.session.Status()
}

func (s *Server) getCalibration(c *gin.Context) {
	s.mu.Lock()
	st := s.statusLocked()
	s.mu.Unlock()
	c.IndentedJSON(http.StatusOK, st)
}

// startCalibration opens a session on the image of an active report. An open
// session is replaced.
func (s *Server) startCalibration(c *gin.Context) {
	var req startCalibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.reportLocked(req.ReportIndex)
	if err == nil && !r.HasImage() {
		err = ErrNoImage
	}
	if err != nil {
		abortWithError(c, calibrationStatusCode(err), err)
		return
	}

	from := calibration.PhaseIdle
	if s.ws.session != nil {
		from = s.ws.session.Phase()
	}
	s.ws.session = calibration.NewSession(r.ID)

	msg := fmt.Sprintf("Click %d points on %s: first arm, vertex, second arm", calibration.RequiredPoints, r.FileName)
	s.publishAction(calibration.ActionStart, msg)
	s.publishPhase(from, calibration.PhaseCollecting, msg)
	logrus.WithField("report", r.ID).Info("calibration started")

	c.IndentedJSON(http.StatusCreated, s.ws.session.Status())
}

func (s *Server) addCalibrationPoint(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ws.session
	if sess == nil {
		abortWithError(c, http.StatusConflict, calibration.ErrNoSession)
		return
	}

	from := sess.Phase()
	accepted, err := sess.AddPoint(types.Point{X: *req.X, Y: *req.Y})
	if err != nil {
		abortWithError(c, calibrationStatusCode(err), err)
		return
	}

	st := sess.Status()
	if accepted {
		s.publishAction(calibration.ActionPoint, fmt.Sprintf("Point %d at (%.0f, %.0f)", len(st.Points), *req.X, *req.Y))
	}
	if to := sess.Phase(); to != from {
		msg := ""
		if st.ComputedAngle != nil {
			msg = fmt.Sprintf("Measured %.1f°", *st.ComputedAngle)
		}
		s.publishPhase(from, to, msg)
	}

	c.IndentedJSON(http.StatusOK, calibration.PointResult{Accepted: accepted, Status: st})
}

func (s *Server) resetCalibration(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ws.session
	if sess == nil {
		abortWithError(c, http.StatusConflict, calibration.ErrNoSession)
		return
	}

	from := sess.Phase()
	if err := sess.Reset(); err != nil {
		abortWithError(c, calibrationStatusCode(err), err)
		return
	}

	s.publishAction(calibration.ActionReset, "Points cleared")
	if to := sess.Phase(); to != from {
		s.publishPhase(from, to, "")
	}

	c.IndentedJSON(http.StatusOK, sess.Status())
}

// confirmCalibration closes the session with the declared angle and applies
// the resulting offset to every active report. On invalid input nothing
// changes.
func (s *Server) confirmCalibration(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	known := calibration.DefaultKnownAngle
	if req.KnownAngle != nil {
		known = *req.KnownAngle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ws.session
	if sess == nil {
		abortWithError(c, http.StatusConflict, calibration.ErrNoSession)
		return
	}

	from := sess.Phase()
	offset, err := sess.Confirm(known)
	if err != nil {
		if errors.Is(err, calibration.ErrInvalidKnownAngle) {
			err = fmt.Errorf("%w, got %q", err, known)
		}
		abortWithError(c, calibrationStatusCode(err), err)
		return
	}

	s.ws.offset = offset
	s.ws.reports = calibration.ApplyReports(s.ws.reports, offset, s.ws.material, s.catalog())

	msg := fmt.Sprintf("Calibrated: %+.1f°", offset)
	s.publishAction(calibration.ActionConfirm, msg)
	s.publishPhase(from, calibration.PhaseConfirmed, msg)
	s.publishResultsLocked("calibration")
	logrus.WithFields(logrus.Fields{
		"offset":  offset,
		"reports": len(s.ws.reports),
	}).Info("calibration applied")

	c.IndentedJSON(http.StatusOK, calibration.ConfirmResult{
		Status:  sess.Status(),
		Results: s.resultSetLocked(),
	})
}

func (s *Server) cancelCalibration(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ws.session
	if sess == nil {
		abortWithError(c, http.StatusConflict, calibration.ErrNoSession)
		return
	}

	from := sess.Phase()
	if err := sess.Cancel(); err != nil {
		abortWithError(c, calibrationStatusCode(err), err)
		return
	}

	s.publishAction(calibration.ActionCancel, "Calibration cancelled")
	s.publishPhase(from, calibration.PhaseCancelled, "")

	c.IndentedJSON(http.StatusOK, sess.Status())
}
