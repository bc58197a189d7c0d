package calibration

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// Session is one calibration attempt on a displayed image. Points are
// collected in click order: point 1, vertex, point 2.
type Session struct {
	phase     Phase
	points    []types.Point
	reportID  string
	startedAt time.Time
	offset    *float64
}

// NewSession opens a session in the Collecting phase with no points.
// reportID identifies the image being calibrated on and may be empty.
func NewSession(reportID string) *Session {
	return &Session{
		phase:     PhaseCollecting,
		points:    make([]types.Point, 0, RequiredPoints),
		reportID:  reportID,
		startedAt: time.Now(),
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Points returns a copy of the collected points.
func (s *Session) Points() []types.Point {
	out := make([]types.Point, len(s.points))
	copy(out, s.points)
	return out
}

// AddPoint records a click. Clicks after the third are ignored and reported
// as not accepted.
func (s *Session) AddPoint(p types.Point) (bool, error) {
	if s.phase.Terminal() {
		return false, ErrSessionClosed
	}
	if len(s.points) >= RequiredPoints {
		return false, nil
	}

	s.points = append(s.points, p)
	if len(s.points) == RequiredPoints {
		s.phase = PhaseReady
	}
	return true, nil
}

// Reset discards all collected points and returns to Collecting.
func (s *Session) Reset() error {
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	if len(s.points) == 0 {
		return ErrNothingToReset
	}
	s.points = s.points[:0]
	s.phase = PhaseCollecting
	return nil
}

// ComputedAngle returns the full-precision angle described by the collected
// points. ok is false until all points are collected.
func (s *Session) ComputedAngle() (float64, bool) {
	if len(s.points) < RequiredPoints {
		return 0, false
	}
	return ComputeAngle(s.points[0], s.points[1], s.points[2]), true
}

// Confirm closes the session with the user's declared true angle and returns
// the additive offset (declared - computed). On a non-numeric declaration the
// session is left unchanged.
func (s *Session) Confirm(known string) (float64, error) {
	if s.phase.Terminal() {
		return 0, ErrSessionClosed
	}
	computed, ok := s.ComputedAngle()
	if !ok {
		return 0, ErrNotReady
	}

	declared, err := ParseKnownAngle(known)
	if err != nil {
		return 0, err
	}

	offset := declared - computed
	s.offset = &offset
	s.phase = PhaseConfirmed
	return offset, nil
}

// Cancel closes the session without producing an offset.
func (s *Session) Cancel() error {
	if s.phase.Terminal() {
		return ErrSessionClosed
	}
	s.phase = PhaseCancelled
	return nil
}

// Status builds the view model of s.
func (s *Session) Status() Status {
	st := Status{
		Phase:             s.phase,
		Points:            s.Points(),
		StartedAt:         s.startedAt,
		CanReset:          !s.phase.Terminal() && len(s.points) > 0,
		CanConfirm:        s.phase == PhaseReady,
		KnownAngleDefault: DefaultKnownAngle,
		ReportID:          s.reportID,
	}
	if deg, ok := s.ComputedAngle(); ok {
		rounded := RoundDisplay(deg)
		st.ComputedAngle = &rounded
	}
	if s.offset != nil {
		off := *s.offset
		st.Offset = &off
	}
	return st
}

// IdleStatus is reported when no session exists.
func IdleStatus() Status {
	return Status{
		Phase:             PhaseIdle,
		Points:            []types.Point{},
		KnownAngleDefault: DefaultKnownAngle,
	}
}

// ParseKnownAngle parses a user-entered angle in degrees. Surrounding space is
// ignored; anything else that is not a finite number is rejected. Trailing
// text is not stripped, so "93deg" or "93°" is an error rather than 93.
func ParseKnownAngle(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidKnownAngle
	}
	return v, nil
}
