package calibration

import (
	"time"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// Phase defines phases of a calibration session.
type Phase string

const (
	// PhaseIdle is reported when no session is open.
	PhaseIdle       Phase = "Idle"
	PhaseCollecting Phase = "Collecting"
	PhaseReady      Phase = "Ready"
	PhaseConfirmed  Phase = "Confirmed"
	PhaseCancelled  Phase = "Cancelled"
)

// Terminal reports whether no further action is accepted in p.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseCancelled
}

// Action defines user actions on a calibration session.
type Action string

const (
	ActionStart   Action = "Start"
	ActionPoint   Action = "Point"
	ActionReset   Action = "Reset"
	ActionConfirm Action = "Confirm"
	ActionCancel  Action = "Cancel"
)

const (
	// RequiredPoints is the number of clicks that define an angle.
	RequiredPoints = 3

	// DefaultKnownAngle is the pre-filled suggestion for the declared angle.
	DefaultKnownAngle = "90"
)

// Status is a view model of a session exposed via HTTP and printed by the
// CLI.
type Status struct {
	Phase     Phase         `json:"phase"`
	Points    []types.Point `json:"points"`
	StartedAt time.Time     `json:"startedAt,omitempty"`
	// ComputedAngle is rounded to one decimal place for display. It is only
	// set once all points are collected.
	ComputedAngle     *float64 `json:"computedAngle,omitempty"`
	Offset            *float64 `json:"offset,omitempty"`
	CanReset          bool     `json:"canReset"`
	CanConfirm        bool     `json:"canConfirm"`
	KnownAngleDefault string   `json:"knownAngleDefault"`
	ReportID          string   `json:"reportId,omitempty"`
}

// PointResult answers a click. Accepted is false for clicks beyond the
// required points.
type PointResult struct {
	Accepted bool   `json:"accepted"`
	Status   Status `json:"status"`
}

// ConfirmResult is the closed session together with the recalibrated result
// set.
type ConfirmResult struct {
	Status  Status          `json:"status"`
	Results types.ResultSet `json:"results"`
}
