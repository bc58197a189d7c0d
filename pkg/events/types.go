package events

import "encoding/json"

// Event name constants
const (
	CalibrationPhase  = "calibration.phase"
	CalibrationAction = "calibration.action"
	AnalysisProgress  = "analysis.progress"
	AnalysisCompleted = "analysis.completed"
	ResultsUpdated    = "results.updated"
	HistoryPruned     = "history.pruned"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// CalibrationPhaseEvent is the typed payload for calibration.phase.
type CalibrationPhaseEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// CalibrationActionEvent is the typed payload for calibration.action.
type CalibrationActionEvent struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// AnalysisProgressEvent is sent after each image of a run.
type AnalysisProgressEvent struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	FileName string `json:"fileName,omitempty"`
	ReportID string `json:"reportId"`
	Summary  string `json:"summary"`
	Ts       int64  `json:"ts"`
}

// AnalysisCompletedEvent is sent once a run has finished.
type AnalysisCompletedEvent struct {
	Reports    int   `json:"reports"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
	Ts         int64 `json:"ts"`
}

// ResultsUpdatedEvent is sent whenever the active result set changes.
type ResultsUpdatedEvent struct {
	Reason   string  `json:"reason"`
	Material string  `json:"material"`
	Offset   float64 `json:"offset"`
	Ts       int64   `json:"ts"`
}

// HistoryPrunedEvent is sent by the retention job.
type HistoryPrunedEvent struct {
	Removed int64 `json:"removed"`
	Ts      int64 `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.CalibrationPhaseEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.From, payload.To)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
