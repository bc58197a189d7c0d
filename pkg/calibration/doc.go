// Package calibration implements manual angle calibration of an inspection
// result set. It contains:
//
//   - Session: the three-click state machine (point 1, vertex, point 2) that
//     measures an angle on the displayed image and turns a declared true
//     angle into an additive offset
//   - ComputeAngle: the non-reflex angle between the two arms at the vertex
//   - Apply / ApplyReports: the pure transform that offsets every measurement
//     from its original value and re-evaluates it against the standards
//     catalog
//
// Sessions are not safe for concurrent use; the owner serializes access.
package calibration
