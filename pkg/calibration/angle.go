package calibration

import (
	"math"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// ComputeAngle returns the angle at vertex between the arms towards p1 and
// p2, in degrees within [0, 180]. Coincident or collinear points yield 0.
func ComputeAngle(p1, vertex, p2 types.Point) float64 {
	a1 := math.Atan2(p1.Y-vertex.Y, p1.X-vertex.X)
	a2 := math.Atan2(p2.Y-vertex.Y, p2.X-vertex.X)

	deg := math.Abs(a1-a2) * 180 / math.Pi
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// RoundDisplay rounds an angle to one decimal place.
func RoundDisplay(deg float64) float64 {
	return math.Round(deg*10) / 10
}
