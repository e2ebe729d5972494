// Package geometry provides the small amount of vector math the movement
// rules need: joint angles and Euclidean distances over pose landmarks.
// All functions are pure and never return an error; degenerate input
// (zero-length rays) yields 0 rather than NaN so downstream threshold
// checks stay well-defined.
package geometry

import (
	"math"

	"github.com/claude/motionscore/internal/pose"
)

// Angle returns the angle in degrees at vertex b between the rays b→a and
// b→c. Returns 0 when either ray has zero length.
func Angle(a, b, c pose.Joint) float64 {
	bax, bay, baz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	bcx, bcy, bcz := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	na := math.Sqrt(bax*bax + bay*bay + baz*baz)
	nc := math.Sqrt(bcx*bcx + bcy*bcy + bcz*bcz)
	if na == 0 || nc == 0 {
		return 0
	}

	cos := (bax*bcx + bay*bcy + baz*bcz) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Distance returns the Euclidean distance between two joints.
func Distance(a, b pose.Joint) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Midpoint returns the point halfway between a and b, with averaged
// visibility.
func Midpoint(a, b pose.Joint) pose.Joint {
	return pose.Joint{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: (a.Visibility + b.Visibility) / 2,
	}
}
