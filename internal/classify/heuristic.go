package classify

import (
	"math"

	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/geometry"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/window"
)

// Unavailable is a Model placeholder for a classifier that is not loaded.
// Every Predict reports ErrUnavailable, which the ensemble degrades to
// "no candidate" rather than an error.
type Unavailable struct{}

// Predict always fails with ErrUnavailable.
func (Unavailable) Predict(window.Window) (Prediction, error) {
	return Prediction{}, ErrUnavailable
}

// HeuristicLegs is a geometry-only baseline for the legs family. It lets
// the binaries run end to end without external model processes; deployments
// with trained classifiers inject those instead.
type HeuristicLegs struct{}

// Predict scores each frame against simple stance geometry.
func (HeuristicLegs) Predict(w window.Window) (Prediction, error) {
	labels := []exercise.Label{exercise.DeepSquat, exercise.InlineLunge, exercise.SideLunge, exercise.SingleLegStance}
	probs := make([][]float64, 0, len(w.Frames))
	for _, f := range w.Frames {
		left := geometry.Angle(f.Joints[pose.LeftHip], f.Joints[pose.LeftKnee], f.Joints[pose.LeftAnkle])
		right := geometry.Angle(f.Joints[pose.RightHip], f.Joints[pose.RightKnee], f.Joints[pose.RightAnkle])
		minKnee := math.Min(left, right)
		ankleSpreadX := math.Abs(f.Joints[pose.LeftAnkle].X - f.Joints[pose.RightAnkle].X)
		ankleGapZ := math.Abs(f.Joints[pose.LeftAnkle].Z - f.Joints[pose.RightAnkle].Z)
		ankleGapY := math.Abs(f.Joints[pose.LeftAnkle].Y - f.Joints[pose.RightAnkle].Y)

		row := make([]float64, len(labels))
		switch {
		case minKnee < 120 && ankleGapZ >= 0.20:
			row[1] = 0.85 // staggered stance, bent knee
			row[0] = 0.10
		case minKnee < 120 && ankleSpreadX > 0.35:
			row[2] = 0.80 // wide lateral stance
			row[0] = 0.15
		case minKnee < 140:
			row[0] = 0.90
			row[1] = 0.05
		case ankleGapY > 0.12:
			row[3] = 0.80 // one foot lifted
		default:
			// Upright, symmetric: weak squat prior.
			row[0] = 0.40
			row[3] = 0.20
		}
		probs = append(probs, row)
	}
	return Prediction{Labels: labels, Probs: probs}, nil
}

// HeuristicArms is the geometry-only baseline for the arms family.
type HeuristicArms struct{}

// Predict scores each frame against simple arm geometry.
func (HeuristicArms) Predict(w window.Window) (Prediction, error) {
	labels := []exercise.Label{exercise.ShoulderPress, exercise.LateralRaise, exercise.BicepsCurl, exercise.FrontRaise}
	probs := make([][]float64, 0, len(w.Frames))
	for _, f := range w.Frames {
		shoulderY := (f.Joints[pose.LeftShoulder].Y + f.Joints[pose.RightShoulder].Y) / 2
		wristY := (f.Joints[pose.LeftWrist].Y + f.Joints[pose.RightWrist].Y) / 2
		wristSpreadX := math.Abs(f.Joints[pose.LeftWrist].X - f.Joints[pose.RightWrist].X)
		shoulderSpreadX := math.Abs(f.Joints[pose.LeftShoulder].X - f.Joints[pose.RightShoulder].X)
		leftElbow := geometry.Angle(f.Joints[pose.LeftShoulder], f.Joints[pose.LeftElbow], f.Joints[pose.LeftWrist])
		rightElbow := geometry.Angle(f.Joints[pose.RightShoulder], f.Joints[pose.RightElbow], f.Joints[pose.RightWrist])
		minElbow := math.Min(leftElbow, rightElbow)

		row := make([]float64, len(labels))
		switch {
		case wristY < shoulderY-0.15:
			row[0] = 0.85 // wrists well above the shoulders
			row[3] = 0.10
		case wristSpreadX > shoulderSpreadX*1.8 && math.Abs(wristY-shoulderY) < 0.12:
			row[1] = 0.80 // arms out to the sides at shoulder height
		case minElbow < 90 && wristY < shoulderY+0.25:
			row[2] = 0.80 // flexed elbows, wrists raised toward the shoulders
		case math.Abs(wristY-shoulderY) < 0.12:
			row[3] = 0.75 // arms forward at shoulder height
			row[1] = 0.15
		default:
			row[2] = 0.30
		}
		probs = append(probs, row)
	}
	return Prediction{Labels: labels, Probs: probs}, nil
}
