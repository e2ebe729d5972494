// Package classify fuses the outputs of the two pluggable exercise
// classifiers (legs and arms families) into one decision per window,
// applying geometry-derived override rules and a confidence gate.
package classify

import (
	"errors"
	"log/slog"
	"math"

	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/geometry"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/window"
)

// ErrUnavailable is returned by a Model whose backing classifier is not
// loaded. The ensemble treats that side as contributing no candidate.
var ErrUnavailable = errors.New("classifier model unavailable")

// Prediction is one model's raw output for a window: the class order and
// one probability row per frame, each row aligned to Labels.
type Prediction struct {
	Labels []exercise.Label
	Probs  [][]float64
}

// Model is a pluggable window classifier. Implementations own their own
// timeouts; Predict is expected to be pure compute from the core's view.
type Model interface {
	Predict(w window.Window) (Prediction, error)
}

// Source names which path produced a classification.
type Source string

const (
	SourceLegs       Source = "Legs"
	SourceArms       Source = "Arms"
	SourceLegsForced Source = "Legs (forced)"
	SourceLocked     Source = "Locked"
	SourceNone       Source = "None"
)

// Result is the ensemble's decision for one window. Read-only downstream.
type Result struct {
	Label      exercise.Label `json:"label"`
	Confidence float64        `json:"confidence"`
	Source     Source         `json:"source_model"`
}

// Thresholds are the empirical clinical constants driving the override
// rules and the confidence gate. They are configuration, never derived.
type Thresholds struct {
	ConfidenceGate    float64 // below this the window is discarded as NoExercise
	DeepKneeSoft      float64 // mean min knee angle hinting at a squat (with hip travel)
	DeepKneeHard      float64 // mean min knee angle forcing a squat outright
	HipTravelRange    float64 // vertical hip-ankle gap range confirming descent
	AnkleSymmetryGate float64 // mean ankle depth difference below which a lunge is a squat
}

// DefaultThresholds returns the clinically calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfidenceGate:    0.60,
		DeepKneeSoft:      135,
		DeepKneeHard:      110,
		HipTravelRange:    0.10,
		AnkleSymmetryGate: 0.20,
	}
}

// Ensemble wraps the two family models and the fusion rules.
type Ensemble struct {
	legs Model
	arms Model
	th   Thresholds
	log  *slog.Logger
}

// NewEnsemble builds an ensemble over the given family models.
func NewEnsemble(legs, arms Model, th Thresholds, log *slog.Logger) *Ensemble {
	return &Ensemble{legs: legs, arms: arms, th: th, log: log}
}

// Classify produces one decision for the window. A non-empty forced label
// bypasses inference entirely and reports confidence 1.0 from SourceLocked.
// Classify never returns an error: model failures degrade to the
// NoExercise sentinel.
func (e *Ensemble) Classify(w window.Window, forced exercise.Label) Result {
	if forced != "" {
		return Result{Label: forced, Confidence: 1.0, Source: SourceLocked}
	}

	legsLabel, legsConf, legsOK := e.candidate(e.legs, SourceLegs, w)
	armsLabel, armsConf, armsOK := e.candidate(e.arms, SourceArms, w)

	var res Result
	switch {
	case !legsOK && !armsOK:
		return Result{Label: exercise.NoExercise, Confidence: 0, Source: SourceNone}
	case legsOK && (!armsOK || legsConf >= armsConf):
		// Ties favor the legs model.
		res = Result{Label: legsLabel, Confidence: legsConf, Source: SourceLegs}
	default:
		res = Result{Label: armsLabel, Confidence: armsConf, Source: SourceArms}
	}

	res = e.applyOverrides(w, res)

	// Confidence gate comes after the overrides; the numeric confidence is
	// not recomputed by them.
	if res.Confidence < e.th.ConfidenceGate {
		return Result{Label: exercise.NoExercise, Confidence: 0, Source: SourceNone}
	}
	return res
}

// candidate runs one model and derives its window-level label and
// confidence. ok is false when the model is unavailable or its output is
// unusable.
func (e *Ensemble) candidate(m Model, src Source, w window.Window) (exercise.Label, float64, bool) {
	if m == nil {
		return exercise.NoExercise, 0, false
	}
	pred, err := m.Predict(w)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) && e.log != nil {
			e.log.Warn("model predict failed", "model", string(src), "error", err)
		}
		return exercise.NoExercise, 0, false
	}
	label, conf, ok := deriveConfidence(pred)
	return label, conf, ok
}

// deriveConfidence reduces per-frame probability rows to a window decision:
// each frame votes its top class (ties to the lower index), the majority
// label wins (ties to the first-seen label), and confidence is the mean
// top-class probability over the frames that agreed with the majority.
func deriveConfidence(p Prediction) (exercise.Label, float64, bool) {
	if len(p.Labels) == 0 || len(p.Probs) == 0 {
		return exercise.NoExercise, 0, false
	}

	type vote struct {
		idx  int
		prob float64
	}
	votes := make([]vote, 0, len(p.Probs))
	counts := make(map[int]int, len(p.Labels))
	var order []int

	for _, row := range p.Probs {
		if len(row) != len(p.Labels) {
			continue
		}
		best := 0
		for i := 1; i < len(row); i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		votes = append(votes, vote{idx: best, prob: row[best]})
		if counts[best] == 0 {
			order = append(order, best)
		}
		counts[best]++
	}
	if len(votes) == 0 {
		return exercise.NoExercise, 0, false
	}

	majority := order[0]
	for _, idx := range order {
		if counts[idx] > counts[majority] {
			majority = idx
		}
	}

	var sum float64
	var n int
	for _, v := range votes {
		if v.idx == majority {
			sum += v.prob
			n++
		}
	}
	if n == 0 {
		return exercise.NoExercise, 0, false
	}
	return p.Labels[majority], sum / float64(n), true
}

// applyOverrides applies the two geometry rules, in order: the deep-squat
// override (a window that descends with bent knees is never an arms
// exercise) and the lunge/squat symmetry override (a lunge with level
// ankles is a squat).
func (e *Ensemble) applyOverrides(w window.Window, res Result) Result {
	if len(w.Frames) == 0 {
		return res
	}

	meanMinKnee, hipTravel := squatSignals(w.Frames)
	deepHinted := meanMinKnee < e.th.DeepKneeSoft && hipTravel > e.th.HipTravelRange
	deepCertain := meanMinKnee < e.th.DeepKneeHard
	if (deepHinted || deepCertain) && exercise.FamilyOf(res.Label) == exercise.FamilyArms {
		res.Label = exercise.DeepSquat
		res.Source = SourceLegsForced
	}

	if res.Label == exercise.InlineLunge && meanAnkleDepthGap(w.Frames) < e.th.AnkleSymmetryGate {
		res.Label = exercise.DeepSquat
	}
	return res
}

// squatSignals computes, over the window, the mean of each frame's smaller
// knee angle and the range of the vertical hip-ankle gap.
func squatSignals(frames []pose.Frame) (meanMinKnee, hipTravel float64) {
	minGap := math.Inf(1)
	maxGap := math.Inf(-1)
	var kneeSum float64

	for _, f := range frames {
		left := geometry.Angle(f.Joints[pose.LeftHip], f.Joints[pose.LeftKnee], f.Joints[pose.LeftAnkle])
		right := geometry.Angle(f.Joints[pose.RightHip], f.Joints[pose.RightKnee], f.Joints[pose.RightAnkle])
		kneeSum += math.Min(left, right)

		hipY := (f.Joints[pose.LeftHip].Y + f.Joints[pose.RightHip].Y) / 2
		ankleY := (f.Joints[pose.LeftAnkle].Y + f.Joints[pose.RightAnkle].Y) / 2
		gap := math.Abs(ankleY - hipY)
		minGap = math.Min(minGap, gap)
		maxGap = math.Max(maxGap, gap)
	}
	return kneeSum / float64(len(frames)), maxGap - minGap
}

// meanAnkleDepthGap averages the absolute ankle depth (z) difference across
// the window. A genuine lunge staggers the feet front to back.
func meanAnkleDepthGap(frames []pose.Frame) float64 {
	var sum float64
	for _, f := range frames {
		sum += math.Abs(f.Joints[pose.LeftAnkle].Z - f.Joints[pose.RightAnkle].Z)
	}
	return sum / float64(len(frames))
}
