// Package evaluate checks a window of pose frames against the clinical
// movement pattern of one catalogue exercise. Every exercise except the
// deep squat is judged frame by frame from a fixed predicate table; the
// deep squat needs temporal state (a smoothing buffer over torso lean) and
// gets its own strategy.
package evaluate

import (
	"math"
	"sort"

	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/geometry"
	"github.com/claude/motionscore/internal/pose"
)

// Result is the verdict for one evaluated frame set. Violations carry set
// semantics and are reported sorted for determinism.
type Result struct {
	IsCorrect  bool     `json:"is_correct"`
	Violations []string `json:"violations"`
}

// Violation messages. These are user-facing clinical feedback strings.
const (
	ViolationTorsoInstability = "torso instability"
	ViolationShrugging        = "shrugging"
	ViolationArmAsymmetry     = "arm asymmetry"
	ViolationTooShallow       = "squat too shallow"
	ViolationKneesNarrow      = "knees too narrow"
	ViolationExcessiveLean    = "excessive forward lean"
	ViolationKneeDrift        = "knee drifting past foot"
	ViolationNarrowStance     = "stance too narrow"
	ViolationHipDrop          = "hip drop"
	ViolationRaisedTooHigh    = "arms raised too high"
	ViolationElbowDrift       = "elbows drifting from torso"
	ViolationTorsoSwing       = "torso swinging"
	ViolationLeanBack         = "leaning back"
)

// Limits are the empirical clinical thresholds the rules test against.
// Kept as configuration, never derived.
type Limits struct {
	TorsoShift      float64 // lateral shoulder-hip offset
	EarShoulderMin  float64 // ear-shoulder distance below which shoulders are shrugged
	WristAsymmetry  float64 // wrist height difference between sides
	KneeDrift       float64 // knee-ankle horizontal offset in a lunge
	SideStanceMin   float64 // minimum ankle spread for a side lunge
	HipDrop         float64 // hip height difference in single-leg stance
	RaiseOvershoot  float64 // wrist height above the shoulder line
	ElbowDrift      float64 // elbow-shoulder horizontal offset in a curl
	LeanBack        float64 // shoulder depth behind the hips in a press
	SquatDepthAngle float64 // knee angle above which the squat is shallow
	KneeWidthRatio  float64 // knee spread as a fraction of ankle spread
	LeanMeanLimit   float64 // smoothed torso lean ratio
	SmoothingCap    int     // smoothing buffer capacity
}

// DefaultLimits returns the clinically calibrated defaults.
func DefaultLimits() Limits {
	return Limits{
		TorsoShift:      0.12,
		EarShoulderMin:  0.12,
		WristAsymmetry:  0.15,
		KneeDrift:       0.10,
		SideStanceMin:   0.30,
		HipDrop:         0.05,
		RaiseOvershoot:  0.10,
		ElbowDrift:      0.10,
		LeanBack:        0.15,
		SquatDepthAngle: 100,
		KneeWidthRatio:  0.75,
		LeanMeanLimit:   0.70,
		SmoothingCap:    10,
	}
}

// SmoothingBuffer is a fixed-capacity FIFO over a scalar metric. It damps
// single-frame jitter spikes before a threshold decision: the decision
// always reads the running mean, never the instantaneous value. Each
// evaluator owns exactly one; it is never shared across sessions.
type SmoothingBuffer struct {
	vals []float64
	cap  int
}

// NewSmoothingBuffer creates a buffer holding at most capacity values.
func NewSmoothingBuffer(capacity int) *SmoothingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SmoothingBuffer{cap: capacity}
}

// Push appends a value, evicting the oldest once full.
func (s *SmoothingBuffer) Push(v float64) {
	if len(s.vals) == s.cap {
		s.vals = s.vals[1:]
	}
	s.vals = append(s.vals, v)
}

// Mean returns the running mean, or 0 when empty.
func (s *SmoothingBuffer) Mean() float64 {
	if len(s.vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.vals {
		sum += v
	}
	return sum / float64(len(s.vals))
}

// Len returns the number of buffered values.
func (s *SmoothingBuffer) Len() int { return len(s.vals) }

// Reset discards all buffered values.
func (s *SmoothingBuffer) Reset() { s.vals = s.vals[:0] }

// rule is one named per-frame predicate. check reports true when the frame
// violates the rule.
type rule struct {
	violation string
	check     func(f pose.Frame, lim Limits) bool
}

// perFrameRules maps each per-frame exercise to its predicate table.
// DeepSquat is absent: it uses the temporal strategy.
var perFrameRules = map[exercise.Label][]rule{
	exercise.InlineLunge: {
		{ViolationTorsoInstability, torsoShifted},
		{ViolationKneeDrift, kneePastFoot},
	},
	exercise.SideLunge: {
		{ViolationTorsoInstability, torsoShifted},
		{ViolationNarrowStance, stanceTooNarrow},
	},
	exercise.SingleLegStance: {
		{ViolationHipDrop, hipDropped},
		{ViolationTorsoInstability, torsoShifted},
	},
	exercise.ShoulderPress: {
		{ViolationShrugging, shrugged},
		{ViolationArmAsymmetry, wristsAsymmetric},
		{ViolationLeanBack, leaningBack},
	},
	exercise.LateralRaise: {
		{ViolationShrugging, shrugged},
		{ViolationRaisedTooHigh, raisedAboveShoulders},
		{ViolationArmAsymmetry, wristsAsymmetric},
	},
	exercise.BicepsCurl: {
		{ViolationElbowDrift, elbowsDrifting},
		{ViolationTorsoSwing, torsoShifted},
		{ViolationArmAsymmetry, wristsAsymmetric},
	},
	exercise.FrontRaise: {
		{ViolationRaisedTooHigh, raisedAboveEars},
		{ViolationArmAsymmetry, wristsAsymmetric},
		{ViolationTorsoInstability, torsoShifted},
	},
}

// Evaluator applies the rule table for a given exercise. One instance per
// session; the smoothing buffer is its only state.
type Evaluator struct {
	limits Limits
	lean   *SmoothingBuffer
}

// New creates an evaluator with a fresh smoothing buffer.
func New(limits Limits) *Evaluator {
	return &Evaluator{limits: limits, lean: NewSmoothingBuffer(limits.SmoothingCap)}
}

// Reset clears temporal state. Called when the locked exercise changes.
func (e *Evaluator) Reset() { e.lean.Reset() }

// LeanBuffer exposes the smoothing buffer for inspection in tests and
// diagnostics.
func (e *Evaluator) LeanBuffer() *SmoothingBuffer { return e.lean }

// Evaluate checks the frames against the named exercise's movement pattern.
// Violations found on any frame are unioned; the set is empty iff the
// movement is correct. Degenerate geometry never raises: zero-length rays
// evaluate to 0° and zero distance, which the thresholds absorb.
func (e *Evaluator) Evaluate(label exercise.Label, frames []pose.Frame) Result {
	if len(frames) == 0 {
		return Result{IsCorrect: true, Violations: []string{}}
	}
	if label == exercise.DeepSquat {
		return e.evaluateDeepSquat(frames)
	}

	rules, ok := perFrameRules[label]
	if !ok {
		// NoExercise or an unknown label: nothing to judge.
		return Result{IsCorrect: true, Violations: []string{}}
	}

	seen := map[string]bool{}
	for _, f := range frames {
		for _, r := range rules {
			if !seen[r.violation] && r.check(f, e.limits) {
				seen[r.violation] = true
			}
		}
	}
	return resultFrom(seen)
}

// evaluateDeepSquat is the temporal strategy: find the deepest rep point
// (window-minimum knee angle), judge depth and knee width there, and feed
// the torso lean at that frame through the smoothing buffer so a single
// jittery frame cannot trip the lean check on its own.
func (e *Evaluator) evaluateDeepSquat(frames []pose.Frame) Result {
	minAngle := math.Inf(1)
	deepest := 0
	for i, f := range frames {
		left := geometry.Angle(f.Joints[pose.LeftHip], f.Joints[pose.LeftKnee], f.Joints[pose.LeftAnkle])
		right := geometry.Angle(f.Joints[pose.RightHip], f.Joints[pose.RightKnee], f.Joints[pose.RightAnkle])
		if a := math.Min(left, right); a < minAngle {
			minAngle = a
			deepest = i
		}
	}

	seen := map[string]bool{}
	if minAngle > e.limits.SquatDepthAngle {
		seen[ViolationTooShallow] = true
	}

	df := frames[deepest]
	kneeSpread := geometry.Distance(df.Joints[pose.LeftKnee], df.Joints[pose.RightKnee])
	ankleSpread := geometry.Distance(df.Joints[pose.LeftAnkle], df.Joints[pose.RightAnkle])
	if kneeSpread < e.limits.KneeWidthRatio*ankleSpread {
		seen[ViolationKneesNarrow] = true
	}

	e.lean.Push(torsoLean(df))
	if e.lean.Mean() > e.limits.LeanMeanLimit {
		seen[ViolationExcessiveLean] = true
	}
	return resultFrom(seen)
}

// torsoLean is the lateral shoulder-hip offset normalized by spine length
// at one frame. A zero-length spine yields 0.
func torsoLean(f pose.Frame) float64 {
	shoulderMid := geometry.Midpoint(f.Joints[pose.LeftShoulder], f.Joints[pose.RightShoulder])
	hipMid := geometry.Midpoint(f.Joints[pose.LeftHip], f.Joints[pose.RightHip])
	spine := geometry.Distance(shoulderMid, hipMid)
	if spine == 0 {
		return 0
	}
	return math.Abs(shoulderMid.X-hipMid.X) / spine
}

func resultFrom(seen map[string]bool) Result {
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return Result{IsCorrect: len(out) == 0, Violations: out}
}

// --- per-frame predicates ---

func torsoShifted(f pose.Frame, lim Limits) bool {
	shoulderMidX := (f.Joints[pose.LeftShoulder].X + f.Joints[pose.RightShoulder].X) / 2
	hipMidX := (f.Joints[pose.LeftHip].X + f.Joints[pose.RightHip].X) / 2
	return math.Abs(shoulderMidX-hipMidX) > lim.TorsoShift
}

func shrugged(f pose.Frame, lim Limits) bool {
	left := geometry.Distance(f.Joints[pose.LeftEar], f.Joints[pose.LeftShoulder])
	right := geometry.Distance(f.Joints[pose.RightEar], f.Joints[pose.RightShoulder])
	return math.Min(left, right) < lim.EarShoulderMin
}

func wristsAsymmetric(f pose.Frame, lim Limits) bool {
	return math.Abs(f.Joints[pose.LeftWrist].Y-f.Joints[pose.RightWrist].Y) > lim.WristAsymmetry
}

// kneePastFoot flags the front knee tracking past the ankle. The front leg
// is the one with the nearer (smaller z) ankle.
func kneePastFoot(f pose.Frame, lim Limits) bool {
	knee, ankle := pose.LeftKnee, pose.LeftAnkle
	if f.Joints[pose.RightAnkle].Z < f.Joints[pose.LeftAnkle].Z {
		knee, ankle = pose.RightKnee, pose.RightAnkle
	}
	return math.Abs(f.Joints[knee].X-f.Joints[ankle].X) > lim.KneeDrift
}

func stanceTooNarrow(f pose.Frame, lim Limits) bool {
	return math.Abs(f.Joints[pose.LeftAnkle].X-f.Joints[pose.RightAnkle].X) < lim.SideStanceMin
}

func hipDropped(f pose.Frame, lim Limits) bool {
	return math.Abs(f.Joints[pose.LeftHip].Y-f.Joints[pose.RightHip].Y) > lim.HipDrop
}

// raisedAboveShoulders flags wrists lifted past the shoulder line (y grows
// downward, so above means smaller y).
func raisedAboveShoulders(f pose.Frame, lim Limits) bool {
	shoulderY := (f.Joints[pose.LeftShoulder].Y + f.Joints[pose.RightShoulder].Y) / 2
	wristY := (f.Joints[pose.LeftWrist].Y + f.Joints[pose.RightWrist].Y) / 2
	return wristY < shoulderY-lim.RaiseOvershoot
}

func raisedAboveEars(f pose.Frame, lim Limits) bool {
	earY := (f.Joints[pose.LeftEar].Y + f.Joints[pose.RightEar].Y) / 2
	wristY := (f.Joints[pose.LeftWrist].Y + f.Joints[pose.RightWrist].Y) / 2
	return wristY < earY
}

func elbowsDrifting(f pose.Frame, lim Limits) bool {
	left := math.Abs(f.Joints[pose.LeftElbow].X - f.Joints[pose.LeftShoulder].X)
	right := math.Abs(f.Joints[pose.RightElbow].X - f.Joints[pose.RightShoulder].X)
	return math.Max(left, right) > lim.ElbowDrift
}

func leaningBack(f pose.Frame, lim Limits) bool {
	shoulderMidZ := (f.Joints[pose.LeftShoulder].Z + f.Joints[pose.RightShoulder].Z) / 2
	hipMidZ := (f.Joints[pose.LeftHip].Z + f.Joints[pose.RightHip].Z) / 2
	return hipMidZ-shoulderMidZ > lim.LeanBack
}
