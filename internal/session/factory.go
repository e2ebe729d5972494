package session

import (
	"log/slog"

	"github.com/claude/motionscore/internal/classify"
	"github.com/claude/motionscore/internal/config"
	"github.com/claude/motionscore/internal/evaluate"
)

// Factory builds independent per-session aggregators. The injected
// classifier models are the only state shared across sessions; everything
// else (window buffer, evaluator, smoothing buffer) is created fresh per
// session. Models must therefore be safe for concurrent Predict calls.
type Factory struct {
	cfg    Config
	th     classify.Thresholds
	limits evaluate.Limits
	legs   classify.Model
	arms   classify.Model
	log    *slog.Logger
}

// NewFactory wires a factory from the analysis configuration and the two
// pluggable family models.
func NewFactory(a config.AnalysisConfig, legs, arms classify.Model, log *slog.Logger) *Factory {
	return &Factory{
		cfg: Config{
			WindowSize:     a.WindowSize,
			Step:           a.Step,
			MinReadyFrames: a.MinReadyFrames,
			VoteThreshold:  a.VoteThreshold,
		},
		th: classify.Thresholds{
			ConfidenceGate:    a.ConfidenceGate,
			DeepKneeSoft:      a.DeepKneeSoft,
			DeepKneeHard:      a.DeepKneeHard,
			HipTravelRange:    a.HipTravelRange,
			AnkleSymmetryGate: a.AnkleSymmetryGate,
		},
		limits: func() evaluate.Limits {
			l := evaluate.DefaultLimits()
			l.SquatDepthAngle = a.SquatDepthAngle
			l.KneeWidthRatio = a.KneeWidthRatio
			l.LeanMeanLimit = a.LeanMeanLimit
			l.SmoothingCap = a.SmoothingCapacity
			return l
		}(),
		legs: legs,
		arms: arms,
		log:  log,
	}
}

// NewSession returns a fresh aggregator owning its own buffers. Never share
// the returned instance across concurrent sessions.
func (f *Factory) NewSession() *Aggregator {
	ens := classify.NewEnsemble(f.legs, f.arms, f.th, f.log)
	return New(f.cfg, ens, evaluate.New(f.limits), f.log)
}
