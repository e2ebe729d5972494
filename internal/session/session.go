// Package session orchestrates the analysis pipeline for one user session:
// it owns the window buffer, runs the ensemble classifier and the
// biomechanical evaluator per window, and aggregates whole recordings into
// a final verdict via majority voting. One Aggregator per active session;
// instances are never shared across sessions.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/claude/motionscore/internal/classify"
	"github.com/claude/motionscore/internal/evaluate"
	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/window"
)

// Structured analysis outcomes. These surface as data, not as process
// failures: the caller translates them into user-facing messages.
var (
	// ErrEmptyRecording marks a recording with zero frames.
	ErrEmptyRecording = errors.New("recording contains no frames")
	// ErrNoConfidentExercise marks a recording where no window cleared the
	// vote confidence threshold.
	ErrNoConfidentExercise = errors.New("no exercise detected with sufficient confidence")
)

// Outcome tags what a verdict represents.
type Outcome string

const (
	OutcomeAnalyzed   Outcome = "analyzed"
	OutcomeNoData     Outcome = "no_data"
	OutcomeNoExercise Outcome = "no_exercise"
)

// WindowResult pairs the classification and the movement diagnostic for one
// window, with the window's visibility flag carried through for clients.
type WindowResult struct {
	Classification classify.Result `json:"classification"`
	Diagnostic     evaluate.Result `json:"diagnostic"`
	Visible        bool            `json:"visible"`
}

// Verdict is the session-level analysis result. Immutable once returned.
// IsCorrect and Feedback mirror the last analyzed window; TextReport scores
// all windows.
type Verdict struct {
	Outcome    Outcome        `json:"outcome"`
	Exercise   exercise.Label `json:"exercise"`
	Confidence float64        `json:"confidence"`
	IsCorrect  bool           `json:"is_correct"`
	Feedback   []string       `json:"feedback"`
	TextReport string         `json:"text_report"`
	Windows    []WindowResult `json:"windows"`
}

// Config holds the windowing and voting parameters.
type Config struct {
	WindowSize     int     // frames per window
	Step           int     // batch window stride
	MinReadyFrames int     // live buffer fill before the first tick
	VoteThreshold  float64 // minimum confidence for a window to cast a vote
}

// DefaultConfig returns the reference cadence: 60-frame windows, stride 15,
// 30 frames before the first live tick, votes above 0.50.
func DefaultConfig() Config {
	return Config{WindowSize: 60, Step: 15, MinReadyFrames: 30, VoteThreshold: 0.50}
}

// Aggregator drives the pipeline for one session.
type Aggregator struct {
	cfg    Config
	buf    *window.Buffer
	cls    *classify.Ensemble
	eval   *evaluate.Evaluator
	log    *slog.Logger
	locked exercise.Label
}

// New creates a session aggregator with its own window buffer. The
// classifier ensemble and evaluator are owned by this session and must not
// be shared.
func New(cfg Config, cls *classify.Ensemble, eval *evaluate.Evaluator, log *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:  cfg,
		buf:  window.NewBuffer(cfg.WindowSize, cfg.MinReadyFrames),
		cls:  cls,
		eval: eval,
		log:  log,
	}
}

// Push feeds one live frame into the session's window buffer.
func (a *Aggregator) Push(f pose.Frame) { a.buf.Push(f) }

// Ready reports whether enough frames are buffered for a live tick.
func (a *Aggregator) Ready() bool { return a.buf.Ready() }

// BufferedFrames returns the current live buffer fill.
func (a *Aggregator) BufferedFrames() int { return a.buf.Len() }

// AnalyzeTick analyzes the current live buffer contents. Returns false
// until the buffer is ready.
func (a *Aggregator) AnalyzeTick(forced exercise.Label) (WindowResult, bool) {
	if !a.buf.Ready() {
		return WindowResult{}, false
	}
	return a.AnalyzeWindow(a.buf.Snapshot(), forced), true
}

// AnalyzeWindow classifies one window and evaluates the movement under the
// resulting (possibly forced) label. A forced label re-locks the session, so
// switching exercises mid-session discards the evaluator's temporal state
// before the new exercise is judged.
func (a *Aggregator) AnalyzeWindow(w window.Window, forced exercise.Label) WindowResult {
	if forced != "" {
		a.lock(forced)
	}
	cls := a.cls.Classify(w, forced)
	diag := a.eval.Evaluate(cls.Label, w.Frames)
	return WindowResult{Classification: cls, Diagnostic: diag, Visible: w.Visible}
}

// AnalyzeRecording runs the two-pass batch workflow over a whole recording.
//
// Pass 1 (discovery) windows the frames and classifies each window
// unforced; windows above the vote threshold elect the session's exercise
// by majority. Pass 2 re-evaluates every window with the label locked to
// the winner. The returned verdict is always populated; the error, when
// non-nil, is one of the structured outcome sentinels.
func (a *Aggregator) AnalyzeRecording(frames []pose.Frame) (Verdict, error) {
	if len(frames) == 0 {
		return Verdict{
			Outcome:    OutcomeNoData,
			Exercise:   exercise.NoExercise,
			Feedback:   []string{"No movement data was captured."},
			TextReport: "No person or movement data was detected in the recording.",
			Windows:    []WindowResult{},
		}, ErrEmptyRecording
	}

	windows := window.Slice(frames, a.cfg.WindowSize, a.cfg.Step)

	// Pass 1: discovery votes.
	votes := map[exercise.Label]int{}
	var voteOrder []exercise.Label
	total := 0
	for _, w := range windows {
		res := a.cls.Classify(w, "")
		if res.Label == exercise.NoExercise || res.Confidence <= a.cfg.VoteThreshold {
			continue
		}
		if votes[res.Label] == 0 {
			voteOrder = append(voteOrder, res.Label)
		}
		votes[res.Label]++
		total++
	}
	if total == 0 {
		return Verdict{
			Outcome:    OutcomeNoExercise,
			Exercise:   exercise.NoExercise,
			Feedback:   []string{"No recognizable exercise was detected."},
			TextReport: "No exercise could be identified with sufficient confidence.",
			Windows:    []WindowResult{},
		}, ErrNoConfidentExercise
	}

	// First-seen order makes the majority tie deterministic.
	locked := voteOrder[0]
	for _, l := range voteOrder {
		if votes[l] > votes[locked] {
			locked = l
		}
	}
	votingConfidence := float64(votes[locked]) / float64(total)

	if a.log != nil {
		a.log.Info("exercise locked", "exercise", string(locked),
			"votes", votes[locked], "total_votes", total)
	}

	// Pass 2: locked evaluation. Re-locking resets the evaluator's
	// temporal state.
	a.lock(locked)
	results := make([]WindowResult, 0, len(windows))
	for _, w := range windows {
		results = append(results, a.AnalyzeWindow(w, locked))
	}

	last := results[len(results)-1]
	return Verdict{
		Outcome:    OutcomeAnalyzed,
		Exercise:   locked,
		Confidence: votingConfidence,
		IsCorrect:  last.Diagnostic.IsCorrect,
		Feedback:   feedbackFor(last.Diagnostic),
		TextReport: buildReport(locked, results),
		Windows:    results,
	}, nil
}

// lock records the session exercise and resets temporal evaluator state
// when it changes.
func (a *Aggregator) lock(l exercise.Label) {
	if a.locked != l {
		a.eval.Reset()
		a.locked = l
	}
}

// feedbackFor turns one diagnostic into user-facing feedback lines.
func feedbackFor(d evaluate.Result) []string {
	if d.IsCorrect {
		return []string{"Movement pattern looks good."}
	}
	out := make([]string, len(d.Violations))
	copy(out, d.Violations)
	return out
}

// buildReport writes the session narrative: a correctness score across all
// windows with a tiered summary, naming the most frequent violation when
// one exists.
func buildReport(locked exercise.Label, results []WindowResult) string {
	correct := 0
	counts := map[string]int{}
	for _, r := range results {
		if r.Diagnostic.IsCorrect {
			correct++
		}
		for _, v := range r.Diagnostic.Violations {
			counts[v]++
		}
	}
	score := float64(correct) / float64(len(results)) * 100

	top := topViolation(counts)
	switch {
	case score > 90:
		return fmt.Sprintf("%s: excellent execution, %.0f%% of windows matched the clinical pattern.", locked, score)
	case score > 60:
		if top != "" {
			return fmt.Sprintf("%s: good execution overall (%.0f%%), but watch for %s.", locked, score, top)
		}
		return fmt.Sprintf("%s: good execution overall (%.0f%%).", locked, score)
	default:
		if top != "" {
			return fmt.Sprintf("%s: the movement needs work (%.0f%% correct); the most frequent issue was %s.", locked, score, top)
		}
		return fmt.Sprintf("%s: the movement needs work (%.0f%% correct).", locked, score)
	}
}

// topViolation returns the most frequent violation, ties broken
// alphabetically. Empty when no violations occurred.
func topViolation(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
