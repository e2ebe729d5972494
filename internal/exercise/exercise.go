// Package exercise defines the closed catalogue of rehabilitation exercises
// the analysis pipeline can recognize, partitioned into the two model
// families (legs and arms).
package exercise

// Label identifies one catalogue exercise, or the NoExercise sentinel when
// no confident classification exists.
type Label string

const (
	// Legs family.
	DeepSquat       Label = "DeepSquat"
	InlineLunge     Label = "InlineLunge"
	SideLunge       Label = "SideLunge"
	SingleLegStance Label = "SingleLegStance"

	// Arms family.
	ShoulderPress Label = "ShoulderPress"
	LateralRaise  Label = "LateralRaise"
	BicepsCurl    Label = "BicepsCurl"
	FrontRaise    Label = "FrontRaise"

	// NoExercise is the sentinel for windows below the confidence gate.
	NoExercise Label = "NoExerciseDetected"
)

// Family groups labels by the model that predicts them.
type Family string

const (
	FamilyLegs Family = "legs"
	FamilyArms Family = "arms"
	FamilyNone Family = "none"
)

// legsLabels and armsLabels are disjoint; together with NoExercise they
// form the full catalogue.
var (
	legsLabels = []Label{DeepSquat, InlineLunge, SideLunge, SingleLegStance}
	armsLabels = []Label{ShoulderPress, LateralRaise, BicepsCurl, FrontRaise}
)

// FamilyOf returns which model family a label belongs to. NoExercise and
// unknown labels report FamilyNone.
func FamilyOf(l Label) Family {
	for _, x := range legsLabels {
		if l == x {
			return FamilyLegs
		}
	}
	for _, x := range armsLabels {
		if l == x {
			return FamilyArms
		}
	}
	return FamilyNone
}

// Catalogue returns all recognizable labels in a stable order, legs first.
func Catalogue() []Label {
	out := make([]Label, 0, len(legsLabels)+len(armsLabels))
	out = append(out, legsLabels...)
	out = append(out, armsLabels...)
	return out
}

// Valid reports whether l is a catalogue member or the NoExercise sentinel.
func Valid(l Label) bool {
	return l == NoExercise || FamilyOf(l) != FamilyNone
}
