package pose

import "fmt"

// JointCount is the number of landmarks per frame, following the MediaPipe
// full-body topology.
const JointCount = 33

// Landmark indices into a Frame's joint array (MediaPipe order).
const (
	Nose          = 0
	LeftEar       = 7
	RightEar      = 8
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
)

// Joint is one landmark position. Coordinates are normalized image space:
// x/y in [0,1] with y growing downward, z roughly metric depth relative to
// the hip midpoint. Visibility is the detector's confidence in [0,1].
type Joint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is one instant's full-body snapshot: exactly JointCount joints in
// landmark order. Frames are immutable once built.
type Frame struct {
	Joints []Joint `json:"joints"`
}

// ErrWrongJointCount rejects frames that do not carry exactly JointCount
// joints. Such frames never enter a window buffer.
var ErrWrongJointCount = fmt.Errorf("frame must carry exactly %d joints", JointCount)

// NewFrame validates joint arity and copies the joints so the frame stays
// immutable. Visibility defaulting for detectors that omit it happens at
// the ingestion boundary, before this call.
func NewFrame(joints []Joint) (Frame, error) {
	if len(joints) != JointCount {
		return Frame{}, fmt.Errorf("%w: got %d", ErrWrongJointCount, len(joints))
	}
	out := make([]Joint, JointCount)
	copy(out, joints)
	return Frame{Joints: out}, nil
}

// MeanVisibility averages the detector confidence across all joints.
func (f Frame) MeanVisibility() float64 {
	if len(f.Joints) == 0 {
		return 0
	}
	var sum float64
	for _, j := range f.Joints {
		sum += j.Visibility
	}
	return sum / float64(len(f.Joints))
}
