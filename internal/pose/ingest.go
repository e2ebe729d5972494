package pose

import "fmt"

// RawJoint mirrors the pose detector's wire format. Visibility is optional;
// detectors that omit it get the 1.0 default.
type RawJoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// RawFrame is one detector frame on the wire.
type RawFrame struct {
	Joints []RawJoint `json:"joints"`
}

// DecodeFrames validates and converts detector frames. A frame with the
// wrong joint count rejects the whole batch: partial recordings would skew
// the windowing downstream.
func DecodeFrames(raw []RawFrame) ([]Frame, error) {
	out := make([]Frame, 0, len(raw))
	for i, rf := range raw {
		joints := make([]Joint, len(rf.Joints))
		for j, rj := range rf.Joints {
			vis := 1.0
			if rj.Visibility != nil {
				vis = *rj.Visibility
			}
			joints[j] = Joint{X: rj.X, Y: rj.Y, Z: rj.Z, Visibility: vis}
		}
		f, err := NewFrame(joints)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}
