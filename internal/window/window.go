// Package window groups pose frames into the fixed-length windows the
// classifier and evaluator consume. It covers both operating modes: a
// streaming ring buffer for live sessions and a batch windower for whole
// recordings.
package window

import "github.com/claude/motionscore/internal/pose"

// frameVisibleThreshold is the mean joint visibility above which a single
// frame counts as visible.
const frameVisibleThreshold = 0.5

// windowVisibleRatio is the fraction of visible frames a window needs to be
// flagged visible.
const windowVisibleRatio = 0.7

// Window is a bounded ordered run of frames, the unit of classification and
// evaluation. It is created here, consumed downstream, and never mutated.
type Window struct {
	Frames  []pose.Frame
	Visible bool
}

// newWindow derives the visibility flag from its frames.
func newWindow(frames []pose.Frame) Window {
	visible := 0
	for _, f := range frames {
		if f.MeanVisibility() >= frameVisibleThreshold {
			visible++
		}
	}
	return Window{
		Frames:  frames,
		Visible: len(frames) > 0 && float64(visible) >= windowVisibleRatio*float64(len(frames)),
	}
}

// Buffer is a fixed-capacity sliding buffer for live streams. Push evicts
// the oldest frame once full. Not safe for concurrent use; each session
// owns exactly one.
type Buffer struct {
	frames   []pose.Frame
	capacity int
	minReady int
	head     int
	size     int
}

// NewBuffer creates a streaming buffer holding at most capacity frames;
// Ready reports true once minReady frames have accumulated.
func NewBuffer(capacity, minReady int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	if minReady < 1 || minReady > capacity {
		minReady = capacity
	}
	return &Buffer{
		frames:   make([]pose.Frame, capacity),
		capacity: capacity,
		minReady: minReady,
	}
}

// Push appends a frame, evicting the oldest when the buffer is full. O(1).
func (b *Buffer) Push(f pose.Frame) {
	tail := (b.head + b.size) % b.capacity
	b.frames[tail] = f
	if b.size < b.capacity {
		b.size++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int { return b.size }

// Ready reports whether enough frames are buffered to analyze a window.
func (b *Buffer) Ready() bool { return b.size >= b.minReady }

// Snapshot returns the buffered frames oldest-first as a Window without
// mutating the buffer.
func (b *Buffer) Snapshot() Window {
	out := make([]pose.Frame, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.frames[(b.head+i)%b.capacity]
	}
	return newWindow(out)
}

// Reset discards all buffered frames.
func (b *Buffer) Reset() {
	b.head = 0
	b.size = 0
}

// Slice splits a recording into overlapping windows of length size starting
// at offsets 0, step, 2·step, … while offset+size ≤ len(frames). A recording
// shorter than size yields exactly one window of all its frames; no trailing
// partial window is emitted. Zero frames yield zero windows.
func Slice(frames []pose.Frame, size, step int) []Window {
	if len(frames) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	if step < 1 {
		step = 1
	}
	if len(frames) < size {
		return []Window{newWindow(frames)}
	}
	var out []Window
	for off := 0; off+size <= len(frames); off += step {
		out = append(out, newWindow(frames[off:off+size]))
	}
	return out
}
