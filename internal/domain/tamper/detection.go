// Package tamper models the inspection-tool heuristic and the registry of
// input-suppression listeners. Detection is advisory: it deters, it does not
// and cannot prevent inspection.
package tamper

import "github.com/storefront/backend/internal/domain/page"

// DefaultThreshold is the outer-minus-inner window delta, in pixels, above which
// docked developer tools are suspected
const DefaultThreshold = 160

// State is the detection state
type State string

const (
	StateClear     State = "clear"
	StateSuspected State = "suspected"
)

// Delta is the measured outer-minus-inner window size
type Delta struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectionState is written only by the detector's poll tick
type DetectionState struct {
	Flag              bool  `json:"flag"`
	LastMeasuredDelta Delta `json:"last_measured_delta"`
}

// State returns the state named by the flag
func (s DetectionState) State() State {
	if s.Flag {
		return StateSuspected
	}
	return StateClear
}

// Exceeds reports whether the delta crosses the threshold on either axis.
// The comparison is strict: a delta equal to the threshold is clear.
func (d Delta) Exceeds(threshold int) bool {
	return d.Width > threshold || d.Height > threshold
}

// DeltaOf measures a viewport
func DeltaOf(v page.Viewport) Delta {
	w, h := v.Delta()
	return Delta{Width: w, Height: h}
}

// Machine is the clear/suspected state machine. It is not safe for concurrent
// use; the detector serializes access.
type Machine struct {
	threshold int
	state     DetectionState
}

// NewMachine creates a machine in the clear state. A non-positive threshold
// selects DefaultThreshold.
func NewMachine(threshold int) *Machine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Machine{threshold: threshold}
}

// Threshold returns the configured threshold
func (m *Machine) Threshold() int {
	return m.threshold
}

// Observe feeds one measurement and reports whether it produced a
// clear→suspected edge
func (m *Machine) Observe(d Delta) (suspectedEdge bool) {
	was := m.state.Flag
	m.state.LastMeasuredDelta = d
	m.state.Flag = d.Exceeds(m.threshold)
	return !was && m.state.Flag
}

// State returns a copy of the current detection state
func (m *Machine) State() DetectionState {
	return m.state
}
