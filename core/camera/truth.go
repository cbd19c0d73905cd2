// Package camera holds the camera truth of a live session and the pure
// derivation of whether the assistant can currently see anything.
package camera

import "time"

// Truth is a point-in-time copy of what a session believes about the user's
// camera.
type Truth struct {
	// DeclaredOn is the last applied camera state.
	DeclaredOn     bool      `json:"declared_on"`
	LastDeclaredAt time.Time `json:"last_declared_at"`
	// LastFrameAt is the arrival time of the latest frame, or the grace
	// timestamp set when the camera was turned on. Zero once the track
	// unsubscribes.
	LastFrameAt time.Time `json:"last_frame_at"`
	// FrameSinceDeclared reports whether LastFrameAt comes from a real frame
	// rather than the turn-on grace timestamp.
	FrameSinceDeclared bool `json:"frame_since_declared"`
	TrackSubscribed    bool `json:"track_subscribed"`
}

// Available reports whether visual claims are currently licensed.
//
// The camera must be declared on, at least one real frame must have arrived
// since it was declared on, and that frame must be younger than window.
func Available(truth Truth, now time.Time, window time.Duration) bool {
	if !truth.DeclaredOn || !truth.FrameSinceDeclared || truth.LastFrameAt.IsZero() {
		return false
	}

	return now.Sub(truth.LastFrameAt) < window
}

// Stale reports whether a declared-on camera has not delivered a frame for
// longer than threshold. The grace timestamp counts as a frame here so a
// freshly enabled camera is not reported before its first frame could land.
// A zero LastFrameAt means the track is gone and the off is still pending, so
// nothing is stale.
func Stale(truth Truth, now time.Time, threshold time.Duration) bool {
	if !truth.DeclaredOn || truth.LastFrameAt.IsZero() {
		return false
	}

	return now.Sub(truth.LastFrameAt) > threshold
}

// Describe renders the vision status sent to the model with the opening
// utterance.
func Describe(truth Truth, now time.Time, window time.Duration) string {
	switch {
	case !truth.DeclaredOn:
		return "Camera is OFF. You cannot see anything."
	case Available(truth, now, window):
		return "Camera is ON and live video is arriving."
	default:
		return "Camera is ON but no recent video has arrived. You cannot see anything yet."
	}
}
