package domain

import (
	"context"
	"time"
)

// Reading is the output of the NLP collaborator: an absolute VAD+CC estimate
// for a piece of text plus a confidence in [0,1].
type Reading struct {
	Vector     Vector
	Confidence float64
}

// Extractor turns raw text into a Reading. Implementations return ErrEmptySignal
// (or a low confidence) when the text carries no usable signal.
type Extractor interface {
	Extract(ctx context.Context, text string) (Reading, error)
}

// FrameCause tells why a frame was emitted.
type FrameCause string

const (
	CauseTranscript FrameCause = "transcript"
	CauseTick       FrameCause = "tick"
	CauseReset      FrameCause = "reset"
	CauseBaseline   FrameCause = "baseline"
)

// Frame is one emitted output: the vector to display and its rendered serial line.
type Frame struct {
	// Seq increases with every frame a pipeline produces.
	Seq       uint64     `json:"seq"`
	Vibe      Vector     `json:"vibe"`
	Line      string     `json:"line"`
	Anchor    *Match     `json:"anchor,omitempty"`
	Cause     FrameCause `json:"cause"`
	EmittedAt time.Time  `json:"emitted_at"`
}

// FrameEmitter delivers frames to an output collaborator (serial device, websocket, pub/sub).
// The pipeline calls Emit in frame order and expects it to return promptly.
type FrameEmitter interface {
	Emit(ctx context.Context, frame Frame) error
}

// BlenderState is a point-in-time copy of the momentum state.
type BlenderState struct {
	Baseline          Vector    `json:"baseline"`
	Momentum          Vector    `json:"momentum"`
	MomentumMagnitude float64   `json:"momentum_magnitude"`
	Displayed         Vector    `json:"displayed_vibe"`
	LastUpdate        time.Time `json:"last_update"`
}

// Snapshot is the status contract consumed by HTTP and monitoring collaborators.
type Snapshot struct {
	LastVibe          Vector    `json:"last_vibe"`
	Baseline          Vector    `json:"baseline"`
	Momentum          Vector    `json:"momentum"`
	MomentumMagnitude float64   `json:"momentum_magnitude"`
	Displayed         Vector    `json:"displayed_vibe"`
	LastUpdate        time.Time `json:"last_update"`
	NearestAnchor     *Match    `json:"nearest_anchor,omitempty"`
}

// StateStore checkpoints momentum state so a restart resumes where it left off.
type StateStore interface {
	SaveState(ctx context.Context, state BlenderState) error
	LoadState(ctx context.Context) (*BlenderState, bool, error)
}

// ClimateSource estimates the slow, long-term emotional climate of recent text.
type ClimateSource interface {
	Climate(ctx context.Context, text string) (Vector, error)
}
