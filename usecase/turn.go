package usecase

import (
	"fmt"
)

// TurnState represents how far a chat turn has progressed through the
// transcribe → chat → synthesize sequence.
type TurnState string

const (
	TurnReceived         TurnState = "received"
	TurnTranscribed      TurnState = "transcribed"
	TurnReplied          TurnState = "replied"
	TurnSynthesized      TurnState = "synthesized"
	TurnSynthesisSkipped TurnState = "synthesis_skipped"
	TurnDone             TurnState = "done"
)

// Stage identifies which step of a turn an error belongs to
type Stage string

const (
	StageValidate   Stage = "validate"
	StageTranscribe Stage = "transcribe"
	StageChat       Stage = "chat"
	StageSynthesize Stage = "synthesize"
	StagePersist    Stage = "persist"
)

// StageError wraps a failure with the stage it occurred in, so callers can
// always tell which backend or step failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps an error with its stage
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// transitions defines the legal state machine edges. Synthesis may be
// skipped (not requested, or failed after a successful chat) without
// discarding the reply.
var transitions = map[TurnState][]TurnState{
	TurnReceived:         {TurnTranscribed},
	TurnTranscribed:      {TurnReplied},
	TurnReplied:          {TurnSynthesized, TurnSynthesisSkipped},
	TurnSynthesized:      {TurnDone},
	TurnSynthesisSkipped: {TurnDone},
}

// Turn tracks one audio-in/reply-out exchange through its states
type Turn struct {
	state   TurnState
	history []TurnState
}

// NewTurn starts a turn in the Received state
func NewTurn() *Turn {
	return &Turn{
		state:   TurnReceived,
		history: []TurnState{TurnReceived},
	}
}

// State returns the current state
func (t *Turn) State() TurnState {
	return t.state
}

// History returns every state the turn has passed through, in order
func (t *Turn) History() []TurnState {
	out := make([]TurnState, len(t.history))
	copy(out, t.history)
	return out
}

// Advance moves the turn to the next state, rejecting illegal transitions
func (t *Turn) Advance(to TurnState) error {
	for _, allowed := range transitions[t.state] {
		if allowed == to {
			t.state = to
			t.history = append(t.history, to)
			return nil
		}
	}
	return fmt.Errorf("illegal turn transition %s -> %s", t.state, to)
}
