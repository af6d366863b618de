package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Turn is one finalized span of conversation: whatever the user and the
// model said between two turn-complete boundaries.
type Turn struct {
	ID          string
	User        string
	Model       string
	CompletedAt time.Time
}

// Accumulator collects partial transcript fragments for the current turn.
// Fragments are appended in delivery order; no ordering is enforced
// between user and model fragments.
//
// Not safe for concurrent use: the session dispatch loop is the only
// caller.
type Accumulator struct {
	user    strings.Builder
	model   strings.Builder
	history []Turn
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AppendUser appends a user transcript fragment to the current turn
func (a *Accumulator) AppendUser(text string) {
	a.user.WriteString(text)
}

// AppendModel appends a model transcript fragment to the current turn
func (a *Accumulator) AppendModel(text string) {
	a.model.WriteString(text)
}

// User returns the accumulated user text for the current turn
func (a *Accumulator) User() string {
	return a.user.String()
}

// Model returns the accumulated model text for the current turn
func (a *Accumulator) Model() string {
	return a.model.String()
}

// CompleteTurn flushes both accumulators into an immutable turn record and
// resets them for the next turn.
func (a *Accumulator) CompleteTurn() Turn {
	turn := Turn{
		ID:          uuid.New().String(),
		User:        a.user.String(),
		Model:       a.model.String(),
		CompletedAt: time.Now(),
	}
	a.user.Reset()
	a.model.Reset()
	a.history = append(a.history, turn)
	return turn
}

// History returns all finalized turns in completion order
func (a *Accumulator) History() []Turn {
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}
