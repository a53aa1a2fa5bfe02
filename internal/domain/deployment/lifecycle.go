package deployment

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned for edges the state machine does not have.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	// Err is set on transitions to Failed.
	Err error
}

// Lifecycle tracks the state of a single run. It is not safe for concurrent use.
type Lifecycle struct {
	state   State
	history []Transition
	err     error
	now     func() time.Time
}

// NewLifecycle returns a lifecycle in Idle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		state: Idle,
		now:   time.Now,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Err returns the cause recorded by Fail.
func (l *Lifecycle) Err() error {
	return l.err
}

// History returns a copy of the recorded transitions.
func (l *Lifecycle) History() []Transition {
	return append([]Transition(nil), l.history...)
}

// Path returns the visited states, starting with Idle.
func (l *Lifecycle) Path() []State {
	path := make([]State, 0, len(l.history)+1)
	path = append(path, Idle)

	for _, t := range l.history {
		path = append(path, t.To)
	}

	return path
}

// Advance moves to the given state if the edge exists.
func (l *Lifecycle) Advance(to State) error {
	if to == Failed {
		return fmt.Errorf("%w: use Fail to enter %s", ErrInvalidTransition, Failed)
	}

	return l.move(to, nil)
}

// Fail moves to Failed and records cause. It is a no-op on terminal states.
func (l *Lifecycle) Fail(cause error) {
	if l.state.Terminal() {
		return
	}

	_ = l.move(Failed, cause)
	l.err = cause
}

func (l *Lifecycle) move(to State, cause error) error {
	if !CanTransition(l.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, to)
	}

	l.history = append(l.history, Transition{
		From: l.state,
		To:   to,
		At:   l.now(),
		Err:  cause,
	})
	l.state = to

	return nil
}
