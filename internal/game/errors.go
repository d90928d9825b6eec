package game

import (
	"errors"
	"fmt"

	"github.com/ztpublic/turtlesoup/internal/domain"
)

var (
	// ErrSessionNotFound means the operation addressed a session id absent
	// from the registry, including one already evicted by the reaper. It is
	// always surfaced; the store never silently substitutes the default
	// session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists means create was called with an id already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrQuestionNotFound means a feedback operation addressed a ledger
	// index outside the current window.
	ErrQuestionNotFound = errors.New("question not found")
)

// InvalidTransitionError reports an attempted lifecycle state change that
// violates the transition rules.
type InvalidTransitionError struct {
	From   domain.SessionState
	To     domain.SessionState
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
