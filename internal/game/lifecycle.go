package game

import (
	"github.com/ztpublic/turtlesoup/internal/domain"
)

// checkTransition enforces the session lifecycle rules for a bare state
// change. hasContent must reflect the puzzle content that will be in place
// when the transition lands, so callers that set content and transition in
// one operation check the pending content, not the stored one.
//
// Legal transitions:
//
//	NotStarted -> Started   requires puzzle content
//	any state  -> Ended     only via the end operation
//	any state  -> NotStarted only via the reset operation
//
// Everything else fails loudly rather than silently clamping. Started ->
// Started in particular always fails, which guards against double-start
// races from duplicate client submissions.
func checkTransition(from, to domain.SessionState, hasContent bool) error {
	if !to.Valid() {
		return &InvalidTransitionError{From: from, To: to, Reason: "unknown target state"}
	}

	switch to {
	case domain.StateStarted:
		if from == domain.StateStarted {
			return &InvalidTransitionError{From: from, To: to, Reason: "already started"}
		}
		if from == domain.StateEnded {
			return &InvalidTransitionError{From: from, To: to, Reason: "ended session must be reset first"}
		}
		if !hasContent {
			return &InvalidTransitionError{From: from, To: to, Reason: "missing puzzle content"}
		}
		return nil
	case domain.StateEnded:
		return &InvalidTransitionError{From: from, To: to, Reason: "use the end operation"}
	case domain.StateNotStarted:
		return &InvalidTransitionError{From: from, To: to, Reason: "use the reset operation"}
	}
	return nil
}
