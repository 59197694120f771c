package apperrors

import "errors"

var (
	// ErrNoRefinedQuestion signals a broken refinement contract: after both
	// fallback paths the conversation machine still has no analytical
	// question to hand to generation. Not recoverable.
	ErrNoRefinedQuestion = errors.New("no refined question returned")

	// ErrMissingResource indicates a required startup document (schema map,
	// rules document) was not found.
	ErrMissingResource = errors.New("required resource missing")

	ErrNotFound = errors.New("not found")
)
