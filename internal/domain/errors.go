package domain

import "errors"

var (
	ErrInternal = errors.New("internal error")
)

var (
	ErrEmptyArtifact       = errors.New("empty artifact")
	ErrArtifactTooLong     = errors.New("artifact too long")
	ErrInvalidArtifactType = errors.New("invalid artifact type")
	ErrInvalidThreshold    = errors.New("threshold must be between 0 and 100")
)

var (
	ErrInsufficientHistory = errors.New("need at least 2 iterations to compare")
	ErrInvalidIteration    = errors.New("invalid iteration")
	ErrNoAnalysis          = errors.New("no analysis yet")
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrEmptySessionID     = errors.New("empty session id")
	ErrMissingResult      = errors.New("iteration record has no result")
	ErrDuplicateIteration = errors.New("iteration already archived")
)

var (
	ErrInvalidStory = errors.New("invalid user story")
	ErrNoStories    = errors.New("no stories generated")
)
