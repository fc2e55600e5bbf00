// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotReadyToTrain is returned when a train step is requested before
	// both label quotas are met.
	ErrNotReadyToTrain = errors.New("not ready to train")

	// ErrTrainingInProgress is returned when a write arrives while a train
	// step for the same project is outstanding.
	ErrTrainingInProgress = errors.New("training in progress")

	// ErrComplete is returned for writes against a completed project.
	ErrComplete = errors.New("triage is complete")

	// ErrEarlyCompletion is returned when a manual stop is requested before
	// any train step has committed.
	ErrEarlyCompletion = errors.New("cannot complete before the first training round")

	// ErrUnknownCitation is returned when a label names a citation the
	// project does not hold.
	ErrUnknownCitation = errors.New("unknown citation")
)

// ValidationError reports a malformed train request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid training request: " + strings.Join(e.Problems, "; ")
}

// TrainingFailure reports a train step that produced no commit because the
// scoring model failed, timed out, or its result could not be stored. The
// selection that was submitted is still in place, so the same step can be
// retried without relabeling.
type TrainingFailure struct {
	Iteration     int
	RelevantIDs   []string
	IrrelevantIDs []string
	Timeout       bool
	Err           error
}

func (e *TrainingFailure) Error() string {
	cause := "failed"
	if e.Timeout {
		cause = "timed out"
	}
	return fmt.Sprintf("training iteration %d %s: %v", e.Iteration, cause, e.Err)
}

func (e *TrainingFailure) Unwrap() error { return e.Err }
