// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/triage-engine/internal/export"
	"github.com/pdiddy/triage-engine/internal/ingest"
	"github.com/pdiddy/triage-engine/internal/project"
	"github.com/pdiddy/triage-engine/internal/ranking"
	"github.com/pdiddy/triage-engine/internal/selection"
	"github.com/pdiddy/triage-engine/internal/triage"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// TrainingFailureResponse is returned when a train step produced no commit.
// The submitted selection is still pending and the step may be retried.
type TrainingFailureResponse struct {
	Error         string   `json:"error"`
	Iteration     int      `json:"iteration"`
	RelevantIDs   []string `json:"relevant_ids"`
	IrrelevantIDs []string `json:"irrelevant_ids"`
	Timeout       bool     `json:"timeout"`
}

// writeError maps domain errors to HTTP responses.
func writeError(c echo.Context, err error) error {
	var failure *triage.TrainingFailure
	if errors.As(err, &failure) {
		return c.JSON(http.StatusServiceUnavailable, TrainingFailureResponse{
			Error:         failure.Error(),
			Iteration:     failure.Iteration,
			RelevantIDs:   nonNil(failure.RelevantIDs),
			IrrelevantIDs: nonNil(failure.IrrelevantIDs),
			Timeout:       failure.Timeout,
		})
	}
	var invalid *triage.ValidationError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    invalid.Error(),
			Problems: invalid.Problems,
		})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, ErrorResponse{Error: fmt.Sprint(he.Message)})
	}
	return c.JSON(statusOf(err), ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case project.IsNotFound(err),
		errors.Is(err, ranking.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, selection.ErrConflictingSelection),
		errors.Is(err, selection.ErrCapacityExceeded),
		errors.Is(err, triage.ErrTrainingInProgress),
		errors.Is(err, triage.ErrComplete),
		errors.Is(err, triage.ErrEarlyCompletion),
		errors.Is(err, export.ErrEmptyExport):
		return http.StatusConflict
	case errors.Is(err, triage.ErrNotReadyToTrain),
		errors.Is(err, triage.ErrUnknownCitation),
		errors.Is(err, ingest.ErrEmpty),
		errors.Is(err, ingest.ErrMissingField),
		errors.Is(err, ingest.ErrDuplicateID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ranking.ErrInvalidPageSize):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
