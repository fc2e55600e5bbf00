// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/triage-engine/internal/export"
	"github.com/pdiddy/triage-engine/internal/ingest"
	"github.com/pdiddy/triage-engine/internal/keywords"
	"github.com/pdiddy/triage-engine/internal/ranking"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// ProjectResponse is the body of GET /projects/:id.
type ProjectResponse struct {
	triage.Progress
	Name     string              `json:"name"`
	Keywords types.KeywordFilter `json:"keywords"`
}

// LabelRequest toggles one citation's label.
type LabelRequest struct {
	CitationID string      `json:"citationId"`
	Label      types.Label `json:"label"`
}

// TrainRequest names the citations to train on. Empty lists train on the
// pending selection.
type TrainRequest struct {
	RelevantIDs   []string `json:"relevantIds"`
	IrrelevantIDs []string `json:"irrelevantIds"`
}

// TrainResponse reports the iteration and status after a commit.
type TrainResponse struct {
	Iteration int          `json:"iteration"`
	Status    types.Status `json:"status"`
}

// handleCreateProject ingests the request body as a citation file.
func (s *Server) handleCreateProject(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return writeError(c, badRequest("name query parameter is required"))
	}
	format, err := requestFormat(c)
	if err != nil {
		return writeError(c, badRequest(err.Error()))
	}
	citations, err := ingest.Parse(c.Request().Body, format)
	if err != nil {
		return writeError(c, err)
	}

	ctrl, err := s.projects.Create(c.Request().Context(), session(c), name, citations)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ProjectResponse{
		Progress: ctrl.Progress(),
		Name:     name,
		Keywords: ctrl.Keywords(),
	})
}

// requestFormat takes the citation format from ?format= or the content type.
func requestFormat(c echo.Context) (ingest.Format, error) {
	if f := c.QueryParam("format"); f != "" {
		return ingest.ParseFormat(f)
	}
	ct := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.Contains(ct, "json"):
		return ingest.FormatJSON, nil
	case strings.Contains(ct, "yaml"):
		return ingest.FormatYAML, nil
	default:
		return ingest.FormatCSV, nil
	}
}

func (s *Server) handleListProjects(c echo.Context) error {
	list, err := s.projects.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetProject(c echo.Context) error {
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ProjectResponse{
		Progress: ctrl.Progress(),
		Name:     ctrl.Snapshot().Name,
		Keywords: ctrl.Keywords(),
	})
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.projects.Delete(c.Request().Context(), session(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleToggleLabel(c echo.Context) error {
	var req LabelRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, badRequest("invalid request body"))
	}
	if req.CitationID == "" {
		return writeError(c, badRequest("citationId is required"))
	}
	if req.Label != types.LabelRelevant && req.Label != types.LabelIrrelevant {
		return writeError(c, badRequest(fmt.Sprintf("label must be %s or %s", types.LabelRelevant, types.LabelIrrelevant)))
	}
	ctx := c.Request().Context()
	ctrl, err := s.projects.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if err := ctrl.Toggle(ctx, session(c), req.CitationID, req.Label); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Progress())
}

func (s *Server) handleTrain(c echo.Context) error {
	var req TrainRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, badRequest("invalid request body"))
	}
	ctx := c.Request().Context()
	ctrl, err := s.projects.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	res, err := ctrl.TrainWith(ctx, session(c), req.RelevantIDs, req.IrrelevantIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, TrainResponse{Iteration: res.Iteration, Status: res.Status})
}

func (s *Server) handleComplete(c echo.Context) error {
	ctx := c.Request().Context()
	ctrl, err := s.projects.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if err := ctrl.Complete(ctx, session(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Progress())
}

func (s *Server) handleListCitations(c echo.Context) error {
	order, err := ranking.ParseOrder(c.QueryParam("sort"))
	if err != nil {
		return writeError(c, badRequest(err.Error()))
	}
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		return writeError(c, err)
	}
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.View().List(order, limit))
}

func (s *Server) handleNextBatch(c echo.Context) error {
	size, err := intParam(c, "size", s.config.PageSize)
	if err != nil {
		return writeError(c, err)
	}
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.NextBatch(size))
}

func (s *Server) handleGetPage(c echo.Context) error {
	number, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return writeError(c, badRequest(fmt.Sprintf("invalid page number %q", c.Param("n"))))
	}
	size, err := intParam(c, "size", s.config.PageSize)
	if err != nil {
		return writeError(c, err)
	}
	if size < 1 {
		return writeError(c, badRequest(fmt.Sprintf("invalid size %q: must be at least 1", c.QueryParam("size"))))
	}
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	page, err := ctrl.View().GetPage(number, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleHistory(c echo.Context) error {
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.History())
}

func (s *Server) handleGetKeywords(c echo.Context) error {
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Keywords())
}

func (s *Server) handleSetKeywords(c echo.Context) error {
	var kf types.KeywordFilter
	if err := c.Bind(&kf); err != nil {
		return writeError(c, badRequest("invalid request body"))
	}
	kf, err := s.projects.SetKeywords(c.Request().Context(), session(c), c.Param("id"), kf)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, kf)
}

func (s *Server) handleSuggestKeywords(c echo.Context) error {
	limit, err := intParam(c, "max", keywords.DefaultMax)
	if err != nil {
		return writeError(c, err)
	}
	kf, err := s.projects.SuggestKeywords(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, kf)
}

func (s *Server) handleExport(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return writeError(c, badRequest(err.Error()))
	}
	ctrl, err := s.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	// Buffer so a failed export still gets a JSON error body.
	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, format, session(c), ctrl.Snapshot()); err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", ctrl.ID()+"."+string(format)))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// intParam parses a non-negative integer query parameter.
func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return n, nil
}
