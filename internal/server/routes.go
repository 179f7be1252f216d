// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/OlesyaDud/smart-notes/internal/index"
	"github.com/OlesyaDud/smart-notes/internal/notes"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
	"github.com/OlesyaDud/smart-notes/pkg/health"
)

// Notes is the slice of notes.Store the API serves.
type Notes interface {
	Add(ctx context.Context, text string) (string, error)
	Search(ctx context.Context, query string, topK int) ([]notes.Result, error)
	Stats(ctx context.Context) (index.Stats, error)
}

// HealthReporter reports upstream health, e.g. embedding.Monitored.
type HealthReporter interface {
	Health() health.Metrics
}

// Services are the dependencies behind the API routes. Health is optional.
type Services struct {
	Notes  Notes
	Health HealthReporter
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "add-note",
		Method:        http.MethodPost,
		Path:          "/api/v1/notes",
		Summary:       "Add a note",
		Tags:          []string{"notes"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-notes",
		Method:      http.MethodPost,
		Path:        "/api/v1/notes/search",
		Summary:     "Search notes by meaning",
		Tags:        []string{"notes"},
	}, s.handleSearchNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "index-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Index statistics",
		Tags:        []string{"system"},
	}, s.handleStats)
}

type addNoteInput struct {
	Body struct {
		Text string `json:"text" doc:"Note text; surrounding whitespace is trimmed"`
	}
}

type addNoteOutput struct {
	Body struct {
		ID string `json:"id" example:"note-0" doc:"Assigned note id"`
	}
}

type searchNotesInput struct {
	Body struct {
		Query string `json:"query" doc:"Free-text query"`
		TopK  int    `json:"top_k,omitempty" minimum:"0" doc:"Maximum results; 0 uses the server default"`
	}
}

type searchNotesOutput struct {
	Body struct {
		Results []notes.Result `json:"results"`
	}
}

type statsOutput struct {
	Body struct {
		TotalCount int64  `json:"total_count"`
		Dimension  int    `json:"dimension"`
		Metric     string `json:"metric"`
	}
}

func (s *Server) handleAddNote(ctx context.Context, input *addNoteInput) (*addNoteOutput, error) {
	id, err := s.services.Notes.Add(ctx, input.Body.Text)
	if err != nil {
		return nil, toHTTPError("adding note", err)
	}
	out := &addNoteOutput{}
	out.Body.ID = id
	return out, nil
}

func (s *Server) handleSearchNotes(ctx context.Context, input *searchNotesInput) (*searchNotesOutput, error) {
	results, err := s.services.Notes.Search(ctx, input.Body.Query, input.Body.TopK)
	if err != nil {
		return nil, toHTTPError("searching notes", err)
	}
	out := &searchNotesOutput{}
	out.Body.Results = results
	if out.Body.Results == nil {
		out.Body.Results = []notes.Result{}
	}
	return out, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	st, err := s.services.Notes.Stats(ctx)
	if err != nil {
		return nil, toHTTPError("reading index stats", err)
	}
	out := &statsOutput{}
	out.Body.TotalCount = st.TotalCount
	out.Body.Dimension = st.Dimension
	out.Body.Metric = string(st.Metric)
	return out, nil
}

// toHTTPError maps a store error to a status by kind: validation 400,
// embedding or storage 502 (504 on timeout), anything else 500.
// Only validation messages reach the client verbatim.
func toHTTPError(op string, err error) error {
	kind := notes.KindOf(err)
	code := snerr.CodeOf(err)

	switch kind {
	case notes.KindValidation:
		return huma.Error400BadRequest(err.Error())
	case notes.KindEmbedding, notes.KindStorage:
		slog.Warn("request failed upstream", "op", op, "kind", kind.String(), "code", code, "error", err)
		msg := fmt.Sprintf("%s: %s backend unavailable (%s)", op, kind, code)
		if snerr.IsTimeout(err) {
			return huma.Error504GatewayTimeout(msg)
		}
		return huma.Error502BadGateway(msg)
	default:
		slog.Error("request failed", "op", op, "kind", kind.String(), "code", code, "error", err)
		return huma.Error500InternalServerError(op + ": internal error")
	}
}
