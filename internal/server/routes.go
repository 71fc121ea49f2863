// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/health"
	"github.com/artlens/artlens/pkg/types"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-modes",
		Method:      http.MethodGet,
		Path:        "/api/v1/modes",
		Summary:     "List search modes this server can answer",
		Tags:        []string{"search"},
	}, s.handleModes)

	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search artworks",
		Description: "Returns the nearest artworks to a free-text query, closest first. A blank query returns an empty list.",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{ref}",
		Summary:     "Fetch an artwork thumbnail",
		Tags:        []string{"images"},
	}, s.handleImage)
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string                    `json:"status" example:"ok" doc:"ok, or degraded when a model is cooling down"`
	Models map[string]health.Metrics `json:"models,omitempty" doc:"Embedding provider health by role"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

type modesOutput struct {
	Body struct {
		Modes []types.SearchMode `json:"modes"`
	}
}

type searchInput struct {
	Query string `query:"q" doc:"Free-text query"`
	Mode  string `query:"mode" default:"text" doc:"Search mode: text, vision or hybrid"`
	N     int    `query:"n" minimum:"0" maximum:"200" doc:"Result count, 0 for the default"`
}

// SearchBody is the JSON body of a search response.
type SearchBody struct {
	Query   string             `json:"query"`
	Mode    types.SearchMode   `json:"mode"`
	Results []types.ArtworkHit `json:"results"`
}

type searchOutput struct {
	Body SearchBody
}

type imageInput struct {
	Ref string `path:"ref" minLength:"1" doc:"IIIF image reference"`
}

type imageOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	out := &HealthResponse{Body: HealthBody{Status: "ok"}}
	if len(s.svc.Models) == 0 {
		return out, nil
	}
	out.Body.Models = make(map[string]health.Metrics, len(s.svc.Models))
	for role, m := range s.svc.Models {
		if m == nil {
			continue
		}
		h := m.Health()
		out.Body.Models[role] = h
		if !h.Available {
			out.Body.Status = "degraded"
		}
	}
	return out, nil
}

func (s *Server) handleModes(_ context.Context, _ *struct{}) (*modesOutput, error) {
	out := &modesOutput{}
	out.Body.Modes = s.svc.Search.Modes()
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	mode, err := types.ParseSearchMode(input.Mode)
	if err != nil {
		return nil, toHumaError(err)
	}

	hits, err := s.svc.Search.GetResults(ctx, input.Query, mode, input.N)
	if err != nil {
		slog.Warn("search failed", "mode", string(mode), "error", err)
		return nil, toHumaError(err)
	}

	out := &searchOutput{}
	out.Body = SearchBody{Query: strings.TrimSpace(input.Query), Mode: mode, Results: hits}
	return out, nil
}

func (s *Server) handleImage(ctx context.Context, input *imageInput) (*imageOutput, error) {
	if s.svc.Images == nil {
		return nil, huma.Error503ServiceUnavailable("image source not configured")
	}

	img, err := s.svc.Images.Fetch(ctx, input.Ref)
	if err != nil {
		slog.Debug("image fetch failed", "image_id", input.Ref, "error", err)
		return nil, toHumaError(err)
	}

	ct := img.MIMEType
	if ct == "" {
		ct = "image/jpeg"
	}
	return &imageOutput{
		ContentType:  ct,
		CacheControl: "public, max-age=86400",
		Body:         img.Data,
	}, nil
}

// toHumaError maps a coded error onto its HTTP status. Server-side
// messages are not echoed to clients.
func toHumaError(err error) error {
	status := artlenserr.HTTPStatus(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	return huma.NewError(status, msg)
}
