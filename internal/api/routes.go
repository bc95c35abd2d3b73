// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-draw/internal/geo"
	"github.com/joeblew999/plat-draw/internal/listing"
	"github.com/joeblew999/plat-draw/internal/service"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers. Listings is nil
// when the database could not be opened.
type Services struct {
	Sessions *service.SessionService
	Areas    *service.AreaService
	Listings *listing.Store
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Resource ID"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterSessions registers drawing session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	tags := huma.OperationTags("sessions")
	huma.Get(api, "/api/v1/sessions", h.ListSessions, tags)
	huma.Post(api, "/api/v1/sessions", h.CreateSession, tags, created)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, tags)
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, tags)
	huma.Post(api, "/api/v1/sessions/{id}/view", h.ReportView, tags)
	huma.Post(api, "/api/v1/sessions/{id}/pointer", h.SendPointer, tags)
	huma.Post(api, "/api/v1/sessions/{id}/draw", h.EnterDrawMode, tags)
	huma.Post(api, "/api/v1/sessions/{id}/cancel", h.CancelDraw, tags)
	huma.Post(api, "/api/v1/sessions/{id}/clear", h.ClearBoundary, tags)
	huma.Get(api, "/api/v1/sessions/{id}/boundary", h.GetBoundary, tags)
	huma.Post(api, "/api/v1/sessions/{id}/save", h.SaveBoundary, tags, created)
}

// RegisterAreas registers saved area CRUD routes.
func (h *APIHandler) RegisterAreas(api huma.API) {
	tags := huma.OperationTags("areas")
	huma.Get(api, "/api/v1/areas", h.ListAreas, tags)
	huma.Post(api, "/api/v1/areas", h.CreateArea, tags, created)
	huma.Get(api, "/api/v1/areas/{id}", h.GetArea, tags)
	huma.Delete(api, "/api/v1/areas/{id}", h.DeleteArea, tags)
}

// RegisterListings registers listing import and search routes.
func (h *APIHandler) RegisterListings(api huma.API) {
	tags := huma.OperationTags("listings")
	huma.Get(api, "/api/v1/listings", h.ListingStats, tags)
	huma.Post(api, "/api/v1/listings", h.ImportListings, tags)
	huma.Get(api, "/api/v1/sessions/{id}/listings", h.SearchListings, tags)
	huma.Get(api, "/api/v1/listings/tiles/{z}/{x}/{y}", h.ListingTile, tags)
}

func created(o *huma.Operation) { o.DefaultStatus = http.StatusCreated }

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// apiError maps service errors onto HTTP problems.
func apiError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrAreaNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrAreaExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrSessionLimit):
		return huma.Error429TooManyRequests(err.Error())
	case errors.Is(err, geo.ErrInsufficientVertices),
		errors.Is(err, listing.ErrInvalidRecord),
		errors.Is(err, listing.ErrUnknownSchema):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
