// Package mapview contains the Datastar SSE handlers driving a browser map:
// the command stream the map widget executes and the boundary panel
// actions.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-draw/internal/humastar"
	"github.com/joeblew999/plat-draw/internal/listing"
	"github.com/joeblew999/plat-draw/internal/remote"
	"github.com/joeblew999/plat-draw/internal/service"
)

// Handler serves the map view of drawing sessions.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	areas    *service.AreaService
	listings *listing.Store
	limit    int
	log      *slog.Logger
}

// New creates a map view handler. listings may be nil, in which case
// listing searches report an error to the page.
func New(sessions *service.SessionService, areas *service.AreaService, listings *listing.Store, renderer *humastar.Renderer, searchLimit int, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		areas:    areas,
		listings: listings,
		limit:    searchLimit,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("mapview")
	huma.Get(api, "/api/v1/mapview/{id}/stream", h.Stream, tags)
	huma.Post(api, "/api/v1/mapview/{id}/draw", h.Draw, tags)
	huma.Post(api, "/api/v1/mapview/{id}/cancel", h.Cancel, tags)
	huma.Post(api, "/api/v1/mapview/{id}/clear", h.Clear, tags)
	huma.Post(api, "/api/v1/mapview/{id}/listings", h.Listings, tags, optionalSignals)
	huma.Post(api, "/api/v1/mapview/{id}/save", h.Save, tags, optionalSignals)
}

// optionalSignals accepts actions posted without a signals body.
func optionalSignals(o *huma.Operation) {
	o.RequestBody = &huma.RequestBody{
		Required: false,
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Type: huma.TypeObject}},
		},
	}
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// ActionInput carries the page signals posted with a panel action.
type ActionInput struct {
	SessionInput
	humastar.SignalsInput
}

// Stream attaches the browser to the session map. Map commands arrive as
// "map-command" events; the boundary panel is re-patched on every session
// change.
func (h *Handler) Stream(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	cmds, detach, err := sess.Map.Attach()
	if err != nil {
		if errors.Is(err, remote.ErrAttached) {
			return nil, huma.Error409Conflict("session already has a map attached")
		}
		return nil, huma.Error410Gone("session closed")
	}
	bus := h.sessions.Bus()
	events := bus.Subscribe()
	log := h.log.With("session", sess.ID)

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			defer detach()
			defer bus.Unsubscribe(events)
			log.Debug("map attached")

			sse := humastar.NewSSE(humaCtx)
			h.patchPanel(sse, sess)

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					log.Debug("map detached")
					return
				case cmd, ok := <-cmds:
					if !ok {
						return
					}
					if err := sse.DispatchCustomEvent("map-command", cmd); err != nil {
						log.Warn("send map command", "op", cmd.Op, "error", err)
						return
					}
				case ev, ok := <-events:
					if !ok {
						return
					}
					if ev.Resource != service.ResourceSessions || ev.ID != sess.ID {
						continue
					}
					if ev.Action == "closed" {
						return
					}
					h.patchPanel(sse, sess)
				}
			}
		},
	}, nil
}

func (h *Handler) Draw(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	if err := h.sessions.EnterDrawMode(input.ID); err != nil {
		return nil, apiError(err)
	}
	return h.panel(input.ID)
}

func (h *Handler) Cancel(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	sess.Draw.Cancel()
	return h.panel(input.ID)
}

func (h *Handler) Clear(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	sess.Draw.Clear()
	return h.panel(input.ID)
}

// Listings renders the listings inside the active boundary into
// #listing-results. A positive listingLimit signal lowers the configured
// search limit.
func (h *Handler) Listings(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	limit := h.limit
	if n := signals.Int("listingLimit"); signals.Has("listingLimit") && n > 0 && (limit <= 0 || n < limit) {
		limit = n
	}
	return h.Handler.Stream(func(sse humastar.SSE) {
		b := sess.Draw.Boundary()
		if b == nil {
			sse.Error("Draw an area first")
			return
		}
		if h.listings == nil {
			sse.Error("Listing search is unavailable")
			return
		}
		matches, err := h.listings.Search(ctx, b, limit)
		if err != nil {
			h.log.Error("listing search failed", "session", sess.ID, "error", err)
			sse.Error("Listing search failed")
			return
		}
		items := make([]any, len(matches))
		for i, m := range matches {
			items[i] = m
		}
		sse.Patch(h.RenderList("listing-card", items, "No listings", "Nothing is listed inside this area."), "#listing-results")
		sse.Signals(map[string]any{"listingCount": len(matches), "error": ""})
	}), nil
}

// Save stores the active boundary as a named area. The name comes from the
// areaName signal.
func (h *Handler) Save(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(signals.String("areaName"))
	return h.Handler.Stream(func(sse humastar.SSE) {
		b := sess.Draw.Boundary()
		switch {
		case b == nil:
			sse.Error("Draw an area first")
			return
		case name == "":
			sse.Error("Name the area first")
			return
		case h.areas == nil:
			sse.Error("Saving areas is unavailable")
			return
		}
		area, err := h.areas.Create(service.Area{Name: name, Vertices: b.Vertices()})
		switch {
		case errors.Is(err, service.ErrAreaExists):
			sse.Error("An area with that name already exists")
			return
		case err != nil:
			h.log.Error("save area failed", "session", sess.ID, "error", err)
			sse.Error("Could not save the area")
			return
		}
		sse.Signals(map[string]any{"areaName": "", "error": ""})
		sse.Success(fmt.Sprintf("Saved %q", area.Name))
	}), nil
}

func (h *Handler) panel(id string) (*huma.StreamResponse, error) {
	sess, err := h.session(id)
	if err != nil {
		return nil, err
	}
	return h.Handler.Stream(func(sse humastar.SSE) {
		h.patchPanel(sse, sess)
	}), nil
}

// patchPanel re-renders the boundary panel and mirrors the session state
// into signals.
func (h *Handler) patchPanel(sse humastar.SSE, sess *service.Session) {
	info := sess.Info()
	html, err := h.Renderer.Render("boundary-panel", info)
	if err != nil {
		h.log.Error("render boundary panel", "session", sess.ID, "error", err)
		return
	}
	sse.Patch(html, "#boundary-panel")
	sse.Signals(map[string]any{
		"state":       info.State,
		"hasBoundary": info.Boundary != nil,
		"error":       info.LastError,
	})
}

func (h *Handler) session(id string) (*service.Session, error) {
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, apiError(err)
	}
	return sess, nil
}

func apiError(err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
