package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-draw/internal/draw"
	"github.com/joeblew999/plat-draw/internal/geo"
	"github.com/joeblew999/plat-draw/internal/humastar"
	"github.com/joeblew999/plat-draw/internal/remote"
	"github.com/joeblew999/plat-draw/internal/service"
)

var (
	drawAction     = humastar.ActionDef{Rel: "draw", Pattern: "/api/v1/sessions/%s/draw", Method: http.MethodPost, Title: "Draw an area"}
	cancelAction   = humastar.ActionDef{Rel: "cancel", Pattern: "/api/v1/sessions/%s/cancel", Method: http.MethodPost, Title: "Cancel drawing"}
	clearAction    = humastar.ActionDef{Rel: "clear", Pattern: "/api/v1/sessions/%s/clear", Method: http.MethodPost, Title: "Clear area"}
	saveAction     = humastar.ActionDef{Rel: "save", Pattern: "/api/v1/sessions/%s/save", Method: http.MethodPost, Title: "Save area"}
	listingsAction = humastar.ActionDef{Rel: "listings", Pattern: "/api/v1/sessions/%s/listings", Method: http.MethodGet, Title: "Listings in area"}
)

// sessionActions lists what a session offers in each lifecycle state.
var sessionActions = map[string][]humastar.ActionDef{
	draw.Idle.String():           {drawAction},
	draw.Drawing.String():        {cancelAction},
	draw.BoundaryActive.String(): {drawAction, clearAction, saveAction, listingsAction},
}

// SessionBody is a session with state-dependent action links.
type SessionBody struct {
	service.SessionInfo
}

func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, sessionActions[b.State]...)
}

type SessionOutput struct {
	Body SessionBody
}

type CreateSessionBody struct {
	AreaID   string         `json:"areaId,omitempty" doc:"Saved area to start from"`
	Vertices []geo.GeoPoint `json:"vertices,omitempty" doc:"Initial boundary vertices"`
}

type CreateSessionInput struct {
	Body *CreateSessionBody `required:"false"`
}

type ViewInput struct {
	IDInput
	Body remote.Report
}

type PointerInput struct {
	IDInput
	Body struct {
		Events []draw.PointerEvent `json:"events" doc:"Pointer samples in order"`
	}
}

type SaveInput struct {
	IDInput
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"100" doc:"Display name for the saved area" example:"Makati CBD"`
	}
}

type BoundaryOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []SessionBody }, error) {
	infos := h.svc.Sessions.List()
	out := make([]SessionBody, len(infos))
	for i, info := range infos {
		out[i] = SessionBody{info}
	}
	return &struct{ Body []SessionBody }{Body: out}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *CreateSessionInput) (*SessionOutput, error) {
	var initial *geo.Boundary
	if req := input.Body; req != nil {
		var err error
		switch {
		case req.AreaID != "":
			initial, err = h.svc.Areas.Boundary(req.AreaID)
		case len(req.Vertices) > 0:
			initial, err = geo.NewBoundary(req.Vertices)
		}
		if err != nil {
			return nil, apiError(err)
		}
	}

	sess, err := h.svc.Sessions.Create(initial)
	if err != nil {
		return nil, apiError(err)
	}
	return sessionOutput(sess), nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return sessionOutput(sess), nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Sessions.Close(input.ID); err != nil {
		return nil, apiError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session closed"}}, nil
}

// ReportView feeds the browser's viewport report into the session map.
func (h *APIHandler) ReportView(ctx context.Context, input *ViewInput) (*struct{}, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	sess.Map.Report(input.Body)
	return nil, nil
}

// SendPointer forwards pointer samples from the capture overlay.
func (h *APIHandler) SendPointer(ctx context.Context, input *PointerInput) (*SessionOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	for _, ev := range input.Body.Events {
		sess.Draw.HandlePointer(ev)
	}
	return sessionOutput(sess), nil
}

func (h *APIHandler) EnterDrawMode(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	if err := h.svc.Sessions.EnterDrawMode(input.ID); err != nil {
		return nil, apiError(err)
	}
	return h.GetSession(ctx, input)
}

func (h *APIHandler) CancelDraw(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	sess.Draw.Cancel()
	return sessionOutput(sess), nil
}

func (h *APIHandler) ClearBoundary(ctx context.Context, input *IDInput) (*SessionOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	sess.Draw.Clear()
	return sessionOutput(sess), nil
}

// GetBoundary returns the active boundary as a GeoJSON feature.
func (h *APIHandler) GetBoundary(ctx context.Context, input *IDInput) (*BoundaryOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	b := sess.Draw.Boundary()
	if b == nil {
		return nil, huma.Error404NotFound("session has no active boundary")
	}
	data, err := b.Feature().MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encode boundary", err)
	}
	return &BoundaryOutput{ContentType: "application/geo+json", Body: data}, nil
}

// SaveBoundary stores the active boundary as a named area.
func (h *APIHandler) SaveBoundary(ctx context.Context, input *SaveInput) (*AreaOutput, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	b := sess.Draw.Boundary()
	if b == nil {
		return nil, huma.Error409Conflict("session has no active boundary")
	}
	area, err := h.svc.Areas.Create(service.Area{Name: input.Body.Name, Vertices: b.Vertices()})
	if err != nil {
		return nil, apiError(err)
	}
	return &AreaOutput{Body: area}, nil
}

func sessionOutput(sess *service.Session) *SessionOutput {
	return &SessionOutput{Body: SessionBody{sess.Info()}}
}
