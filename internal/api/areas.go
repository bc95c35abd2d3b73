package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-draw/internal/service"
)

type AreaOutput struct {
	Body service.Area
}

func (h *APIHandler) ListAreas(ctx context.Context, input *struct{}) (*struct{ Body []service.Area }, error) {
	return &struct{ Body []service.Area }{Body: h.svc.Areas.List()}, nil
}

func (h *APIHandler) CreateArea(ctx context.Context, input *struct{ Body service.Area }) (*AreaOutput, error) {
	area, err := h.svc.Areas.Create(input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &AreaOutput{Body: area}, nil
}

func (h *APIHandler) GetArea(ctx context.Context, input *IDInput) (*AreaOutput, error) {
	area, ok := h.svc.Areas.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("area not found")
	}
	return &AreaOutput{Body: area}, nil
}

func (h *APIHandler) DeleteArea(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Areas.Delete(input.ID); err != nil {
		return nil, apiError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Area deleted"}}, nil
}
