package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-draw/internal/humastar"
	"github.com/joeblew999/plat-draw/internal/listing"
)

type ListingStatsBody struct {
	Count int `json:"count" doc:"Indexed listings"`
}

type ImportBody struct {
	Imported int `json:"imported" doc:"Records upserted by this request"`
	Count    int `json:"count" doc:"Indexed listings after the import"`
}

type ImportInput struct {
	RawBody []byte `contentType:"application/json" doc:"JSON array of v1 or v2 listing records"`
}

type SearchInput struct {
	IDInput
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"20" doc:"Page size"`
}

type TileInput struct {
	Z uint32 `path:"z" maximum:"22" doc:"Zoom"`
	X uint32 `path:"x" doc:"Tile column"`
	Y uint32 `path:"y" doc:"Tile row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

func (h *APIHandler) ListingStats(ctx context.Context, input *struct{}) (*struct{ Body ListingStatsBody }, error) {
	store, err := h.listings()
	if err != nil {
		return nil, err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("count listings", err)
	}
	return &struct{ Body ListingStatsBody }{Body: ListingStatsBody{Count: n}}, nil
}

// ImportListings decodes a mixed-schema batch and upserts it.
func (h *APIHandler) ImportListings(ctx context.Context, input *ImportInput) (*struct{ Body ImportBody }, error) {
	store, err := h.listings()
	if err != nil {
		return nil, err
	}
	recs, err := listing.ParseAll(input.RawBody)
	if err != nil {
		return nil, apiError(err)
	}
	n, err := store.Upsert(ctx, recs)
	if err != nil {
		return nil, huma.Error500InternalServerError("import listings", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("count listings", err)
	}
	return &struct{ Body ImportBody }{Body: ImportBody{Imported: n, Count: total}}, nil
}

// SearchListings pages through every listing inside the session's boundary.
// Total counts all matches; listings.search_limit only bounds the map panel.
func (h *APIHandler) SearchListings(ctx context.Context, input *SearchInput) (*struct {
	Body humastar.PageBody[listing.Match]
}, error) {
	store, err := h.listings()
	if err != nil {
		return nil, err
	}
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	b := sess.Draw.Boundary()
	if b == nil {
		return nil, huma.Error409Conflict("session has no active boundary")
	}
	matches, err := store.Search(ctx, b, 0)
	if err != nil {
		return nil, huma.Error500InternalServerError("search listings", err)
	}
	return &struct {
		Body humastar.PageBody[listing.Match]
	}{Body: humastar.Page(matches, input.Offset, input.Limit)}, nil
}

// ListingTile serves listing points as a Mapbox vector tile for the map
// widget. Tiles without listings are 204.
func (h *APIHandler) ListingTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	store, err := h.listings()
	if err != nil {
		return nil, err
	}
	if input.Z > listing.MaxTileZoom || input.X >= 1<<input.Z || input.Y >= 1<<input.Z {
		return nil, huma.Error400BadRequest("tile out of range")
	}
	data, err := store.Tile(ctx, maptile.New(input.X, input.Y, maptile.Zoom(input.Z)))
	if err != nil {
		return nil, huma.Error500InternalServerError("encode tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

func (h *APIHandler) listings() (*listing.Store, error) {
	if h.svc.Listings == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	return h.svc.Listings, nil
}
