package listing

import (
	"context"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-draw/internal/geo"
)

// TileLayer is the vector tile layer holding listing points.
const TileLayer = "listings"

// MaxTileZoom is the deepest zoom tiles are served for.
const MaxTileZoom = 22

// Tile encodes the listings inside a web mercator tile as a gzipped Mapbox
// vector tile. An empty tile returns nil data.
func (s *Store) Tile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	bound := t.Bound()
	recs, err := s.inRect(ctx, geo.FromPoint(bound.Min), geo.FromPoint(bound.Max))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range recs {
		f := geojson.NewFeature(r.Location.Point())
		f.Properties["id"] = r.ID
		f.Properties["title"] = r.Title
		f.Properties["price"] = r.Price
		f.Properties["bedrooms"] = r.Bedrooms
		fc.Append(f)
	}

	layer := mvt.NewLayer(TileLayer, fc)
	// Project to tile coordinates (0-4096 extent)
	layer.ProjectToTile(t)
	return mvt.MarshalGzipped(mvt.Layers{layer})
}
