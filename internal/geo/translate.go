package geo

// ToGeo converts a pixel position on the overlay to a geographic coordinate
// using the frame's bounds and pixel size. Screen Y grows downward while
// latitude grows upward, so latitude is measured from the north edge.
func ToGeo(p ScreenPoint, f Frame) (GeoPoint, error) {
	if f.Width <= 0 || f.Height <= 0 || f.Bounds.IsZero() {
		return GeoPoint{}, ErrBoundsUnavailable
	}

	ne, sw := f.Bounds.NorthEast, f.Bounds.SouthWest
	lngPerPx := (ne.Lng - sw.Lng) / f.Width
	latPerPx := (ne.Lat - sw.Lat) / f.Height

	return GeoPoint{
		Lat: ne.Lat - p.Y*latPerPx,
		Lng: sw.Lng + p.X*lngPerPx,
	}, nil
}

// ConvertAll converts a drawn path in order, dropping points that cannot be
// converted.
func ConvertAll(path []ScreenPoint, f Frame) []GeoPoint {
	out := make([]GeoPoint, 0, len(path))
	for _, p := range path {
		g, err := ToGeo(p, f)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}
