// Package listing holds the property records searched within a drawn
// boundary: a versioned record decoder and a DuckDB-backed index.
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joeblew999/plat-draw/internal/geo"
)

var (
	ErrUnknownSchema = errors.New("unknown listing schema")
	ErrInvalidRecord = errors.New("invalid listing record")
)

// Record is the canonical listing, whatever schema it arrived in.
type Record struct {
	ID        string       `json:"id" doc:"Listing ID" example:"mnl-000123"`
	Title     string       `json:"title" doc:"Headline"`
	Price     float64      `json:"price" minimum:"0" doc:"Asking price"`
	Currency  string       `json:"currency,omitempty" doc:"ISO 4217 currency code" example:"PHP"`
	Bedrooms  int          `json:"bedrooms" minimum:"0" doc:"Bedroom count"`
	Bathrooms float64      `json:"bathrooms" minimum:"0" doc:"Bathroom count (halves allowed)"`
	Location  geo.GeoPoint `json:"location" doc:"Property position"`
	Address   string       `json:"address,omitempty" doc:"Street address"`
	Schema    int          `json:"schema" enum:"1,2" doc:"Schema version the record was decoded from"`
}

// v1 is the original flat feed format.
type v1 struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Price   float64  `json:"price"`
	Beds    int      `json:"beds"`
	Baths   float64  `json:"baths"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
}

// v2 nests pricing, rooms and location.
type v2 struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Pricing struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"pricing"`
	Rooms struct {
		Bedrooms  int     `json:"bedrooms"`
		Bathrooms float64 `json:"bathrooms"`
	} `json:"rooms"`
	Location *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Address   string   `json:"address"`
	} `json:"location"`
}

// envelope carries the discriminator. Records without schemaVersion are
// v2 when they have a nested location and v1 otherwise.
type envelope struct {
	SchemaVersion *int            `json:"schemaVersion"`
	Location      json.RawMessage `json:"location"`
}

// Parse decodes one record in any supported schema.
func Parse(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	version := 1
	switch {
	case env.SchemaVersion != nil:
		version = *env.SchemaVersion
	case len(env.Location) > 0 && !bytes.Equal(env.Location, []byte("null")):
		version = 2
	}

	var (
		rec Record
		err error
	)
	switch version {
	case 1:
		rec, err = parseV1(data)
	case 2:
		rec, err = parseV2(data)
	default:
		return Record{}, fmt.Errorf("%w: version %d", ErrUnknownSchema, version)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, rec.Validate()
}

// ParseAll decodes a JSON array of records, stopping at the first bad one.
func ParseAll(data []byte) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %w", ErrInvalidRecord, err)
	}
	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseV1(data []byte) (Record, error) {
	var r v1
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: v1: %w", ErrInvalidRecord, err)
	}
	if r.Lat == nil || r.Lng == nil {
		return Record{}, fmt.Errorf("%w: v1 %q: missing lat/lng", ErrInvalidRecord, r.ID)
	}
	return Record{
		ID:        r.ID,
		Title:     r.Title,
		Price:     r.Price,
		Bedrooms:  r.Beds,
		Bathrooms: r.Baths,
		Location:  geo.GeoPoint{Lat: *r.Lat, Lng: *r.Lng},
		Address:   r.Address,
		Schema:    1,
	}, nil
}

func parseV2(data []byte) (Record, error) {
	var r v2
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: v2: %w", ErrInvalidRecord, err)
	}
	if r.Location == nil || r.Location.Latitude == nil || r.Location.Longitude == nil {
		return Record{}, fmt.Errorf("%w: v2 %q: missing location", ErrInvalidRecord, r.ID)
	}
	return Record{
		ID:        r.ID,
		Title:     r.Title,
		Price:     r.Pricing.Amount,
		Currency:  strings.ToUpper(r.Pricing.Currency),
		Bedrooms:  r.Rooms.Bedrooms,
		Bathrooms: r.Rooms.Bathrooms,
		Location:  geo.GeoPoint{Lat: *r.Location.Latitude, Lng: *r.Location.Longitude},
		Address:   r.Location.Address,
		Schema:    2,
	}, nil
}

// Validate checks the canonical invariants shared by every schema.
func (r Record) Validate() error {
	var errs []string
	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, "id is required")
	}
	if r.Location.Lat < -90 || r.Location.Lat > 90 {
		errs = append(errs, fmt.Sprintf("latitude %g out of range", r.Location.Lat))
	}
	if r.Location.Lng < -180 || r.Location.Lng > 180 {
		errs = append(errs, fmt.Sprintf("longitude %g out of range", r.Location.Lng))
	}
	if r.Price < 0 {
		errs = append(errs, "price is negative")
	}
	if r.Bedrooms < 0 || r.Bathrooms < 0 {
		errs = append(errs, "room counts are negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidRecord, r.ID, strings.Join(errs, "; "))
	}
	return nil
}
