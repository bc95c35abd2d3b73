package service

import (
	"errors"
	"testing"

	"github.com/joeblew999/plat-draw/internal/geo"
)

var triangle = []geo.GeoPoint{
	{Lat: 14.55, Lng: 121.02},
	{Lat: 14.56, Lng: 121.03},
	{Lat: 14.55, Lng: 121.04},
}

func TestAreaCreateDerivesGeometry(t *testing.T) {
	s := NewAreaService("")

	a, err := s.Create(Area{Name: "Makati CBD", Vertices: triangle})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "makati_cbd" {
		t.Errorf("id=%q", a.ID)
	}
	if a.Geometry == nil {
		t.Fatal("geometry not derived")
	}
	want := geo.GeoPoint{Lat: 14.555, Lng: 121.03}
	if d := geo.Distance(a.Geometry.Center, want); d > 0.01 {
		t.Errorf("center=%v, want %v", a.Geometry.Center, want)
	}
	if a.Vertices[0] != a.Vertices[len(a.Vertices)-1] {
		t.Error("ring not closed")
	}

	// client-supplied geometry is replaced
	bogus := geo.Geometry{Radius: 1}
	b, err := s.Create(Area{Name: "other", Vertices: triangle, Geometry: &bogus})
	if err != nil {
		t.Fatal(err)
	}
	if b.Geometry.Radius == 1 {
		t.Error("client geometry kept")
	}
}

func TestAreaCreateRejects(t *testing.T) {
	s := NewAreaService("")
	if _, err := s.Create(Area{Name: "line", Vertices: triangle[:2]}); !errors.Is(err, geo.ErrInsufficientVertices) {
		t.Fatalf("err=%v, want ErrInsufficientVertices", err)
	}
	if _, err := s.Create(Area{Name: "!!!", Vertices: triangle}); err == nil {
		t.Fatal("empty id accepted")
	}
	if _, err := s.Create(Area{Name: "dup", Vertices: triangle}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(Area{Name: "dup", Vertices: triangle}); !errors.Is(err, ErrAreaExists) {
		t.Fatalf("err=%v, want ErrAreaExists", err)
	}
}

func TestAreaPersistence(t *testing.T) {
	dir := t.TempDir()
	s := NewAreaService(dir)
	if _, err := s.Create(Area{Name: "BGC", Vertices: triangle}); err != nil {
		t.Fatal(err)
	}

	reloaded := NewAreaService(dir)
	got, ok := reloaded.Get("bgc")
	if !ok {
		t.Fatal("area not persisted")
	}
	b, err := reloaded.Boundary("bgc")
	if err != nil {
		t.Fatal(err)
	}
	if b.Center() != got.Geometry.Center {
		t.Fatalf("rebuilt center %v, saved %v", b.Center(), got.Geometry.Center)
	}

	if err := reloaded.Delete("bgc"); err != nil {
		t.Fatal(err)
	}
	if len(NewAreaService(dir).List()) != 0 {
		t.Fatal("delete not persisted")
	}
	if err := reloaded.Delete("bgc"); !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("err=%v, want ErrAreaNotFound", err)
	}
	if _, err := reloaded.Boundary("bgc"); !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("err=%v, want ErrAreaNotFound", err)
	}
}
