package humastar

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
)

type itemBody struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func (b itemBody) Actions() []Action {
	if b.State != "open" {
		return nil
	}
	return ActionsFor(b.ID, ActionDef{Rel: "close", Pattern: "/api/v1/things/%s/close", Method: http.MethodPost, Title: "Close"})
}

func newLinkedAPI(t *testing.T) (humatest.TestAPI, *Links) {
	t.Helper()
	links := NewLinks()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)

	tag := huma.OperationTags("things")
	huma.Get(api, "/health", func(ctx context.Context, _ *struct{}) (*struct{}, error) { return nil, nil }, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/things", func(ctx context.Context, _ *struct{}) (*struct{ Body PageBody[itemBody] }, error) {
		items := []itemBody{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		return &struct{ Body PageBody[itemBody] }{Body: Page(items, 0, 2)}, nil
	}, tag)
	huma.Post(api, "/api/v1/things", func(ctx context.Context, _ *struct{}) (*struct{}, error) { return nil, nil }, tag)
	huma.Get(api, "/api/v1/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body itemBody }, error) {
		return &struct{ Body itemBody }{Body: itemBody{ID: in.ID, State: "open"}}, nil
	}, tag)
	huma.Get(api, "/api/v1/view/{id}/stream", func(ctx context.Context, _ *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		return nil, nil
	}, huma.OperationTags("mapview"))

	links.Build(api)
	return api, links
}

func TestLinksBuild(t *testing.T) {
	_, links := newLinkedAPI(t)

	item := links.For("/api/v1/things/{id}")
	for _, want := range []string{
		`</api/v1/things>; rel="collection"`,
		`</api/v1/things>; rel="up"`,
	} {
		if !slices.Contains(item, want) {
			t.Errorf("item links %v missing %s", item, want)
		}
	}

	coll := links.For("/api/v1/things")
	for _, want := range []string{
		`</api/v1/things/{id}>; rel="item"`,
		`</api/v1/things>; rel="create-form"`,
		`</health>; rel="up"`,
	} {
		if !slices.Contains(coll, want) {
			t.Errorf("collection links %v missing %s", coll, want)
		}
	}

	if got := links.For("/api/v1/view/{id}/stream"); len(got) != 0 {
		t.Errorf("mapview route got links %v", got)
	}
	if !slices.Contains(links.For("/health"), `</api/v1/things>; rel="things"`) {
		t.Errorf("health links %v", links.For("/health"))
	}
}

func TestTransformerHeaders(t *testing.T) {
	api, _ := newLinkedAPI(t)

	resp := api.Get("/api/v1/things/x")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	got := strings.Join(resp.Header().Values("Link"), "\n")
	for _, want := range []string{
		`</api/v1/things/x>; rel="self"`,
		`</api/v1/things/x/close>; rel="close"; method="POST"; title="Close"`,
		`rel="collection"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Link headers missing %s:\n%s", want, got)
		}
	}

	resp = api.Get("/api/v1/things")
	got = strings.Join(resp.Header().Values("Link"), "\n")
	for _, want := range []string{
		`</api/v1/things?offset=2&limit=2>; rel="next"`,
		`</api/v1/things?offset=2&limit=2>; rel="last"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Link headers missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, `rel="prev"`) {
		t.Errorf("first page has prev:\n%s", got)
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		name          string
		offset, limit int
		want          []int
		wantLimit     int
	}{
		{"first", 0, 2, []int{1, 2}, 2},
		{"tail", 4, 2, []int{5}, 2},
		{"past end", 9, 2, []int{}, 2},
		{"no limit", 1, 0, []int{2, 3, 4, 5}, 4},
		{"negative offset", -3, 1, []int{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Page(items, tt.offset, tt.limit)
			if !slices.Equal(p.Data, tt.want) || p.Total != 5 || p.Limit != tt.wantLimit {
				t.Fatalf("Page=%+v", p)
			}
		})
	}

	if links := (PageBody[int]{Total: 0}).PaginationLinks("/x"); links != nil {
		t.Fatalf("zero limit links=%v", links)
	}
	links := Page(items, 2, 2).PaginationLinks("/x")
	if !slices.Contains(links, `</x?offset=0&limit=2>; rel="prev"`) || !slices.Contains(links, `</x?offset=4&limit=2>; rel="next"`) {
		t.Fatalf("links=%v", links)
	}
}

func TestActionLinkHeader(t *testing.T) {
	a := ActionDef{Rel: "draw", Pattern: "/api/v1/sessions/%s/draw", Method: "POST", Title: "Draw an area"}.Action("abc")
	want := `</api/v1/sessions/abc/draw>; rel="draw"; method="POST"; title="Draw an area"`
	if got := a.LinkHeader(); got != want {
		t.Fatalf("LinkHeader=%s, want %s", got, want)
	}
	if got := (Action{Rel: "self", Href: "/x"}).LinkHeader(); got != `</x>; rel="self"` {
		t.Fatalf("bare LinkHeader=%s", got)
	}
}

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"name":"a","n":3,"zero":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.String("name") != "a" || s.Int("n") != 3 || !s.Has("zero") || s.Has("missing") {
		t.Fatalf("signals=%v", s)
	}
	if s.String("n") != "" || s.Int("name") != 0 {
		t.Fatal("wrong-typed lookups should return zero values")
	}

	empty, err := ParseSignals([]byte("  "))
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty body: %v, %v", empty, err)
	}
	if _, err := (&SignalsInput{RawBody: []byte("{")}).MustParse(); err == nil {
		t.Fatal("bad JSON accepted")
	}
}
