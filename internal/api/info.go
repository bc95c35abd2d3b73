package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-draw/internal/service"
)

type InfoHandler struct {
	dataDir  string
	db       *sql.DB
	sessions *service.SessionService
}

// NewInfoHandler creates the info handler. db may be nil.
func NewInfoHandler(dataDir string, db *sql.DB, sessions *service.SessionService) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, db: db, sessions: sessions}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path, empty when running in memory"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Tables   []string `json:"tables" doc:"DuckDB tables"`
	Sessions int      `json:"sessions" doc:"Open drawing sessions"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-draw",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.db != nil,
		Tables:   []string{},
		Sessions: h.sessions.Count(),
		Features: []string{"freehand-draw", "viewport-stabilizer", "saved-areas", "duckdb"},
	}
	if h.db != nil {
		tables, err := h.tables(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list tables", err)
		}
		body.Tables = tables
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}

func (h *InfoHandler) tables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
