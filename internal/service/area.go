package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joeblew999/plat-draw/internal/geo"
)

var (
	ErrAreaNotFound = errors.New("area not found")
	ErrAreaExists   = errors.New("area already exists")
)

// AreaService manages saved search areas. With an empty dataDir areas live
// in memory only.
type AreaService struct {
	dataDir string
	areas   map[string]Area
	mu      sync.RWMutex
}

// NewAreaService creates a new area service.
func NewAreaService(dataDir string) *AreaService {
	s := &AreaService{
		dataDir: dataDir,
		areas:   make(map[string]Area),
	}
	s.loadFromDisk()
	return s
}

// List returns all areas ordered by name.
func (s *AreaService) List() []Area {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Area, 0, len(s.areas))
	for _, a := range s.areas {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Get returns an area by ID.
func (s *AreaService) Get(id string) (Area, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.areas[id]
	return a, ok
}

// Create validates the vertices, derives the geometry and saves the area.
func (s *AreaService) Create(a Area) (Area, error) {
	b, err := geo.NewBoundary(a.Vertices)
	if err != nil {
		return Area{}, fmt.Errorf("area %q: %w", a.Name, err)
	}
	g := b.Geometry()
	a.Vertices = b.Vertices()
	a.Geometry = &g

	s.mu.Lock()
	defer s.mu.Unlock()

	// Generate ID from name if not provided
	if a.ID == "" {
		a.ID = generateID(a.Name)
	}
	if a.ID == "" {
		return Area{}, fmt.Errorf("area name %q yields an empty id", a.Name)
	}

	if _, exists := s.areas[a.ID]; exists {
		return Area{}, fmt.Errorf("%w: %q", ErrAreaExists, a.ID)
	}

	s.areas[a.ID] = a
	if err := s.saveToDisk(); err != nil {
		delete(s.areas, a.ID)
		return Area{}, err
	}
	return a, nil
}

// Delete removes an area by ID.
func (s *AreaService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.areas[id]; !exists {
		return fmt.Errorf("%w: %q", ErrAreaNotFound, id)
	}

	delete(s.areas, id)
	return s.saveToDisk()
}

// Boundary rebuilds the saved area as a boundary.
func (s *AreaService) Boundary(id string) (*geo.Boundary, error) {
	a, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAreaNotFound, id)
	}
	return geo.NewBoundary(a.Vertices)
}

// configFile returns the path to the areas file.
func (s *AreaService) configFile() string {
	return filepath.Join(s.dataDir, "areas.json")
}

// loadFromDisk loads saved areas from disk.
func (s *AreaService) loadFromDisk() {
	if s.dataDir == "" {
		return
	}
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var areas map[string]Area
	if err := json.Unmarshal(data, &areas); err != nil {
		return // Invalid JSON, start empty
	}

	s.areas = areas
}

// saveToDisk persists areas to disk.
func (s *AreaService) saveToDisk() error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.areas, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
