// Package project provides slicing session files and their persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scan-slicer/internal/grid"
)

// Extension is the suffix of session files.
const Extension = ".slicer.json"

// CurrentVersion is the session format written by Save.
const CurrentVersion = 1

// File represents a slicing session (.slicer.json).
type File struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Source image or document (relative to the session file when possible)
	SourcePath  string `json:"source"`
	CurrentPage int    `json:"current_page"`

	// Grid of the current page, and snapshots of every visited page
	Grid  *grid.Geometry         `json:"grid"`
	Pages map[int]*grid.Geometry `json:"pages,omitempty"`

	Settings Settings `json:"settings,omitempty"`
}

// Settings holds export choices remembered with the session.
type Settings struct {
	BaseName  string   `json:"base_name,omitempty"`
	OutputDir string   `json:"output_dir,omitempty"`
	Naming    string   `json:"naming,omitempty"`
	Names     []string `json:"names,omitempty"`
}

// New creates an empty session with a fresh grid.
func New() *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Created:  now,
		Modified: now,
		Grid:     grid.New(),
		Pages:    make(map[int]*grid.Geometry),
	}
}

// Load loads a session from a .slicer.json file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", filepath.Base(path), err)
	}
	if proj.Version > CurrentVersion {
		return nil, fmt.Errorf("session %s has unsupported version %d", filepath.Base(path), proj.Version)
	}
	if proj.Grid == nil {
		proj.Grid = grid.New()
	}
	if proj.Pages == nil {
		proj.Pages = make(map[int]*grid.Geometry)
	}

	return &proj, nil
}

// Save saves the session to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetSourcePath sets the source path (relative to the session file).
func (p *File) SetSourcePath(sessionPath, sourcePath string) {
	rel, err := filepath.Rel(filepath.Dir(sessionPath), sourcePath)
	if err != nil {
		p.SourcePath = sourcePath
	} else {
		p.SourcePath = rel
	}
	p.Modified = time.Now()
}

// GetSourcePath returns the absolute path to the source.
func (p *File) GetSourcePath(sessionPath string) string {
	if p.SourcePath == "" {
		return ""
	}
	if filepath.IsAbs(p.SourcePath) {
		return p.SourcePath
	}
	return filepath.Join(filepath.Dir(sessionPath), p.SourcePath)
}

// CapturePages copies every snapshot in store into the session.
func (p *File) CapturePages(store *grid.PageStore) {
	p.Pages = make(map[int]*grid.Geometry)
	for _, page := range store.Pages() {
		if g, ok := store.Get(page); ok {
			p.Pages[page] = g
		}
	}
}

// PageStore rebuilds a page store from the saved snapshots.
func (p *File) PageStore() *grid.PageStore {
	store := grid.NewPageStore()
	for page, g := range p.Pages {
		store.Save(page, g)
	}
	return store
}

// SessionPathFor returns the default session path next to a source file:
// scan.pdf becomes scan.slicer.json.
func SessionPathFor(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + Extension
}

// IsSessionFile reports whether path has the session extension.
func IsSessionFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), Extension)
}
