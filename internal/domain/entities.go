package domain

import (
	"fmt"
	"strings"
	"time"
)

// Film is a catalog entry as the rest of the application sees it.
// Genres is always a list, whatever shape the catalog API sent
type Film struct {
	ID          string   // Catalog identifier
	Title       string   // Display title
	Cover       string   // Poster image URL
	Duration    string   // Runtime as published by the catalog ("1h52", "112 min")
	Description string   // Synopsis
	Year        int      // Release year, 0 if unknown
	Genres      []string // Normalized genre list
	VideoURL    string   // Direct file or HLS manifest URL
	Ephemeral   bool     // Time-limited content, delivered as an adaptive stream
}

// GetID returns the catalog identifier
func (f *Film) GetID() string { return f.ID }

// GetTitle returns the display title
func (f *Film) GetTitle() string { return f.Title }

// GenreLabel joins the genre list for display
func (f Film) GenreLabel() string {
	return strings.Join(f.Genres, ", ")
}

// Subtitle returns the secondary line shown under a title in lists
func (f Film) Subtitle() string {
	var parts []string
	if f.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", f.Year))
	}
	if f.Duration != "" {
		parts = append(parts, f.Duration)
	}
	if len(f.Genres) > 0 {
		parts = append(parts, f.GenreLabel())
	}
	return strings.Join(parts, " · ")
}

// Progress is the last known playback position of a film
type Progress struct {
	FilmID    string        `json:"filmId"`
	Position  time.Duration `json:"position"`
	Duration  time.Duration `json:"duration"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Percent returns how far into the film the position is (0-100)
func (p Progress) Percent() float64 {
	if p.Duration <= 0 {
		return 0
	}
	pct := float64(p.Position) / float64(p.Duration) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
