package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mmcdole/reel/internal/domain"
)

// filmRecord is a film as the catalog API serves it. MongoDB documents use
// _id, older exports use id; genre and year have no fixed type
type filmRecord struct {
	MongoID     string          `json:"_id"`
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Cover       string          `json:"cover"`
	Duration    string          `json:"duration"`
	Description string          `json:"description"`
	Year        json.RawMessage `json:"year"`
	Genre       json.RawMessage `json:"genre"`
	VideoURL    string          `json:"videoUrl"`
	Ephemere    bool            `json:"ephemere"`
}

// filmsResponse accepts both a bare array and {"films": [...]}
type filmsResponse struct {
	Films []filmRecord `json:"films"`
}

// MapFilm converts a raw record to a domain.Film
func MapFilm(r filmRecord) *domain.Film {
	id := r.MongoID
	if id == "" {
		id = r.ID
	}
	return &domain.Film{
		ID:          id,
		Title:       strings.TrimSpace(r.Title),
		Cover:       r.Cover,
		Duration:    r.Duration,
		Description: r.Description,
		Year:        parseYear(r.Year),
		Genres:      NormalizeGenres(r.Genre),
		VideoURL:    r.VideoURL,
		Ephemeral:   r.Ephemere,
	}
}

// MapFilms converts raw records, dropping entries without an identifier
func MapFilms(records []filmRecord) []*domain.Film {
	films := make([]*domain.Film, 0, len(records))
	for _, r := range records {
		f := MapFilm(r)
		if f.ID == "" {
			continue
		}
		films = append(films, f)
	}
	return films
}

// NormalizeGenres turns a genre value into a list. The catalog stores either
// a list of names or one comma-separated string
func NormalizeGenres(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var parts []string
	var list []string
	var single string
	switch {
	case json.Unmarshal(raw, &list) == nil:
		for _, g := range list {
			parts = append(parts, strings.Split(g, ",")...)
		}
	case json.Unmarshal(raw, &single) == nil:
		parts = strings.Split(single, ",")
	default:
		return nil
	}

	var genres []string
	seen := make(map[string]bool)
	for _, p := range parts {
		g := strings.TrimSpace(p)
		if g == "" || seen[strings.ToLower(g)] {
			continue
		}
		seen[strings.ToLower(g)] = true
		genres = append(genres, g)
	}
	return genres
}

func parseYear(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
		return n
	}
	return 0
}
