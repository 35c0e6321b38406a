package service

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/reel/internal/domain"
)

// MatchField says which part of a film matched a query
type MatchField int

const (
	MatchTitle MatchField = iota
	MatchGenre
	MatchDescription
)

// maxWordDistance is the edit distance allowed between a query word and a description word
const maxWordDistance = 2

// SearchResult is a film matching a query, with match metadata for highlighting
type SearchResult struct {
	Film           *domain.Film
	Field          MatchField
	MatchedIndexes []int // byte positions in the lowercase title, title matches only
	Score          int   // higher is better within a field
}

// FilmIndex implements sahilm/fuzzy.Source over film titles
type FilmIndex struct {
	films       []*domain.Film
	lowerTitles []string
	descWords   [][]string
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *FilmIndex) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of films (implements fuzzy.Source)
func (idx *FilmIndex) Len() int { return len(idx.films) }

// SearchService matches films by title, genre and description
type SearchService struct {
	logger *slog.Logger

	mu    sync.RWMutex
	index *FilmIndex
}

// NewSearchService creates a new search service
func NewSearchService(logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{logger: logger, index: &FilmIndex{}}
}

// Index replaces the searchable film set
func (s *SearchService) Index(films []*domain.Film) {
	idx := &FilmIndex{
		films:       films,
		lowerTitles: make([]string, len(films)),
		descWords:   make([][]string, len(films)),
	}
	for i, f := range films {
		idx.lowerTitles[i] = strings.ToLower(f.Title)
		idx.descWords[i] = words(f.Description)
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	s.logger.Debug("indexed films", "count", len(films))
}

// Search returns title matches first (best first), then genre matches, then
// description matches. Each film appears once
func (s *SearchService) Search(query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	seen := make(map[int]bool)
	var results []SearchResult

	for _, m := range fuzzy.FindFrom(strings.ToLower(query), idx) {
		seen[m.Index] = true
		results = append(results, SearchResult{
			Film:           idx.films[m.Index],
			Field:          MatchTitle,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		})
	}

	for i, f := range idx.films {
		if seen[i] {
			continue
		}
		for _, g := range f.Genres {
			if fuzzysearch.MatchNormalizedFold(query, g) {
				seen[i] = true
				results = append(results, SearchResult{Film: f, Field: MatchGenre})
				break
			}
		}
	}

	qwords := words(query)
	var desc []SearchResult
	for i, f := range idx.films {
		if seen[i] || len(qwords) == 0 {
			continue
		}
		if score, ok := matchWords(qwords, idx.descWords[i]); ok {
			desc = append(desc, SearchResult{Film: f, Field: MatchDescription, Score: score})
		}
	}
	sort.SliceStable(desc, func(a, b int) bool { return desc[a].Score > desc[b].Score })
	results = append(results, desc...)

	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results
}

// Genres returns every genre present in the index, sorted
func (s *SearchService) Genres() []string {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	set := make(map[string]string)
	for _, f := range idx.films {
		for _, g := range f.Genres {
			key := strings.ToLower(g)
			if _, ok := set[key]; !ok {
				set[key] = g
			}
		}
	}
	out := make([]string, 0, len(set))
	for _, g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// matchWords requires every query word to be close to some description word.
// The score is higher when the words match more exactly
func matchWords(query, desc []string) (int, bool) {
	score := 0
	for _, q := range query {
		best := -1
		for _, r := range fuzzysearch.RankFindNormalizedFold(q, desc) {
			if r.Distance <= maxWordDistance && (best < 0 || r.Distance < best) {
				best = r.Distance
			}
		}
		if best < 0 {
			return 0, false
		}
		score += maxWordDistance + 1 - best
	}
	return score, true
}

// words splits text into lowercase words of at least three letters
func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
