package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/domain"
)

const filmsJSON = `[
  {"_id": "65a1", "title": "Le Samouraï", "cover": "https://img.example/samourai.jpg",
   "duration": "1h45", "description": "A hitman.", "year": 1967,
   "genre": "Crime, Thriller", "videoUrl": "https://cdn.example/samourai.mp4"},
  {"id": "65a2", "title": " Stalker ", "duration": "2h41", "year": "1979",
   "genre": ["Science-fiction", "Drama"], "videoUrl": "https://cdn.example/stalker/master.m3u8",
   "ephemere": true},
  {"title": "No id"}
]`

func newTestClient(url string) *Client {
	c := NewClient(url, nil)
	c.retryDelay = time.Millisecond
	return c
}

func TestGetFilms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/films", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(filmsJSON))
	}))
	defer srv.Close()

	films, err := newTestClient(srv.URL + "/api/").GetFilms(context.Background())
	require.NoError(t, err)

	want := []*domain.Film{
		{
			ID:          "65a1",
			Title:       "Le Samouraï",
			Cover:       "https://img.example/samourai.jpg",
			Duration:    "1h45",
			Description: "A hitman.",
			Year:        1967,
			Genres:      []string{"Crime", "Thriller"},
			VideoURL:    "https://cdn.example/samourai.mp4",
		},
		{
			ID:        "65a2",
			Title:     "Stalker",
			Duration:  "2h41",
			Year:      1979,
			Genres:    []string{"Science-fiction", "Drama"},
			VideoURL:  "https://cdn.example/stalker/master.m3u8",
			Ephemeral: true,
		},
	}
	if diff := cmp.Diff(want, films); diff != "" {
		t.Errorf("films mismatch (-want +got):\n%s", diff)
	}
}

func TestGetFilmsWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"films": [{"_id": "1", "title": "Ran"}]}`))
	}))
	defer srv.Close()

	films, err := newTestClient(srv.URL).GetFilms(context.Background())
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, "Ran", films[0].Title)
}

func TestGetFilm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/films/65a1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"_id": "65a1", "title": "Le Samouraï", "genre": "Crime"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	film, err := c.GetFilm(context.Background(), "65a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Crime"}, film.Genres)

	_, err = c.GetFilm(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrFilmNotFound)

	_, err = c.GetFilm(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrFilmNotFound)
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	films, err := newTestClient(srv.URL).GetFilms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, films)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetFilms(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogOffline)
	assert.Equal(t, int32(maxRetries+1), hits.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetFilms(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).GetFilms(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogOffline)
}

func TestNormalizeGenres(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"missing", ``, nil},
		{"null", `null`, nil},
		{"single", `"Drama"`, []string{"Drama"}},
		{"comma string", `"Drama, Crime ,Noir"`, []string{"Drama", "Crime", "Noir"}},
		{"list", `["Drama","Crime"]`, []string{"Drama", "Crime"}},
		{"list with commas", `["Drama, Crime","Noir"]`, []string{"Drama", "Crime", "Noir"}},
		{"duplicates and blanks", `"Drama,, drama ,"`, []string{"Drama"}},
		{"wrong type", `42`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeGenres(json.RawMessage(tt.raw)))
		})
	}
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 1967, parseYear(json.RawMessage(`1967`)))
	assert.Equal(t, 1979, parseYear(json.RawMessage(`" 1979 "`)))
	assert.Equal(t, 0, parseYear(json.RawMessage(`"unknown"`)))
	assert.Equal(t, 0, parseYear(nil))
}
