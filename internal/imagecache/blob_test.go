package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize_KeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 120, 180)
	b := normalize(data, "application/octet-stream", 600)

	assert.Equal(t, data, b.Data)
	assert.Equal(t, "image/png", b.ContentType)
	assert.Equal(t, 120, b.Width)
	assert.Equal(t, 180, b.Height)
}

func TestNormalize_DownscalesLargeImages(t *testing.T) {
	b := normalize(encodePNG(t, 1000, 500), "image/png", 200)

	assert.Equal(t, "image/jpeg", b.ContentType)
	assert.Equal(t, 200, b.Width)
	assert.Equal(t, 100, b.Height)
}

func TestNormalize_UndecodableDataKept(t *testing.T) {
	data := []byte("<svg xmlns='http://www.w3.org/2000/svg'/>")
	b := normalize(data, "image/svg+xml", 200)

	assert.Equal(t, data, b.Data)
	assert.Equal(t, "image/svg+xml", b.ContentType)
	assert.Zero(t, b.Width)
}

func TestHTTPFetcher(t *testing.T) {
	poster := encodePNG(t, 10, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/poster.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(poster)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())

	data, ct, err := f.Fetch(context.Background(), srv.URL+"/poster.png")
	require.NoError(t, err)
	assert.Equal(t, poster, data)
	assert.Equal(t, "image/png", ct)

	_, _, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}
