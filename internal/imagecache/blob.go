package imagecache

import (
	"bytes"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

// Blob is an image held in memory
type Blob struct {
	Data        []byte
	ContentType string
	Width       int // 0 if the format could not be decoded
	Height      int
}

// Size returns the number of bytes held
func (b Blob) Size() int { return len(b.Data) }

var formatTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// normalize records image dimensions and shrinks oversized posters.
// Undecodable data (svg, truncated files) is kept as fetched
func normalize(data []byte, contentType string, maxDimension int) Blob {
	blob := Blob{Data: data, ContentType: contentType}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return blob
	}
	if ct, ok := formatTypes[format]; ok {
		blob.ContentType = ct
	}
	blob.Width, blob.Height = cfg.Width, cfg.Height

	if maxDimension <= 0 || (cfg.Width <= maxDimension && cfg.Height <= maxDimension) {
		return blob
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return blob
	}
	thumb := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return blob
	}

	bounds := thumb.Bounds()
	return Blob{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}
}
