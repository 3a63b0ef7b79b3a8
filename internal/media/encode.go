package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// MaxDimension caps the longer side of any image sent to a model.
const MaxDimension = 2160

const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeWEBP = "image/webp"
)

// Encoded is an image ready to embed in a model request. Width and Height are
// zero when the bytes could not be decoded.
type Encoded struct {
	MediaType string
	Base64    string
	Width     int
	Height    int
}

// DataURI renders the image as a data: URL.
func (e *Encoded) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MediaType, e.Base64)
}

// HasDimensions reports whether the pixel size is known.
func (e *Encoded) HasDimensions() bool {
	return e.Width > 0 && e.Height > 0
}

// Loader fetches images and prepares them for model input.
type Loader struct {
	fetcher Fetcher
	logger  *infra.Logger
}

func NewLoader(fetcher Fetcher, logger *infra.Logger) *Loader {
	return &Loader{fetcher: fetcher, logger: infra.LoggerOrDiscard(logger)}
}

// Load fetches url, downsizes the image when a side exceeds MaxDimension and
// base64-encodes the result. Undecodable payloads are passed through as JPEG
// with unknown dimensions rather than failing.
func (l *Loader) Load(ctx context.Context, url string) (*Encoded, error) {
	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	encoded, err := Encode(data)
	if err != nil {
		l.logger.Warn().Err(err).Str("url", url).Msg("media: image processing failed, sending original bytes")
		return &Encoded{
			MediaType: MediaTypeJPEG,
			Base64:    base64.StdEncoding.EncodeToString(data),
		}, nil
	}
	return encoded, nil
}

// Encode decodes data, downsizes it if needed and returns the base64 payload.
func Encode(data []byte) (*Encoded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	mediaType := mediaTypeForFormat(format)
	payload := data

	if width > MaxDimension || height > MaxDimension {
		width, height = FitDimensions(width, height, MaxDimension)
		resized := imaging.Resize(img, width, height, imaging.Lanczos)

		var outFormat imaging.Format
		outFormat, mediaType = resizedFormat(format)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, outFormat, imaging.JPEGQuality(90)); err != nil {
			return nil, fmt.Errorf("encode resized image: %w", err)
		}
		payload = buf.Bytes()
	}

	return &Encoded{
		MediaType: mediaType,
		Base64:    base64.StdEncoding.EncodeToString(payload),
		Width:     width,
		Height:    height,
	}, nil
}

// FitDimensions scales width and height so the longer side equals limit,
// keeping the aspect ratio. Sizes already within limit are returned as is.
func FitDimensions(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}
	if width >= height {
		h := int(math.Round(float64(height) * float64(limit) / float64(width)))
		return limit, max(h, 1)
	}
	w := int(math.Round(float64(width) * float64(limit) / float64(height)))
	return max(w, 1), limit
}

// resizedFormat picks the encoder for a downscaled image. Only PNG and JPEG
// can be written back; WEBP, GIF and anything else become JPEG.
func resizedFormat(format string) (imaging.Format, string) {
	if format == "png" {
		return imaging.PNG, MediaTypePNG
	}
	return imaging.JPEG, MediaTypeJPEG
}

func mediaTypeForFormat(format string) string {
	switch format {
	case "png":
		return MediaTypePNG
	case "webp":
		return MediaTypeWEBP
	default:
		return MediaTypeJPEG
	}
}
