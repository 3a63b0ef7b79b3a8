package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, h/2, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func decodeConfig(t *testing.T, encoded *Encoded) image.Config {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded.Base64)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg
}

type staticFetcher struct {
	data []byte
	err  error
}

func (f staticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.data, f.err
}

func TestEncodeKeepsSmallImages(t *testing.T) {
	cases := []struct {
		name      string
		data      []byte
		mediaType string
	}{
		{name: "png", data: pngBytes(t, 40, 30), mediaType: MediaTypePNG},
		{name: "jpeg", data: jpegBytes(t, 64, 48), mediaType: MediaTypeJPEG},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.data)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if encoded.MediaType != tc.mediaType {
				t.Fatalf("MediaType = %q, want %q", encoded.MediaType, tc.mediaType)
			}
			cfg, _, _ := image.DecodeConfig(bytes.NewReader(tc.data))
			if encoded.Width != cfg.Width || encoded.Height != cfg.Height {
				t.Fatalf("dimensions = %dx%d, want %dx%d", encoded.Width, encoded.Height, cfg.Width, cfg.Height)
			}
			if encoded.Base64 != base64.StdEncoding.EncodeToString(tc.data) {
				t.Fatal("small image bytes should pass through unchanged")
			}
		})
	}
}

func TestEncodeDownscalesWidePNG(t *testing.T) {
	encoded, err := Encode(pngBytes(t, 4400, 220))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if encoded.Width != MaxDimension || encoded.Height != 108 {
		t.Fatalf("dimensions = %dx%d, want 2160x108", encoded.Width, encoded.Height)
	}
	if encoded.MediaType != MediaTypePNG {
		t.Fatalf("MediaType = %q, want png", encoded.MediaType)
	}
	cfg := decodeConfig(t, encoded)
	if cfg.Width != encoded.Width || cfg.Height != encoded.Height {
		t.Fatalf("payload is %dx%d, reported %dx%d", cfg.Width, cfg.Height, encoded.Width, encoded.Height)
	}
}

func TestEncodeDownscalesTallJPEG(t *testing.T) {
	encoded, err := Encode(jpegBytes(t, 2400, 3200))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if encoded.Width != 1620 || encoded.Height != MaxDimension {
		t.Fatalf("dimensions = %dx%d, want 1620x2160", encoded.Width, encoded.Height)
	}
	if encoded.MediaType != MediaTypeJPEG {
		t.Fatalf("MediaType = %q, want jpeg", encoded.MediaType)
	}
	cfg := decodeConfig(t, encoded)
	if cfg.Width != 1620 || cfg.Height != MaxDimension {
		t.Fatalf("payload is %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFitDimensions(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{1000, 800, 1000, 800},
		{2160, 2160, 2160, 2160},
		{4320, 2880, 2160, 1440},
		{3000, 4000, 1620, 2160},
		{100000, 10, 2160, 1},
	}
	for _, tc := range cases {
		gotW, gotH := FitDimensions(tc.w, tc.h, MaxDimension)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Fatalf("FitDimensions(%d, %d) = %dx%d, want %dx%d", tc.w, tc.h, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestLoaderFallsBackOnUndecodablePayload(t *testing.T) {
	raw := []byte("definitely not an image")
	loader := NewLoader(staticFetcher{data: raw}, nil)
	encoded, err := loader.Load(context.Background(), "https://example.com/room.jpg")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if encoded.MediaType != MediaTypeJPEG || encoded.Width != 0 || encoded.Height != 0 {
		t.Fatalf("unexpected fallback: %+v", encoded)
	}
	if encoded.HasDimensions() {
		t.Fatal("fallback must report unknown dimensions")
	}
	if encoded.Base64 != base64.StdEncoding.EncodeToString(raw) {
		t.Fatal("fallback must carry the original bytes")
	}
	if encoded.DataURI() != "data:image/jpeg;base64,"+encoded.Base64 {
		t.Fatalf("DataURI = %q", encoded.DataURI())
	}
}

func TestLoaderPropagatesFetchErrors(t *testing.T) {
	loader := NewLoader(staticFetcher{err: errors.New("connection refused")}, nil)
	if _, err := loader.Load(context.Background(), "https://example.com/room.jpg"); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestHTTPFetcherStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("body"))
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(ts.Client())
	data, err := fetcher.Fetch(context.Background(), ts.URL+"/room.jpg")
	if err != nil || string(data) != "body" {
		t.Fatalf("Fetch = %q, %v", data, err)
	}
	if _, err := fetcher.Fetch(context.Background(), ts.URL+"/missing.jpg"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestStorageFetcherResolve(t *testing.T) {
	f := NewStorageFetcher(nil, "http://minio:9000", "http://localhost:9000/")
	cases := []struct {
		url    string
		bucket string
		key    string
		ok     bool
	}{
		{"http://minio:9000/uploads/room.jpg", "uploads", "room.jpg", true},
		{"http://localhost:9000/uploads/a/b.png", "uploads", "a/b.png", true},
		{"http://localhost:9000/uploads", "", "", false},
		{"https://cdn.example.com/uploads/room.jpg", "", "", false},
	}
	for _, tc := range cases {
		bucket, key, ok := f.Resolve(tc.url)
		if bucket != tc.bucket || key != tc.key || ok != tc.ok {
			t.Fatalf("Resolve(%q) = %q, %q, %v", tc.url, bucket, key, ok)
		}
	}
}

func TestRouterPrefersStorage(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.Write(context.Background(), "uploads", "room.jpg", []byte("from-storage"), "image/jpeg"); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	httpCalls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpCalls++
		_, _ = w.Write([]byte("from-http"))
	}))
	defer ts.Close()

	router := NewRouter(
		NewStorageFetcher(store, "http://localhost:8080/static/", ts.URL+"/static/"),
		NewHTTPFetcher(ts.Client()),
		nil,
	)

	data, err := router.Fetch(context.Background(), "http://localhost:8080/static/uploads/room.jpg")
	if err != nil || string(data) != "from-storage" {
		t.Fatalf("storage fetch = %q, %v", data, err)
	}
	if httpCalls != 0 {
		t.Fatalf("expected no http calls, got %d", httpCalls)
	}

	data, err = router.Fetch(context.Background(), ts.URL+"/static/uploads/missing.jpg")
	if err != nil || string(data) != "from-http" {
		t.Fatalf("missing object fallback = %q, %v", data, err)
	}

	data, err = router.Fetch(context.Background(), ts.URL+"/elsewhere/room.jpg")
	if err != nil || string(data) != "from-http" {
		t.Fatalf("external fetch = %q, %v", data, err)
	}
	if httpCalls != 2 {
		t.Fatalf("expected 2 http calls, got %d", httpCalls)
	}
}

func TestEncodeDownscaledGIFBecomesJPEG(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2400, 100), color.Palette{color.Black, color.White})
	for x := 0; x < 2400; x += 3 {
		img.SetColorIndex(x, 50, 1)
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	encoded, err := Encode(buf.Bytes())
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if encoded.MediaType != MediaTypeJPEG || encoded.Width != 2160 || encoded.Height != 90 {
		t.Fatalf("unexpected result %s %dx%d", encoded.MediaType, encoded.Width, encoded.Height)
	}
	raw, _ := base64.StdEncoding.DecodeString(encoded.Base64)
	if _, err := jpeg.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("payload is not jpeg: %v", err)
	}
}

func TestResizedFormat(t *testing.T) {
	cases := []struct {
		format    string
		encoder   imaging.Format
		mediaType string
	}{
		{"png", imaging.PNG, MediaTypePNG},
		{"jpeg", imaging.JPEG, MediaTypeJPEG},
		{"webp", imaging.JPEG, MediaTypeJPEG},
		{"gif", imaging.JPEG, MediaTypeJPEG},
	}
	for _, tc := range cases {
		encoder, mediaType := resizedFormat(tc.format)
		if encoder != tc.encoder || mediaType != tc.mediaType {
			t.Fatalf("resizedFormat(%q) = %v, %q", tc.format, encoder, mediaType)
		}
	}
}

type brokenStore struct{}

func (brokenStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, errors.New("AccessDenied: access denied")
}

func (brokenStore) Write(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return "", errors.New("read only")
}

func TestRouterFallsBackWhenStorageFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from-http"))
	}))
	defer ts.Close()

	router := NewRouter(NewStorageFetcher(brokenStore{}, ts.URL+"/"), NewHTTPFetcher(ts.Client()), nil)
	data, err := router.Fetch(context.Background(), ts.URL+"/uploads/room.jpg")
	if err != nil || string(data) != "from-http" {
		t.Fatalf("fallback fetch = %q, %v", data, err)
	}
}
