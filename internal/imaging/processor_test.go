package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// subject draws a bright textured square in the middle of a flat grey field.
func subject(w, h int) *image.RGBA {
	img := solid(w, h, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	for y := h / 3; y < 2*h/3; y++ {
		for x := w / 3; x < 2*w/3; x++ {
			if (x/12+y/12)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 250, G: 230, B: 40, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 20, G: 30, B: 120, A: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestProcessor_ProcessProducesVariants(t *testing.T) {
	p := NewProcessor(DefaultOptions(), nil, quietLogger())
	data := encodeJPEG(t, subject(1200, 600))

	result, err := p.Process(data)
	require.NoError(t, err)

	assert.Equal(t, 1200, result.Metadata.Width)
	assert.Equal(t, 600, result.Metadata.Height)
	assert.Equal(t, "jpeg", result.Metadata.Format)
	assert.Equal(t, int64(len(data)), result.Metadata.SizeBytes)
	assert.False(t, result.Metadata.HasAlpha)

	require.Len(t, result.Variants, 4)
	want := map[string][2]int{
		"thumbnail": {150, 75},
		"small":     {400, 200},
		"medium":    {800, 400},
		"large":     {1200, 600},
	}
	for _, v := range result.Variants {
		dims := want[v.Name]
		assert.Equal(t, dims[0], v.Width, v.Name)
		assert.Equal(t, dims[1], v.Height, v.Name)
		assert.Equal(t, FormatJPEG, v.Format)

		decoded, format, err := image.Decode(bytes.NewReader(v.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, dims[0], decoded.Bounds().Dx())
	}
}

func TestProcessor_PNGOutputKeepsAlpha(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputFormat = FormatPNG
	opts.Variants = []VariantSpec{{Name: "thumbnail", MaxSide: 50}}
	p := NewProcessor(opts, nil, quietLogger())

	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	result, err := p.Process(encodePNG(t, img))
	require.NoError(t, err)

	assert.True(t, result.Metadata.HasAlpha)
	assert.Equal(t, "png", result.Metadata.Format)
	require.Len(t, result.Variants, 1)
	assert.Equal(t, FormatPNG, result.Variants[0].Format)
}

func TestProcessor_Rejections(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBytes = 64 << 10
	opts.MaxPixels = 250 * 250
	p := NewProcessor(opts, nil, quietLogger())

	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", nil, ReasonEmpty},
		{"too small", encodePNG(t, solid(99, 300, color.White)), ReasonTooSmall},
		{"too large", make([]byte, opts.MaxBytes+1), ReasonTooLarge},
		{"too many pixels", encodePNG(t, solid(300, 300, color.White)), ReasonTooLarge},
		{"not an image", []byte("definitely not pixels"), ReasonUnsupported},
		{"truncated", encodePNG(t, solid(200, 200, color.White))[:60], ReasonCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(tt.data)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.reason, ve.Reason)
		})
	}
}

func TestFitInside(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1600, 1600, 1200},
		{3000, 4000, 800, 600, 800},
		{300, 200, 400, 300, 200},
		{1000, 1, 100, 100, 1},
		{500, 500, 0, 500, 500},
	}
	for _, tt := range tests {
		w, h := FitInside(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.ImagingConfig{
		OutputFormat:  "PNG",
		OutputQuality: 150,
		Variants:      []config.VariantConfig{{Name: "icon", MaxSide: 64}, {Name: "", MaxSide: 10}},
	})

	assert.Equal(t, FormatPNG, opts.OutputFormat)
	assert.Equal(t, 85, opts.OutputQuality)
	assert.Equal(t, []VariantSpec{{Name: "icon", MaxSide: 64}}, opts.Variants)
	assert.Equal(t, 100, opts.MinWidth)
	assert.Equal(t, int64(40_000_000), opts.MaxPixels)

	opts = OptionsFromConfig(config.ImagingConfig{MaxPixels: 1 << 20})
	assert.Equal(t, int64(1<<20), opts.MaxPixels)
}

type downloadClient struct {
	dl  *sources.Download
	err error
}

func (d *downloadClient) Name() string { return "fake" }
func (d *downloadClient) Search(context.Context, string, sources.SearchOptions) (*sources.SearchResult, error) {
	return nil, nil
}
func (d *downloadClient) EnhancedSearch(context.Context, string, string, sources.SearchOptions) (*sources.RankedResult, error) {
	return nil, nil
}
func (d *downloadClient) Download(context.Context, *models.ImageCandidate) (*sources.Download, error) {
	return d.dl, d.err
}

func TestProcessor_Fetch(t *testing.T) {
	data := encodePNG(t, solid(200, 200, color.White))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	client := sources.NewPexelsClient(config.SourceConfig{APIKey: "k", BaseURL: server.URL, Timeout: time.Second},
		sources.DefaultRetryPolicy(), quietLogger())
	p := NewProcessor(DefaultOptions(), nil, quietLogger())

	got, err := p.Fetch(context.Background(), client, &models.ImageCandidate{URLs: models.ImageURLs{Regular: server.URL + "/a.png"}})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestProcessor_FetchRefusesOversizedBody(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBytes = 10
	p := NewProcessor(opts, nil, quietLogger())

	client := &downloadClient{dl: &sources.Download{
		Body:          io.NopCloser(bytes.NewReader(make([]byte, 64))),
		ContentLength: -1,
		ContentType:   "image/jpeg",
	}}
	_, err := p.Fetch(context.Background(), client, &models.ImageCandidate{})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonTooLarge, ve.Reason)

	client.dl = &sources.Download{Body: io.NopCloser(bytes.NewReader(nil)), ContentLength: 11}
	_, err = p.Fetch(context.Background(), client, &models.ImageCandidate{})
	require.True(t, errors.As(err, &ve))
}

func TestProcessor_FetchRejectsNonImage(t *testing.T) {
	p := NewProcessor(DefaultOptions(), nil, quietLogger())
	client := &downloadClient{dl: &sources.Download{
		Body:        io.NopCloser(bytes.NewReader([]byte("<html>"))),
		ContentType: "text/html; charset=utf-8",
	}}

	_, err := p.Fetch(context.Background(), client, &models.ImageCandidate{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonUnsupported, ve.Reason)
}

func TestProcessor_FetchURL(t *testing.T) {
	data := encodeJPEG(t, subject(300, 300))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewProcessor(DefaultOptions(), nil, quietLogger())

	got, err := p.FetchURL(context.Background(), server.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = p.FetchURL(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = p.FetchURL(context.Background(), server.URL+"/page")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonUnsupported, ve.Reason)
}
