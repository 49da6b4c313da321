package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/pkg/models"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// VariantSpec names a fit-inside bounding box.
type VariantSpec struct {
	Name    string
	MaxSide int
}

// Options configures the processor.
type Options struct {
	MinWidth      int
	MinHeight     int
	MaxBytes      int64
	MaxPixels     int64
	OutputFormat  string
	OutputQuality int
	Variants      []VariantSpec
}

// DefaultOptions rejects images under 100x100, over 10 MiB or over 40
// megapixels and emits thumbnail/small/medium/large JPEG variants at quality 85.
func DefaultOptions() Options {
	return Options{
		MinWidth:      100,
		MinHeight:     100,
		MaxBytes:      10 << 20,
		MaxPixels:     40_000_000,
		OutputFormat:  FormatJPEG,
		OutputQuality: 85,
		Variants: []VariantSpec{
			{Name: "thumbnail", MaxSide: 150},
			{Name: "small", MaxSide: 400},
			{Name: "medium", MaxSide: 800},
			{Name: "large", MaxSide: 1600},
		},
	}
}

// OptionsFromConfig maps the imaging config section, falling back to defaults.
func OptionsFromConfig(cfg config.ImagingConfig) Options {
	opts := DefaultOptions()
	if cfg.MinWidth > 0 {
		opts.MinWidth = cfg.MinWidth
	}
	if cfg.MinHeight > 0 {
		opts.MinHeight = cfg.MinHeight
	}
	if cfg.MaxBytes > 0 {
		opts.MaxBytes = cfg.MaxBytes
	}
	if cfg.MaxPixels > 0 {
		opts.MaxPixels = cfg.MaxPixels
	}
	if cfg.OutputFormat != "" {
		opts.OutputFormat = strings.ToLower(cfg.OutputFormat)
	}
	if cfg.OutputQuality > 0 && cfg.OutputQuality <= 100 {
		opts.OutputQuality = cfg.OutputQuality
	}
	if len(cfg.Variants) > 0 {
		opts.Variants = nil
		for _, v := range cfg.Variants {
			if v.Name != "" && v.MaxSide > 0 {
				opts.Variants = append(opts.Variants, VariantSpec{Name: v.Name, MaxSide: v.MaxSide})
			}
		}
	}
	return opts
}

// Variant is one re-encoded size of an image.
type Variant struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Data   []byte `json:"-"`
}

// Result is everything derived from one input image.
type Result struct {
	Metadata   models.ImageMetadata   `json:"metadata"`
	Properties models.ImageProperties `json:"properties"`
	Variants   []Variant              `json:"variants,omitempty"`
}

// Processor validates, measures and resizes downloaded images.
type Processor struct {
	opts       Options
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

func NewProcessor(opts Options, m *metrics.Metrics, logger *logrus.Logger) *Processor {
	return &Processor{
		opts:       opts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		metrics:    m,
		logger:     logger,
	}
}

func (p *Processor) Options() Options {
	return p.opts
}

// Inspect decodes data and derives metadata and colour statistics without
// producing variants.
func (p *Processor) Inspect(data []byte) (*Result, error) {
	img, meta, err := p.decode(data)
	if err != nil {
		p.metrics.ImageProcessed("invalid")
		return nil, err
	}
	return &Result{Metadata: meta, Properties: Analyze(img)}, nil
}

// Process validates data, derives its statistics and renders every configured variant.
func (p *Processor) Process(data []byte) (*Result, error) {
	img, meta, err := p.decode(data)
	if err != nil {
		p.metrics.ImageProcessed("invalid")
		return nil, err
	}

	result := &Result{Metadata: meta, Properties: Analyze(img)}
	for _, spec := range p.opts.Variants {
		v, err := p.render(img, spec)
		if err != nil {
			p.metrics.ImageProcessed("encode_error")
			return nil, fmt.Errorf("render %s variant: %w", spec.Name, err)
		}
		result.Variants = append(result.Variants, v)
	}

	p.metrics.ImageProcessed("ok")
	return result, nil
}

// Fetch downloads a candidate through its source client, refusing bodies over MaxBytes.
func (p *Processor) Fetch(ctx context.Context, client sources.SourceClient, candidate *models.ImageCandidate) ([]byte, error) {
	dl, err := client.Download(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return p.read(dl)
}

// FetchURL downloads an arbitrary image URL with the same limits as Fetch.
func (p *Processor) FetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return p.read(&sources.Download{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		URL:           rawURL,
	})
}

func (p *Processor) read(dl *sources.Download) ([]byte, error) {
	defer dl.Body.Close()

	if dl.ContentLength > p.opts.MaxBytes {
		return nil, invalid(ReasonTooLarge, "%d bytes exceeds %d", dl.ContentLength, p.opts.MaxBytes)
	}
	if ct := strings.ToLower(dl.ContentType); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, invalid(ReasonUnsupported, "content type %s", dl.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(dl.Body, p.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > p.opts.MaxBytes {
		return nil, invalid(ReasonTooLarge, "body exceeds %d bytes", p.opts.MaxBytes)
	}
	return data, nil
}

func (p *Processor) decode(data []byte) (image.Image, models.ImageMetadata, error) {
	var meta models.ImageMetadata
	if len(data) == 0 {
		return nil, meta, &ValidationError{Reason: ReasonEmpty}
	}
	if int64(len(data)) > p.opts.MaxBytes {
		return nil, meta, invalid(ReasonTooLarge, "%d bytes exceeds %d", len(data), p.opts.MaxBytes)
	}

	// Check the header before decoding pixels.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, meta, invalid(ReasonUnsupported, "unrecognised image format")
		}
		return nil, meta, invalid(ReasonCorrupt, "%v", err)
	}
	if cfg.Width < p.opts.MinWidth || cfg.Height < p.opts.MinHeight {
		return nil, meta, invalid(ReasonTooSmall, "%dx%d is below %dx%d", cfg.Width, cfg.Height, p.opts.MinWidth, p.opts.MinHeight)
	}
	// The declared size bounds the decode allocation, whatever the byte count.
	if pixels := int64(cfg.Width) * int64(cfg.Height); p.opts.MaxPixels > 0 && pixels > p.opts.MaxPixels {
		return nil, meta, invalid(ReasonTooLarge, "%dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.opts.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, meta, invalid(ReasonCorrupt, "%v", err)
	}

	bounds := img.Bounds()
	meta = models.ImageMetadata{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     format,
		SizeBytes:  int64(len(data)),
		ColorSpace: colorSpace(img),
		HasAlpha:   hasAlpha(img),
	}
	return img, meta, nil
}

// FitInside scales (w, h) to fit a maxSide square, never enlarging.
func FitInside(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}

func (p *Processor) render(src image.Image, spec VariantSpec) (Variant, error) {
	b := src.Bounds()
	w, h := FitInside(b.Dx(), b.Dy(), spec.MaxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if p.opts.OutputFormat != FormatPNG {
		// JPEG has no alpha channel; composite onto white.
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	format := FormatJPEG
	switch p.opts.OutputFormat {
	case FormatPNG:
		format = FormatPNG
		if err := png.Encode(&buf, dst); err != nil {
			return Variant{}, err
		}
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.OutputQuality}); err != nil {
			return Variant{}, err
		}
	}

	return Variant{Name: spec.Name, Width: w, Height: h, Format: format, Data: buf.Bytes()}, nil
}

func colorSpace(img image.Image) string {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.CMYKModel:
		return "cmyk"
	default:
		return "srgb"
	}
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}
