package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"github.com/temcen/vocabimg/pkg/models"
)

// The measures below are cheap heuristics over a downsampled copy of the
// image. They approximate perceptual qualities and are not calibrated.
const (
	analysisMaxSide = 256
	// Luma gradient above which a pixel counts as an edge.
	edgeThreshold = 48.0
	// Hasler-Susstrunk colourfulness of an "extremely colourful" image.
	colorfulnessScale = 109.0
	dominantColors    = 5
	// Buckets holding less than this share of pixels are not reported as dominant.
	dominantMinShare = 0.02
)

// Analyze derives brightness, contrast, colourfulness, saturation, dominant
// colours, edge density and centre focus from img.
func Analyze(img image.Image) models.ImageProperties {
	small := downsample(img, analysisMaxSide)
	b := small.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	if n == 0 {
		return models.ImageProperties{}
	}

	luma := make([]float64, n)
	rg := make([]float64, n)
	yb := make([]float64, n)
	sat := make([]float64, n)
	hist := make(map[int]int)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			off := small.PixOffset(b.Min.X+x, b.Min.Y+y)
			r := float64(small.Pix[off])
			g := float64(small.Pix[off+1])
			bl := float64(small.Pix[off+2])

			luma[i] = 0.299*r + 0.587*g + 0.114*bl
			rg[i] = r - g
			yb[i] = 0.5*(r+g) - bl

			hi := math.Max(r, math.Max(g, bl))
			lo := math.Min(r, math.Min(g, bl))
			if hi > 0 {
				sat[i] = (hi - lo) / hi
			}

			bucket := int(small.Pix[off]>>4)<<8 | int(small.Pix[off+1]>>4)<<4 | int(small.Pix[off+2]>>4)
			hist[bucket]++
		}
	}

	meanLuma, stdLuma := stat.PopMeanStdDev(luma, nil)
	meanRG, stdRG := stat.PopMeanStdDev(rg, nil)
	meanYB, stdYB := stat.PopMeanStdDev(yb, nil)

	colorfulness := math.Sqrt(stdRG*stdRG+stdYB*stdYB) + 0.3*math.Sqrt(meanRG*meanRG+meanYB*meanYB)

	edges, centre := structure(luma, w, h)

	return models.ImageProperties{
		Brightness:     round3(meanLuma / 255),
		Contrast:       round3(clamp01(stdLuma / 128)),
		Colorfulness:   round3(clamp01(colorfulness / colorfulnessScale)),
		Saturation:     round3(stat.Mean(sat, nil)),
		DominantColors: topColors(hist, n),
		EdgeDensity:    round3(edges),
		CenterFocus:    round3(centre),
	}
}

func downsample(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := FitInside(b.Dx(), b.Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// structure returns the share of edge pixels and how strongly gradient
// energy concentrates in the central region (0.5 when evenly spread).
func structure(luma []float64, w, h int) (edgeDensity, centreFocus float64) {
	if w < 3 || h < 3 {
		return 0, 0
	}

	var edgeCount, interior int
	var centreSum, borderSum float64
	var centreN, borderN int

	x0, x1 := w/4, w-w/4
	y0, y1 := h/4, h-h/4

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := luma[y*w+x+1] - luma[y*w+x-1]
			gy := luma[(y+1)*w+x] - luma[(y-1)*w+x]
			mag := math.Sqrt(gx*gx + gy*gy)

			interior++
			if mag > edgeThreshold {
				edgeCount++
			}
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				centreSum += mag
				centreN++
			} else {
				borderSum += mag
				borderN++
			}
		}
	}

	edgeDensity = float64(edgeCount) / float64(interior)

	var centreMean, borderMean float64
	if centreN > 0 {
		centreMean = centreSum / float64(centreN)
	}
	if borderN > 0 {
		borderMean = borderSum / float64(borderN)
	}
	if centreMean+borderMean > 0 {
		centreFocus = centreMean / (centreMean + borderMean)
	}
	return edgeDensity, centreFocus
}

func topColors(hist map[int]int, total int) []string {
	type bucket struct {
		key   int
		count int
	}
	buckets := make([]bucket, 0, len(hist))
	for k, c := range hist {
		buckets = append(buckets, bucket{k, c})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].key < buckets[j].key
	})

	colors := make([]string, 0, dominantColors)
	for _, bk := range buckets {
		if len(colors) == dominantColors || float64(bk.count)/float64(total) < dominantMinShare {
			break
		}
		// Report the centre of the 16-level bucket.
		r := (bk.key>>8&0xF)<<4 | 0x8
		g := (bk.key>>4&0xF)<<4 | 0x8
		b := (bk.key&0xF)<<4 | 0x8
		colors = append(colors, fmt.Sprintf("#%02x%02x%02x", r, g, b))
	}
	return colors
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
