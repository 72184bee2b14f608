package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoding
	_ "image/jpeg" // JPEG decoding
	_ "image/png"  // PNG decoding
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP decoding
	_ "golang.org/x/image/tiff" // TIFF decoding
	_ "golang.org/x/image/webp" // WebP decoding

	"media-pipeline/internal/features"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// featureMaxDimension bounds the image the handcrafted features are computed
// on. Histograms are normalised, so downscaling changes them very little.
const featureMaxDimension = 1024

// ImageExtractor computes colour and texture histograms and, when deep
// features are enabled, an embedding from the configured model.
type ImageExtractor struct {
	opts     Options
	embedder Embedder
}

// NewImageExtractor creates an image extractor. Deep extraction requires an
// embedder.
func NewImageExtractor(opts Options, embedder Embedder) (*ImageExtractor, error) {
	if opts.Deep && embedder == nil {
		return nil, fmt.Errorf("deep features requested without an embedding model: %w", ErrCapabilityUnavailable)
	}
	return &ImageExtractor{opts: opts, embedder: embedder}, nil
}

// MediaType implements Extractor.
func (e *ImageExtractor) MediaType() mediatypes.MediaType {
	return mediatypes.MediaTypeImage
}

// ExtractAll implements Extractor.
func (e *ImageExtractor) ExtractAll(ctx context.Context, path string) (features.Set, error) {
	start := time.Now()
	img, err := loadImage(path, featureMaxDimension)
	if err != nil {
		metrics.ExtractionErrors.WithLabelValues("image", "decode").Inc()
		return nil, err
	}
	observeStage("image", "decode", start)

	start = time.Now()
	nrgba := imaging.Clone(img)
	set := features.Set{
		features.ColorHistogram: features.Vector(colorHistogram(nrgba)),
	}
	if lbp := lbpHistogram(imaging.Grayscale(nrgba)); lbp != nil {
		set[features.TextureLBP] = features.Vector(lbp)
	}
	observeStage("image", "handcrafted", start)

	if e.opts.Deep {
		start = time.Now()
		vec, err := e.embedder.Embed(ctx, path)
		if err != nil {
			metrics.ExtractionErrors.WithLabelValues("image", "deep").Inc()
			return nil, fmt.Errorf("deep features: %w", err)
		}
		set[features.DeepFeatures] = features.Vector(vec)
		observeStage("image", "deep", start)
	}

	return set, nil
}

// Metadata implements Extractor using the image header only.
func (e *ImageExtractor) Metadata(_ context.Context, path string) Result[Metadata] {
	w, h, err := imageDimensions(path)
	if err != nil {
		return Unavailable[Metadata](err)
	}
	return Ok(Metadata{Width: &w, Height: &h})
}

// GenerateThumbnail implements Thumbnailer.
func (e *ImageExtractor) GenerateThumbnail(_ context.Context, src, out string, size int) Result[string] {
	return generateThumbnail(src, out, size)
}

// loadImage decodes an image with EXIF orientation applied, shrinking it to
// fit within maxDim.
func loadImage(path string, maxDim int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		logging.Debug("Downscaling %s from %dx%d for feature extraction", path, b.Dx(), b.Dy())
		img = imaging.Fit(img, maxDim, maxDim, imaging.Box)
	}
	return img, nil
}

// imageDimensions reads width and height without decoding pixel data.
func imageDimensions(path string) (int, int, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// colorHistogram returns a normalised 8x8x8 RGB histogram (512 bins,
// index r*64 + g*8 + b on the top three bits of each channel).
func colorHistogram(img *image.NRGBA) []float64 {
	hist := make([]float64, 512)
	b := img.Bounds()
	n := 0
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			r, g, bl := row[x]>>5, row[x+1]>>5, row[x+2]>>5
			hist[int(r)*64+int(g)*8+int(bl)]++
			n++
		}
	}
	normalize(hist, n)
	return hist
}

// lbpBins maps each 8-bit local binary pattern to one of 59 bins: the 58
// uniform patterns (at most two 0/1 transitions around the circle) in code
// order, and a shared bin for everything else.
var lbpBins = func() [256]uint8 {
	var bins [256]uint8
	next := uint8(0)
	for code := 0; code < 256; code++ {
		transitions := 0
		for i := 0; i < 8; i++ {
			if (code>>i)&1 != (code>>((i+1)%8))&1 {
				transitions++
			}
		}
		if transitions <= 2 {
			bins[code] = next
			next++
		} else {
			bins[code] = 58
		}
	}
	return bins
}()

// lbpHistogram returns the normalised 59-bin uniform LBP histogram (radius 1,
// 8 neighbours) of a grayscale image, or nil if the image is smaller than 3x3.
func lbpHistogram(gray *image.NRGBA) []float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w < 3 || h < 3 {
		return nil
	}

	at := func(x, y int) uint8 { return gray.Pix[y*gray.Stride+x*4] }
	offsets := [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}

	hist := make([]float64, 59)
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := at(x, y)
			code := 0
			for i, o := range offsets {
				if at(x+o[0], y+o[1]) >= c {
					code |= 1 << i
				}
			}
			hist[lbpBins[code]]++
			n++
		}
	}
	normalize(hist, n)
	return hist
}

func normalize(hist []float64, n int) {
	if n == 0 {
		return
	}
	for i := range hist {
		hist[i] /= float64(n)
	}
}

func observeStage(mediaType, stage string, start time.Time) {
	metrics.ExtractionDuration.WithLabelValues(mediaType, stage).Observe(time.Since(start).Seconds())
}
