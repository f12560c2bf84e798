package overlay

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/AddisonG/timtamcam/internal/debug"
)

// Overlay decorates captured frames with a seasonal theme: the mask is
// subtracted from the frame (punching dark holes), then the border is
// added on top. Both operations saturate per channel.
type Overlay struct {
	mask   *image.RGBA
	border *image.RGBA
}

// themeFor maps a month to an asset theme name, "" when the month is plain.
func themeFor(month time.Month) string {
	switch month {
	case time.December:
		return "christmas"
	case time.October:
		return "halloween"
	default:
		return ""
	}
}

// New builds an overlay from already-decoded mask and border images.
func New(mask, border image.Image) *Overlay {
	return &Overlay{mask: toRGBA(mask), border: toRGBA(border)}
}

// Load returns the seasonal overlay for the given month, or nil when the
// month has no theme or the assets are not present on disk.
func Load(assetsDir string, month time.Month) (*Overlay, error) {
	theme := themeFor(month)
	if theme == "" {
		return nil, nil
	}

	mask, err := loadPNG(filepath.Join(assetsDir, theme+"-mask.png"))
	if err != nil {
		if os.IsNotExist(err) {
			debug.Verbose("Overlay: no %s assets in %s", theme, assetsDir)
			return nil, nil
		}
		return nil, fmt.Errorf("overlay: load %s mask: %w", theme, err)
	}
	border, err := loadPNG(filepath.Join(assetsDir, theme+"-border.png"))
	if err != nil {
		return nil, fmt.Errorf("overlay: load %s border: %w", theme, err)
	}

	debug.Info("Overlay: using %s theme", theme)
	return New(mask, border), nil
}

// Apply returns a copy of src with the mask subtracted and the border added.
func (o *Overlay) Apply(src image.Image) image.Image {
	b := src.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, src, b.Min, draw.Src)
	subtract(out, o.mask)
	add(out, o.border)
	return out
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

// subtract performs dst = clamp(dst - src) per RGB channel over the
// overlapping region; alpha is left alone.
func subtract(dst, src *image.RGBA) {
	region := dst.Bounds().Intersect(src.Bounds())
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			d := dst.PixOffset(x, y)
			s := src.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := int(dst.Pix[d+c]) - int(src.Pix[s+c])
				if v < 0 {
					v = 0
				}
				dst.Pix[d+c] = uint8(v)
			}
		}
	}
}

// add performs dst = clamp(dst + src) per RGB channel over the
// overlapping region; alpha is left alone.
func add(dst, src *image.RGBA) {
	region := dst.Bounds().Intersect(src.Bounds())
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			d := dst.PixOffset(x, y)
			s := src.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := int(dst.Pix[d+c]) + int(src.Pix[s+c])
				if v > 255 {
					v = 255
				}
				dst.Pix[d+c] = uint8(v)
			}
		}
	}
}
