package overlay

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestThemeFor(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.December, "christmas"},
		{time.October, "halloween"},
		{time.June, ""},
		{time.January, ""},
	}
	for _, tc := range cases {
		if got := themeFor(tc.month); got != tc.want {
			t.Errorf("themeFor(%v) = %q, want %q", tc.month, got, tc.want)
		}
	}
}

func TestApply_SubtractSaturates(t *testing.T) {
	src := solidRGBA(2, 2, color.RGBA{R: 50, G: 100, B: 200, A: 255})
	mask := solidRGBA(2, 2, color.RGBA{R: 80, G: 30, B: 0, A: 255})
	border := solidRGBA(2, 2, color.RGBA{A: 255})

	out := New(mask, border).Apply(src).(*image.RGBA)
	got := out.RGBAAt(1, 1)
	if got.R != 0 {
		t.Errorf("R = %d, want 0 (50-80 clamps)", got.R)
	}
	if got.G != 70 {
		t.Errorf("G = %d, want 70", got.G)
	}
	if got.B != 200 {
		t.Errorf("B = %d, want 200", got.B)
	}
}

func TestApply_AddSaturates(t *testing.T) {
	src := solidRGBA(2, 2, color.RGBA{R: 200, G: 10, B: 0, A: 255})
	mask := solidRGBA(2, 2, color.RGBA{A: 255})
	border := solidRGBA(2, 2, color.RGBA{R: 100, G: 20, B: 5, A: 255})

	out := New(mask, border).Apply(src).(*image.RGBA)
	got := out.RGBAAt(0, 0)
	if got.R != 255 {
		t.Errorf("R = %d, want 255 (200+100 clamps)", got.R)
	}
	if got.G != 30 {
		t.Errorf("G = %d, want 30", got.G)
	}
	if got.B != 5 {
		t.Errorf("B = %d, want 5", got.B)
	}
}

func TestApply_DoesNotMutateSource(t *testing.T) {
	src := solidRGBA(2, 2, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	mask := solidRGBA(2, 2, color.RGBA{R: 50, A: 255})
	border := solidRGBA(2, 2, color.RGBA{A: 255})

	New(mask, border).Apply(src)
	if got := src.RGBAAt(0, 0); got.R != 100 {
		t.Errorf("source mutated: R = %d, want 100", got.R)
	}
}

func TestApply_SmallerMaskOnlyTouchesOverlap(t *testing.T) {
	src := solidRGBA(4, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	mask := solidRGBA(2, 2, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	border := solidRGBA(2, 2, color.RGBA{A: 255})

	out := New(mask, border).Apply(src).(*image.RGBA)
	if got := out.RGBAAt(0, 0); got.R != 0 {
		t.Errorf("inside overlap: R = %d, want 0", got.R)
	}
	if got := out.RGBAAt(3, 3); got.R != 100 {
		t.Errorf("outside overlap: R = %d, want 100", got.R)
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_PlainMonth(t *testing.T) {
	o, err := Load(t.TempDir(), time.June)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o != nil {
		t.Error("expected nil overlay for a plain month")
	}
}

func TestLoad_MissingAssets(t *testing.T) {
	o, err := Load(t.TempDir(), time.December)
	if err != nil {
		t.Fatalf("missing assets should not be an error, got: %v", err)
	}
	if o != nil {
		t.Error("expected nil overlay when assets are absent")
	}
}

func TestLoad_ChristmasAssets(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "christmas-mask.png"), solidRGBA(2, 2, color.RGBA{A: 255}))
	writePNG(t, filepath.Join(dir, "christmas-border.png"), solidRGBA(2, 2, color.RGBA{A: 255}))

	o, err := Load(dir, time.December)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o == nil {
		t.Fatal("expected an overlay when both assets exist")
	}
}

func TestLoad_MaskWithoutBorder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "halloween-mask.png"), solidRGBA(2, 2, color.RGBA{A: 255}))

	if _, err := Load(dir, time.October); err == nil {
		t.Error("expected error when the border is missing but the mask exists")
	}
}

func TestLoad_CorruptAsset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "christmas-mask.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir, time.December); err == nil {
		t.Error("expected error for a corrupt mask")
	}
}
