package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"testing"
	"time"

	"github.com/AddisonG/timtamcam/internal/logic/overlay"
)

// stubCamera serves a fixed set of frames, or an error.
type stubCamera struct {
	frames []image.Image
	err    error
	calls  int
}

func (s *stubCamera) Record(_ context.Context, _ time.Duration, _ int) ([]image.Image, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.frames, nil
}

func solidFrame(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func testParams(t *testing.T) Params {
	t.Helper()
	return Params{
		Duration:  4 * time.Second,
		FPS:       3,
		OutputDir: t.TempDir(),
	}
}

func TestRecord_WritesAnimatedGIF(t *testing.T) {
	cam := &stubCamera{frames: []image.Image{
		solidFrame(8, 8, color.RGBA{R: 255, A: 255}),
		solidFrame(8, 8, color.RGBA{G: 255, A: 255}),
		solidFrame(8, 8, color.RGBA{B: 255, A: 255}),
	}}
	r := NewRecorder(cam, nil, testParams(t))

	path, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer f.Close()
	decoded, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(decoded.Image) != 3 {
		t.Errorf("gif has %d frames, want 3", len(decoded.Image))
	}
	for i, d := range decoded.Delay {
		if d != frameDelay {
			t.Errorf("frame %d delay = %d, want %d", i, d, frameDelay)
		}
	}
}

func TestRecord_CameraErrorPropagates(t *testing.T) {
	wantErr := errors.New("stream gone")
	cam := &stubCamera{err: wantErr}
	r := NewRecorder(cam, nil, testParams(t))

	_, err := r.Record(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped camera error, got: %v", err)
	}
}

func TestRecord_NoFramesIsError(t *testing.T) {
	cam := &stubCamera{}
	r := NewRecorder(cam, nil, testParams(t))

	if _, err := r.Record(context.Background()); err == nil {
		t.Error("expected error for zero frames, got nil")
	}
}

func TestRecord_AppliesOverlay(t *testing.T) {
	// White frame minus a white mask must come out black.
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	cam := &stubCamera{frames: []image.Image{solidFrame(4, 4, white)}}
	ov := overlay.New(
		solidFrame(4, 4, white),
		solidFrame(4, 4, color.RGBA{A: 255}),
	)
	r := NewRecorder(cam, ov, testParams(t))

	path, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := gif.Decode(f)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	rc, gc, bc, _ := img.At(2, 2).RGBA()
	if rc != 0 || gc != 0 || bc != 0 {
		t.Errorf("pixel = (%d, %d, %d), want black after overlay", rc, gc, bc)
	}
}

func TestRecord_UnwritableOutputDir(t *testing.T) {
	cam := &stubCamera{frames: []image.Image{solidFrame(2, 2, color.RGBA{A: 255})}}
	p := testParams(t)
	p.OutputDir = "/nonexistent/dir"
	r := NewRecorder(cam, nil, p)

	if _, err := r.Record(context.Background()); err == nil {
		t.Error("expected error for unwritable output dir, got nil")
	}
}
