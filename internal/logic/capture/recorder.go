package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/AddisonG/timtamcam/internal/debug"
	"github.com/AddisonG/timtamcam/internal/hw/camera"
	"github.com/AddisonG/timtamcam/internal/logic/overlay"
)

// gifName is the output filename inside the configured directory.
const gifName = "timtam-thief.gif"

// frameDelay is hundredths of a second per GIF frame (0.2s, so a 4s clip
// at 3fps plays back slightly slowed down).
const frameDelay = 20

// Params configures a Recorder.
type Params struct {
	Duration  time.Duration // clip length
	FPS       int           // frames kept per second of stream
	OutputDir string        // where the GIF is written
	Optimize  bool          // run gifsicle when available
}

// Recorder contains the high-level logic turning a camera into an
// animated GIF on disk: record, decorate, quantize, encode, optimize.
type Recorder struct {
	camera  camera.Camera
	overlay *overlay.Overlay
	params  Params
}

func NewRecorder(cam camera.Camera, ov *overlay.Overlay, p Params) *Recorder {
	return &Recorder{
		camera:  cam,
		overlay: ov,
		params:  p,
	}
}

// Record captures a clip and writes it as an animated GIF,
// returning the path of the written file.
func (r *Recorder) Record(ctx context.Context) (string, error) {
	debug.Live("Recording a gif of the thief")

	frames, err := r.camera.Record(ctx, r.params.Duration, r.params.FPS)
	if err != nil {
		return "", fmt.Errorf("capture: record clip: %w", err)
	}
	if len(frames) == 0 {
		return "", errors.New("capture: no frames recorded")
	}

	if r.overlay != nil {
		for i := range frames {
			frames[i] = r.overlay.Apply(frames[i])
		}
	}

	path := filepath.Join(r.params.OutputDir, gifName)
	if err := encodeGIF(path, frames); err != nil {
		return "", err
	}
	debug.Info("Saved gif (%d frames) to %s", len(frames), path)

	if r.params.Optimize {
		r.optimizeGIF(ctx, path)
	}

	return path, nil
}

// encodeGIF quantizes the frames and writes an animated GIF.
func encodeGIF(path string, frames []image.Image) error {
	anim := &gif.GIF{}
	for _, frame := range frames {
		b := frame.Bounds()
		paletted := image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, b, frame, b.Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, frameDelay)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: create gif: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, anim); err != nil {
		return fmt.Errorf("capture: encode gif: %w", err)
	}
	return nil
}

// optimizeGIF shrinks the file in place with gifsicle. Missing binary or
// a failed run only costs us file size, so neither is an error.
func (r *Recorder) optimizeGIF(ctx context.Context, path string) {
	bin, err := exec.LookPath("gifsicle")
	if err != nil {
		debug.Verbose("gifsicle not installed, skipping optimization")
		return
	}
	if err := exec.CommandContext(ctx, bin, "-O3", "--batch", path).Run(); err != nil {
		debug.Error(fmt.Errorf("capture: gifsicle: %w", err))
		return
	}
	debug.Info("Optimised gif")
}
