package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/AddisonG/timtamcam/internal/debug"
)

// ErrStreamDead is returned when the camera stream closes or produces
// empty frames mid-recording.
var ErrStreamDead = errors.New("camera: stream unreachable or closed")

// RTSP is a Camera implementation that pulls frames from a network
// camera over its RTSP stream using OpenCV.
// The host can be swapped at runtime after the camera is rediscovered.
type RTSP struct {
	username string
	password string
	stream   string

	mu   sync.Mutex
	host string
}

// NewRTSP creates an RTSP camera client.
func NewRTSP(username, password, host, stream string) *RTSP {
	return &RTSP{
		username: username,
		password: password,
		stream:   stream,
		host:     host,
	}
}

// SetHost points the camera at a new address, e.g. after rediscovery.
func (r *RTSP) SetHost(host string) {
	r.mu.Lock()
	r.host = host
	r.mu.Unlock()
	debug.Verbose("Camera: host set to %s", host)
}

// StreamURL returns the full RTSP URL for the current host.
func (r *RTSP) StreamURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("rtsp://%s:%s@%s/%s", r.username, r.password, r.host, r.stream)
}

// Record connects to the stream and grabs frames for the given duration,
// keeping fps frames per second and converting them from OpenCV's BGR
// layout to RGB.
func (r *RTSP) Record(ctx context.Context, duration time.Duration, fps int) ([]image.Image, error) {
	url := r.StreamURL()
	debug.Live("Camera: connecting to stream")

	cap, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("camera: open stream: %w", err)
	}
	defer cap.Close()

	streamFPS := int(cap.Get(gocv.VideoCaptureFPS))
	if streamFPS <= 0 {
		streamFPS = 25 // RTSP cameras don't always report fps
	}
	keepEvery := streamFPS / fps
	if keepEvery < 1 {
		keepEvery = 1
	}
	want := int(duration.Seconds()) * fps
	debug.Verbose("Camera: stream at %d fps, keeping every %dth frame, want %d frames", streamFPS, keepEvery, want)

	frame := gocv.NewMat()
	defer frame.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	var frames []image.Image
	read := 0
	for len(frames) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ok := cap.Read(&frame)
		read++

		if read%keepEvery != 0 {
			continue
		}

		if !cap.IsOpened() || !ok || frame.Empty() {
			return nil, ErrStreamDead
		}

		gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB)
		img, err := rgb.ToImage()
		if err != nil {
			return nil, fmt.Errorf("camera: convert frame: %w", err)
		}
		frames = append(frames, img)
		debug.Frame(len(frames), want)
	}

	return frames, nil
}
