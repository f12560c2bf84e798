package camera

import (
	"context"
	"image"
	"time"
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract video source, regardless of how it's reached
// (RTSP, USB, a fake in tests, etc.).
type Camera interface {
	// Record grabs frames for the given duration, keeping fps frames per
	// second of the source stream.
	Record(ctx context.Context, duration time.Duration, fps int) ([]image.Image, error)
}
