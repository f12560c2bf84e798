package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/AddisonG/timtamcam/internal/debug"
	"github.com/AddisonG/timtamcam/internal/hw/scale"
	"github.com/AddisonG/timtamcam/internal/notify"
	"github.com/AddisonG/timtamcam/internal/store"
)

// Recorder produces a GIF of whatever the camera currently sees and
// returns the path of the written file.
type Recorder interface {
	Record(ctx context.Context) (string, error)
}

// EventSink persists detected thefts.
type EventSink interface {
	Insert(e *store.Event) error
}

// Params tunes the detection loop.
type Params struct {
	ItemWeightG  float64       // weight of one biscuit
	DeltaWeightG float64       // tolerance when re-checking after recording
	ItemFraction float64       // fraction of one item that counts as a theft
	ReadSamples  int           // samples averaged per reading
	PollInterval time.Duration // delay between readings
	QuietStart   int           // no alerts at or after this hour
	QuietEnd     int           // no alerts at or before this hour
	SkipWeekends bool
}

// Monitor watches the Tim Tams. Ever vigilant.
//
// Each poll compares the current weight against the previous reading; a
// drop of at least ItemFraction of one biscuit triggers an alert: record
// a GIF, re-check the scale, and post to the channel. Alerts are strictly
// sequential, one per detected drop.
type Monitor struct {
	scale    scale.Scale
	recorder Recorder
	notifier notify.Notifier
	events   EventSink
	params   Params

	now       func() time.Time
	recoverFn func(ctx context.Context) error // reconnects the camera, optional

	mu       sync.Mutex
	current  float64
	baseline float64
	hasBase  bool
}

func New(s scale.Scale, r Recorder, n notify.Notifier, events EventSink, p Params) *Monitor {
	return &Monitor{
		scale:    s,
		recorder: r,
		notifier: n,
		events:   events,
		params:   p,
		now:      time.Now,
	}
}

// SetRecoverFunc installs a camera recovery hook, called once when a
// recording fails before giving up on the clip.
func (m *Monitor) SetRecoverFunc(f func(ctx context.Context) error) {
	m.recoverFn = f
}

// Snapshot returns the latest reading and the current baseline.
func (m *Monitor) Snapshot() (current, baseline float64, hasBaseline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.baseline, m.hasBase
}

// Run polls the scale until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	debug.Info("Now monitoring Tim Tams")

	ticker := time.NewTicker(m.params.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		m.poll(ctx)
	}
}

// poll takes one reading and reacts to it.
func (m *Monitor) poll(ctx context.Context) {
	weight, err := m.scale.Weight(m.params.ReadSamples)
	if err != nil {
		debug.Error(fmt.Errorf("monitor: read weight: %w", err))
		return
	}
	debug.Weight(weight)

	m.mu.Lock()
	m.current = weight
	m.mu.Unlock()

	if m.quiet(m.now()) {
		// Don't carry a baseline through quiet hours: a biscuit taken on
		// Sunday must not alert on Monday morning.
		m.clearBaseline()
		return
	}

	m.mu.Lock()
	hasBase, base := m.hasBase, m.baseline
	m.mu.Unlock()

	if hasBase {
		taken := (base - weight) / m.params.ItemWeightG
		debug.Verbose("monitor: baseline %.1fg, now %.1fg, taken %.2f items", base, weight, taken)
		if taken >= m.params.ItemFraction {
			debug.Alert(taken, base)
			m.alert(ctx, taken, base)
			m.clearBaseline()
			return
		}
	}
	m.setBaseline(weight)
}

// quiet reports whether alerts are suppressed at the given time.
func (m *Monitor) quiet(t time.Time) bool {
	if m.params.SkipWeekends {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true
		}
	}
	hour := t.Hour()
	return hour >= m.params.QuietStart || hour <= m.params.QuietEnd
}

// alert records a clip and posts it, storing the event either way.
func (m *Monitor) alert(ctx context.Context, taken, previous float64) {
	event := &store.Event{
		At:           m.now(),
		WeightBefore: previous,
		ItemsTaken:   taken,
	}

	path, err := m.recorder.Record(ctx)
	if err != nil {
		debug.Error(fmt.Errorf("monitor: record gif: %w", err))

		// Try to recover the camera and record once more
		if m.recoverFn != nil {
			if rerr := m.recoverFn(ctx); rerr != nil {
				debug.Error(fmt.Errorf("monitor: recover camera: %w", rerr))
			} else if path, err = m.recorder.Record(ctx); err == nil {
				debug.Info("Successfully recovered from bad camera")
			}
		}

		if err != nil {
			msg := "Timtam tampering detected! But the camera is disconnected..."
			if perr := m.notifier.PostMessage(ctx, msg); perr != nil {
				debug.Error(perr)
			}
			m.saveEvent(event)
			return
		}
	}
	event.GifPath = path

	// The recording took a few seconds; if the weight is back, someone
	// just picked the packet up and put it down again.
	if after, err := m.scale.Weight(m.params.ReadSamples); err == nil {
		event.WeightAfter = after
		if previous <= after+m.params.DeltaWeightG {
			debug.Info("Weight has not changed after recording. Will NOT post to Slack.")
			m.saveEvent(event)
			return
		}
	}

	msg := fmt.Sprintf("Timtam tampering detected! Someone took %d Tim Tams!", int(math.Round(taken)))
	if err := m.notifier.UploadFile(ctx, path, msg); err != nil {
		debug.Error(err)
	} else {
		event.Posted = true
	}
	m.saveEvent(event)
}

func (m *Monitor) saveEvent(e *store.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Insert(e); err != nil {
		debug.Error(err)
	}
}

func (m *Monitor) setBaseline(w float64) {
	m.mu.Lock()
	m.baseline = w
	m.hasBase = true
	m.mu.Unlock()
}

func (m *Monitor) clearBaseline() {
	m.mu.Lock()
	m.hasBase = false
	m.mu.Unlock()
}
