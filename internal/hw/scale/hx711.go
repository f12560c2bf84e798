package scale

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AddisonG/timtamcam/internal/debug"
	"github.com/AddisonG/timtamcam/internal/hw/gpio"
)

// ErrNotReady is returned when the HX711 does not present a sample in time.
var ErrNotReady = errors.New("hx711: sample not ready")

// HX711 reads a load cell through an HX711 24-bit ADC, bit-banged over
// two GPIO lines:
// - DOUT: serial data, also signals readiness (LOW = sample ready)
// - PD_SCK: serial clock, also powers the chip down when held HIGH
//
// Read sequence:
// 1. Wait for DOUT to go LOW
// 2. Pulse PD_SCK 24 times, sampling DOUT after each rising edge (MSB first)
// 3. One extra pulse selects channel A, gain 128, for the next conversion
type HX711 struct {
	gpio          gpio.Driver
	dataPin       int
	clockPin      int
	referenceUnit float64 // raw counts per gram
	readyTimeout  time.Duration

	mu     sync.Mutex
	offset float64 // raw value of the empty (tared) scale
}

// NewHX711 creates an HX711 driver on the given pins.
// referenceUnit is the calibration factor: raw counts per gram.
func NewHX711(g gpio.Driver, dataPin, clockPin int, referenceUnit float64) (*HX711, error) {
	if referenceUnit == 0 {
		return nil, fmt.Errorf("hx711: reference unit must be non-zero")
	}
	if err := g.SetupPin(clockPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("hx711: setup clock pin: %w", err)
	}
	if err := g.SetupPin(dataPin, gpio.Input); err != nil {
		return nil, fmt.Errorf("hx711: setup data pin: %w", err)
	}
	if err := g.WritePin(clockPin, gpio.Low); err != nil {
		return nil, fmt.Errorf("hx711: clock low: %w", err)
	}

	return &HX711{
		gpio:          g,
		dataPin:       dataPin,
		clockPin:      clockPin,
		referenceUnit: referenceUnit,
		readyTimeout:  2 * time.Second,
	}, nil
}

// Reset power-cycles the chip: PD_SCK held HIGH for over 60µs powers it
// down, LOW wakes it with channel A / gain 128 selected.
func (h *HX711) Reset() error {
	debug.Verbose("HX711: resetting (power cycle on pin %d)", h.clockPin)
	if err := h.gpio.WritePin(h.clockPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(100 * time.Microsecond)
	return h.gpio.WritePin(h.clockPin, gpio.Low)
}

// Tare zeroes the scale with whatever is currently on it, averaging
// the given number of samples.
func (h *HX711) Tare(samples int) error {
	raw, err := h.readAverage(samples)
	if err != nil {
		return fmt.Errorf("hx711: tare: %w", err)
	}
	h.mu.Lock()
	h.offset = raw
	h.mu.Unlock()
	debug.Verbose("HX711: tared, offset=%.1f over %d samples", raw, samples)
	return nil
}

// Weight returns the current weight in grams, averaged over samples readings.
func (h *HX711) Weight(samples int) (float64, error) {
	raw, err := h.readAverage(samples)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	offset := h.offset
	h.mu.Unlock()
	return (raw - offset) / h.referenceUnit, nil
}

func (h *HX711) readAverage(samples int) (float64, error) {
	if samples <= 0 {
		samples = 1
	}
	var sum int64
	for i := 0; i < samples; i++ {
		v, err := h.readRaw()
		if err != nil {
			return 0, err
		}
		sum += int64(v)
	}
	return float64(sum) / float64(samples), nil
}

// readRaw reads one 24-bit two's-complement sample.
func (h *HX711) readRaw() (int32, error) {
	if err := h.waitReady(); err != nil {
		return 0, err
	}

	var value int32
	for i := 0; i < 24; i++ {
		bit, err := h.clockBit()
		if err != nil {
			return 0, err
		}
		value <<= 1
		if bit == gpio.High {
			value |= 1
		}
	}

	// 25th pulse: channel A, gain 128 for the next conversion
	if _, err := h.clockBit(); err != nil {
		return 0, err
	}

	// Sign extend 24-bit two's complement
	if value&0x800000 != 0 {
		value -= 0x1000000
	}

	debug.Trace("HX711: raw sample %d", value)
	return value, nil
}

// waitReady polls DOUT until it goes LOW (sample ready).
func (h *HX711) waitReady() error {
	deadline := time.Now().Add(h.readyTimeout)
	for {
		level, err := h.gpio.ReadPin(h.dataPin)
		if err != nil {
			return err
		}
		if level == gpio.Low {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// clockBit pulses PD_SCK once and samples DOUT.
// PD_SCK must not stay HIGH for 60µs or the chip powers down, so no
// sleeps between the edges.
func (h *HX711) clockBit() (gpio.Level, error) {
	if err := h.gpio.WritePin(h.clockPin, gpio.High); err != nil {
		return gpio.Low, err
	}
	bit, err := h.gpio.ReadPin(h.dataPin)
	if err != nil {
		return gpio.Low, err
	}
	if err := h.gpio.WritePin(h.clockPin, gpio.Low); err != nil {
		return gpio.Low, err
	}
	return bit, nil
}
