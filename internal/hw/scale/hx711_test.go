package scale

import (
	"errors"
	"testing"
	"time"

	"github.com/AddisonG/timtamcam/internal/hw/gpio"
)

// fakeHX711 simulates the chip side of the HX711 protocol on a gpio.Driver.
// Each rising clock edge shifts out the next bit (MSB first) of the current
// scripted sample; the 25th edge latches the next sample from the queue.
type fakeHX711 struct {
	dataPin  int
	clockPin int
	samples  []int32 // raw 24-bit samples to serve, last one repeats
	ready    bool    // false = DOUT stays HIGH (never ready)

	clockHigh bool
	bitIndex  int
	sample    int
	curBit    gpio.Level
}

func newFakeHX711(dataPin, clockPin int, samples ...int32) *fakeHX711 {
	return &fakeHX711{dataPin: dataPin, clockPin: clockPin, samples: samples, ready: true}
}

func (f *fakeHX711) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (f *fakeHX711) WritePin(pin int, level gpio.Level) error {
	if pin != f.clockPin {
		return nil
	}
	rising := level == gpio.High && !f.clockHigh
	f.clockHigh = level == gpio.High
	if !rising {
		return nil
	}
	if f.bitIndex < 24 {
		value := f.current()
		f.curBit = gpio.Level(value>>(23-f.bitIndex)&1 == 1)
		f.bitIndex++
	} else {
		// gain pulse: conversion done, move to the next sample
		f.bitIndex = 0
		if f.sample < len(f.samples)-1 {
			f.sample++
		}
	}
	return nil
}

func (f *fakeHX711) ReadPin(pin int) (gpio.Level, error) {
	if pin != f.dataPin {
		return gpio.Low, nil
	}
	if f.bitIndex == 0 && !f.clockHigh {
		// idle: DOUT low means a sample is ready
		if f.ready {
			return gpio.Low, nil
		}
		return gpio.High, nil
	}
	return f.curBit, nil
}

func (f *fakeHX711) Close() error { return nil }

func (f *fakeHX711) current() int32 {
	// samples are stored as signed values, serve their 24-bit encoding
	v := f.samples[f.sample]
	return v & 0xFFFFFF
}

func newTestHX711(t *testing.T, fake *fakeHX711, referenceUnit float64) *HX711 {
	t.Helper()
	h, err := NewHX711(fake, fake.dataPin, fake.clockPin, referenceUnit)
	if err != nil {
		t.Fatalf("NewHX711: %v", err)
	}
	return h
}

func TestNewHX711_ZeroReferenceUnit(t *testing.T) {
	fake := newFakeHX711(5, 6, 0)
	if _, err := NewHX711(fake, 5, 6, 0); err == nil {
		t.Error("expected error for zero reference unit, got nil")
	}
}

func TestReadRaw_Positive(t *testing.T) {
	fake := newFakeHX711(5, 6, 4460)
	h := newTestHX711(t, fake, 1)

	v, err := h.readRaw()
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	if v != 4460 {
		t.Errorf("readRaw = %d, want 4460", v)
	}
}

func TestReadRaw_Negative(t *testing.T) {
	// -100 encoded as 24-bit two's complement must come back as -100
	fake := newFakeHX711(5, 6, -100)
	h := newTestHX711(t, fake, 1)

	v, err := h.readRaw()
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	if v != -100 {
		t.Errorf("readRaw = %d, want -100", v)
	}
}

func TestReadRaw_MaxNegative(t *testing.T) {
	fake := newFakeHX711(5, 6, -0x800000)
	h := newTestHX711(t, fake, 1)

	v, err := h.readRaw()
	if err != nil {
		t.Fatalf("readRaw: %v", err)
	}
	if v != -0x800000 {
		t.Errorf("readRaw = %d, want %d", v, -0x800000)
	}
}

func TestWeight_UsesReferenceUnit(t *testing.T) {
	// 4460 raw counts at 446 counts/gram = 10 grams
	fake := newFakeHX711(5, 6, 4460)
	h := newTestHX711(t, fake, 446)

	w, err := h.Weight(1)
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 10 {
		t.Errorf("Weight = %v, want 10", w)
	}
}

func TestWeight_AveragesSamples(t *testing.T) {
	fake := newFakeHX711(5, 6, 100, 200, 300, 300)
	h := newTestHX711(t, fake, 1)

	w, err := h.Weight(3)
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 200 {
		t.Errorf("Weight = %v, want 200 (average of 100, 200, 300)", w)
	}
}

func TestTare_SubtractsOffset(t *testing.T) {
	// Tare at 1000 counts, then read 1446: (1446-1000)/446 = 1 gram
	fake := newFakeHX711(5, 6, 1000, 1446)
	h := newTestHX711(t, fake, 446)

	if err := h.Tare(1); err != nil {
		t.Fatalf("Tare: %v", err)
	}
	w, err := h.Weight(1)
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 1 {
		t.Errorf("Weight = %v, want 1", w)
	}
}

func TestWeight_NotReadyTimesOut(t *testing.T) {
	fake := newFakeHX711(5, 6, 0)
	fake.ready = false
	h := newTestHX711(t, fake, 446)
	h.readyTimeout = 5 * time.Millisecond

	_, err := h.Weight(1)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got: %v", err)
	}
}

func TestWeight_ZeroSamplesReadsOne(t *testing.T) {
	fake := newFakeHX711(5, 6, 446)
	h := newTestHX711(t, fake, 446)

	w, err := h.Weight(0)
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 1 {
		t.Errorf("Weight = %v, want 1", w)
	}
}
