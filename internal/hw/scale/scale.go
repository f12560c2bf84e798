package scale

// Scale is the high-level interface used by the rest of the application.
// It represents an abstract weight sensor, regardless of how it's read
// (HX711 over GPIO, a fake in tests, etc.).
type Scale interface {
	// Tare zeroes the scale with whatever is currently on it.
	Tare(samples int) error
	// Weight returns the current weight in grams, averaged over samples readings.
	Weight(samples int) (float64, error)
}
