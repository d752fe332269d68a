package domain

import (
	"fmt"
	"math"
)

// NormalizePrice validates an externally supplied price and rounds it to
// cents. The price must be finite, positive, and have at most 2 decimal
// places.
func NormalizePrice(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("price must be a finite number")
	}
	if f <= 0 {
		return 0, fmt.Errorf("price must be positive")
	}
	// Round after scaling to avoid artifacts such as 1.10 * 1000 = 1099.9999...
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("price must have at most 2 decimal places")
	}
	return RoundCents(f), nil
}

// RoundCents rounds a price to 2 decimal places.
func RoundCents(f float64) float64 {
	return math.Round(f*100) / 100
}
