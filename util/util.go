// Package util contains misc internal utilities.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Limiter holds software travel limits for an axis
type Limiter struct {
	Min float64 `json:"min" yaml:"Min" koanf:"Min"`
	Max float64 `json:"max" yaml:"Max" koanf:"Max"`
}

// Check returns true if f lies within [Min, Max]
func (l Limiter) Check(f float64) bool {
	return f >= l.Min && f <= l.Max
}

// Set returns true if both limits are finite and Min < Max.  The zero
// Limiter is not set
func (l Limiter) Set() bool {
	if math.IsNaN(l.Min) || math.IsNaN(l.Max) || math.IsInf(l.Min, 0) || math.IsInf(l.Max, 0) {
		return false
	}
	return l.Min < l.Max
}

// Clamp limits a value to the range [low, high]
func Clamp(input, low, high float64) float64 {
	if input < low {
		return low
	} else if input > high {
		return high
	}
	return input
}

// FloatSliceToCSV converts a slice of floats to CSV formatted data.
// e.g., []float64{1,2.5,3} => "1, 2.5, 3"
func FloatSliceToCSV(fs []float64) string {
	s := make([]string, len(fs))
	for i, v := range fs {
		s[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(s, ", ")
}

// CSVToFloatSlice parses comma separated floats, ignoring surrounding whitespace.
// e.g., "3123.09, -3232.33, 1400" => []float64{3123.09, -3232.33, 1400}
func CSVToFloatSlice(s string) ([]float64, error) {
	pieces := strings.Split(s, ",")
	out := make([]float64, len(pieces))
	for i, p := range pieces {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("element %d of %q: %w", i, s, err)
		}
		out[i] = f
	}
	return out, nil
}
