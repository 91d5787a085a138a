package chread

import (
	"math"
	"testing"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{0.042, 0.042},
	}
	for _, tt := range tests {
		if got := safeFloat(tt.in); got != tt.want {
			t.Errorf("safeFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
