package overlay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, DecayDelay(1))
	assert.Equal(t, 490*time.Millisecond, DecayDelay(2))
	assert.Equal(t, 300*time.Millisecond, DecayDelay(21))
	assert.Equal(t, 100*time.Millisecond, DecayDelay(41))
	assert.Equal(t, 100*time.Millisecond, DecayDelay(100))
	assert.Equal(t, 500*time.Millisecond, DecayDelay(0))
	assert.Equal(t, 500*time.Millisecond, DecayDelay(-3))
}

func TestDecayDelayNonIncreasing(t *testing.T) {
	prev := DecayDelay(0)
	for count := 1; count <= 200; count++ {
		d := DecayDelay(count)
		assert.LessOrEqual(t, d, prev, "count %d", count)
		assert.GreaterOrEqual(t, d, minDecayDelay)
		assert.LessOrEqual(t, d, maxDecayDelay)
		prev = d
	}
}

func TestIntensity(t *testing.T) {
	tests := []struct {
		name                  string
		count, threshold      int
		ceiling               float64
		enabled, comboVisible bool
		want                  float64
	}{
		{"below threshold", 4, 5, 8, true, true, 0},
		{"at threshold", 5, 5, 8, true, true, 1},
		{"doubled", 16, 5, 8, true, true, 2},
		{"capped", 1000, 5, 8, true, true, 8},
		{"disabled", 50, 5, 8, false, true, 0},
		{"combo hidden", 50, 5, 8, true, false, 0},
		{"ceiling below one clamps to one", 50, 5, 0.5, true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intensity(tt.count, tt.threshold, tt.ceiling, tt.enabled, tt.comboVisible)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	assert.InDelta(t, 1.0909, Intensity(6, 5, 8, true, true), 0.0001)
	assert.LessOrEqual(t, Intensity(1000, 5, 8, true, true), 8.0)
}

func TestPhaseJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		P Phase `json:"p"`
	}{Decaying})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"p":"decaying"}`, string(data))
	assert.Equal(t, "phase(9)", Phase(9).String())
}
