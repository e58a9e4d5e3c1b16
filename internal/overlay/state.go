package overlay

import (
	"fmt"
	"time"

	"github.com/john/lastemote/internal/emote"
)

// Phase is the engine's lifecycle phase
type Phase int

const (
	Idle Phase = iota
	Active
	Decaying
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Decaying:
		return "decaying"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the combo state. Generation increases on every transition;
// timers carry the generation they were armed in.
type State struct {
	Active     emote.Ref
	Count      int
	Phase      Phase
	Generation uint64
	// Paused marks a Decaying combo whose decay clock is stopped until the
	// fade timer fires again.
	Paused bool
}

// Settings are the engine's behaviour switches
type Settings struct {
	FadeTimeout         time.Duration // 0 disables fading entirely
	ShowCombo           bool
	ComboSave           bool
	FireShow            bool
	FireComboCount      int
	MaxFire             float64
	ComboPulseAnimation bool
	FireAnimation       bool
	ComboDecayAnimation bool
}

// DefaultSettings returns the stock overlay behaviour
func DefaultSettings() Settings {
	return Settings{
		FadeTimeout:         10 * time.Second,
		ShowCombo:           true,
		ComboSave:           true,
		FireShow:            true,
		FireComboCount:      5,
		MaxFire:             8,
		ComboPulseAnimation: true,
		FireAnimation:       true,
		ComboDecayAnimation: true,
	}
}

const (
	maxDecayDelay  = 500 * time.Millisecond
	minDecayDelay  = 100 * time.Millisecond
	decayDelayStep = 10 * time.Millisecond
	decayStepCap   = 40
)

// DecayDelay returns the wait before the next decay step at count.
// Larger combos decay faster, bounded to [100ms, 500ms].
func DecayDelay(count int) time.Duration {
	steps := count - 1
	if steps > decayStepCap {
		steps = decayStepCap
	}
	d := maxDecayDelay - time.Duration(steps)*decayDelayStep
	if d < minDecayDelay {
		return minDecayDelay
	}
	if d > maxDecayDelay {
		return maxDecayDelay
	}
	return d
}

// fireSpan is how many combo steps past the threshold double the fire size
const fireSpan = 11

// Intensity maps a combo count to the fire scale. Zero means no fire.
func Intensity(count, threshold int, ceiling float64, enabled, comboVisible bool) float64 {
	if !enabled || !comboVisible || count < threshold {
		return 0
	}
	v := 1 + float64(count-threshold)/fireSpan
	if v > ceiling {
		v = ceiling
	}
	if v < 1 {
		v = 1
	}
	return v
}
