package overlay

import (
	"fmt"
	"sync"

	"github.com/john/lastemote/internal/emote"
)

// Snapshot is everything the presentation layer needs after one transition
type Snapshot struct {
	Emote        *emote.Ref `json:"emote,omitempty"`
	Phase        Phase      `json:"phase"`
	Count        int        `json:"count"`
	ComboVisible bool       `json:"combo_visible"`
	ComboText    string     `json:"combo_text,omitempty"`
	Intensity    float64    `json:"intensity"`
	FireVisible  bool       `json:"fire_visible"`
	FireAnimated bool       `json:"fire_animated"`
	Pulse        bool       `json:"pulse,omitempty"`
	FadeOut      bool       `json:"fade_out,omitempty"`
	Generation   uint64     `json:"generation"`
}

// URL returns the emote asset URL, or "" when no emote is shown
func (s Snapshot) URL() string {
	if s.Emote == nil {
		return ""
	}
	return s.Emote.URL
}

// Sink receives one snapshot per engine transition. Render is called on
// the engine's goroutine and must not block.
type Sink interface {
	Render(Snapshot)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Snapshot)

func (f SinkFunc) Render(s Snapshot) { f(s) }

// Presenter is the element-level rendering surface
type Presenter interface {
	SetEmote(url string) // "" clears the emote
	SetCombo(count int, visible bool)
	SetFireIntensity(scalar float64, visible bool)
	Pulse()
}

// PresenterSink drives a Presenter from snapshots
func PresenterSink(p Presenter) Sink {
	return SinkFunc(func(s Snapshot) {
		p.SetEmote(s.URL())
		p.SetCombo(s.Count, s.ComboVisible)
		p.SetFireIntensity(s.Intensity, s.FireVisible)
		if s.Pulse {
			p.Pulse()
		}
	})
}

// Fanout forwards every snapshot to each sink in order
type Fanout []Sink

func (f Fanout) Render(s Snapshot) {
	for _, sink := range f {
		sink.Render(s)
	}
}

// Latest keeps the most recent snapshot for readers on other goroutines
type Latest struct {
	mu   sync.RWMutex
	snap Snapshot
}

func (l *Latest) Render(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = s
}

// Snapshot returns the last rendered snapshot
func (l *Latest) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

func comboText(count int) string {
	return fmt.Sprintf("x%d", count)
}
