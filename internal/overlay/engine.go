// Package overlay implements the combo/decay state machine behind the
// emote overlay.
//
// An Engine tracks the emote currently being spammed, how many times in a
// row it was seen, and the timers that fade or decay the combo. Every
// transition produces one Snapshot for the configured Sink.
//
// Engine methods are not safe for concurrent use. With the wall clock the
// engine must be driven through Run, which serializes chat lines and timer
// expiries on one goroutine. Tests drive it directly with clock.Fake.
package overlay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/john/lastemote/internal/clock"
	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/message"
)

type timerKind int

const (
	noTimer timerKind = iota
	fadeTimer
	decayTimer
)

func (k timerKind) String() string {
	switch k {
	case fadeTimer:
		return "fade"
	case decayTimer:
		return "decay"
	default:
		return "none"
	}
}

// expiry is a timer firing, tagged with the generation it was armed in
type expiry struct {
	kind timerKind
	gen  uint64
}

// Classifier resolves a chat line to an emote
type Classifier interface {
	Classify(line message.Line) (emote.Ref, bool)
}

// Engine is the combo/decay state machine
type Engine struct {
	settings Settings
	clock    clock.Clock
	sink     Sink
	log      *zap.SugaredLogger

	state     State
	timer     clock.Timer
	timerKind timerKind

	// post delivers timer expiries back to the engine
	post func(expiry)
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an engine in the Idle phase
func New(settings Settings, sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = SinkFunc(func(Snapshot) {})
	}
	e := &Engine{
		settings: settings,
		clock:    clock.New(),
		sink:     sink,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.post = e.expire
	return e
}

// State returns a copy of the current combo state
func (e *Engine) State() State {
	return e.state
}

// Run feeds lines through c and into the engine until ctx is cancelled or
// lines is closed. Timer expiries are handled on the same goroutine.
func (e *Engine) Run(ctx context.Context, lines <-chan message.Line, c Classifier) error {
	expiries := make(chan expiry, 1)
	done := make(chan struct{})
	defer close(done)
	defer e.cancelTimer()

	e.post = func(ev expiry) {
		select {
		case expiries <- ev:
		case <-done:
		}
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if ref, ok := c.Classify(line); ok {
				e.log.Debugf("Matched %s (%s) from %s", ref.Name, ref.Source, line.DisplayName)
				e.Observe(ref)
			}

		case ev := <-expiries:
			e.expire(ev)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Observe records one sighting of ref
func (e *Engine) Observe(ref emote.Ref) {
	if ref.IsZero() {
		return
	}

	repeat := false
	switch e.state.Phase {
	case Idle:
		e.start(ref)

	case Active:
		if ref == e.state.Active {
			e.enter(Active)
			e.state.Count++
			e.armFade()
			repeat = true
		} else {
			e.start(ref)
		}

	case Decaying:
		switch {
		case ref != e.state.Active:
			e.start(ref)
		case e.settings.ComboSave:
			// combo saved: back to Active at the current count
			e.enter(Active)
			e.armFade()
			repeat = true
		default:
			e.pauseDecay()
			repeat = true
		}
	}

	e.emit(repeat, false)
}

// start begins a fresh combo on ref
func (e *Engine) start(ref emote.Ref) {
	e.enter(Active)
	e.state.Active = ref
	e.state.Count = 1
	e.armFade()
}

// pauseDecay handles a repeat of the decaying emote when combos are not
// saved: the count holds, decay stops, and the fade timer is re-armed.
// When it fires decay resumes from the held count.
func (e *Engine) pauseDecay() {
	e.enter(Decaying)
	e.state.Paused = true
	e.armFade()
}

// expire applies a timer firing unless it is stale
func (e *Engine) expire(ev expiry) {
	if ev.gen != e.state.Generation || ev.kind != e.timerKind {
		e.log.Debugf("Ignoring stale %s timer (generation %d, current %d)", ev.kind, ev.gen, e.state.Generation)
		return
	}
	e.timer = nil
	e.timerKind = noTimer

	switch ev.kind {
	case fadeTimer:
		e.fadeExpired()
	case decayTimer:
		e.decayStepExpired()
	}
}

func (e *Engine) fadeExpired() {
	switch e.state.Phase {
	case Active:
		if !e.settings.ComboDecayAnimation {
			e.reset()
			return
		}
		e.enter(Decaying)
		e.armDecay()
		e.emit(false, false)

	case Decaying:
		// paused decay resumes
		e.enter(Decaying)
		e.armDecay()
		e.emit(false, false)
	}
}

func (e *Engine) decayStepExpired() {
	if e.state.Phase != Decaying {
		return
	}
	if e.state.Count <= 1 {
		e.reset()
		return
	}
	e.enter(Decaying)
	e.state.Count--
	e.armDecay()
	e.emit(false, false)
}

// reset returns to Idle and emits the fade-out cue
func (e *Engine) reset() {
	e.enter(Idle)
	e.state.Active = emote.Ref{}
	e.state.Count = 0
	e.emit(false, true)
}

// enter cancels the armed timer and starts a new generation in phase p
func (e *Engine) enter(p Phase) {
	e.cancelTimer()
	e.state.Generation++
	e.state.Phase = p
	e.state.Paused = false
}

func (e *Engine) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = nil
	e.timerKind = noTimer
}

func (e *Engine) armFade() {
	if e.settings.FadeTimeout <= 0 {
		return
	}
	e.arm(fadeTimer, e.settings.FadeTimeout)
}

func (e *Engine) armDecay() {
	e.arm(decayTimer, DecayDelay(e.state.Count))
}

func (e *Engine) arm(kind timerKind, d time.Duration) {
	ev := expiry{kind: kind, gen: e.state.Generation}
	e.timer = e.clock.AfterFunc(d, func() { e.post(ev) })
	e.timerKind = kind
}

// emit checks invariants and renders the current state
func (e *Engine) emit(repeat, fadeOut bool) {
	if err := e.checkInvariants(); err != nil {
		panic(err)
	}

	s := e.state
	snap := Snapshot{
		Phase:      s.Phase,
		Count:      s.Count,
		FadeOut:    fadeOut,
		Generation: s.Generation,
	}
	if s.Phase != Idle {
		ref := s.Active
		snap.Emote = &ref
	}

	snap.ComboVisible = e.settings.ShowCombo && s.Count > 1
	if snap.ComboVisible {
		snap.ComboText = comboText(s.Count)
	}
	snap.Intensity = Intensity(s.Count, e.settings.FireComboCount, e.settings.MaxFire, e.settings.FireShow, e.settings.ShowCombo)
	snap.FireVisible = snap.Intensity > 0
	snap.FireAnimated = snap.FireVisible && e.settings.FireAnimation && s.Phase != Decaying
	snap.Pulse = repeat && snap.ComboVisible && e.settings.ComboPulseAnimation

	e.log.Debugf("Combo %s x%d (%s, generation %d)", s.Active.Name, s.Count, s.Phase, s.Generation)
	e.sink.Render(snap)
}

func (e *Engine) checkInvariants() error {
	s := e.state
	if (s.Count > 0) != (s.Phase != Idle) {
		return fmt.Errorf("overlay: count %d in phase %s", s.Count, s.Phase)
	}
	if s.Active.IsZero() != (s.Phase == Idle) {
		return fmt.Errorf("overlay: active emote %q in phase %s", s.Active.Name, s.Phase)
	}

	want := noTimer
	switch {
	case s.Phase == Active && e.settings.FadeTimeout > 0:
		want = fadeTimer
	case s.Phase == Decaying && s.Paused:
		want = fadeTimer
	case s.Phase == Decaying:
		want = decayTimer
	}
	if e.timerKind != want {
		return fmt.Errorf("overlay: %s timer armed in phase %s", e.timerKind, s.Phase)
	}
	return nil
}
