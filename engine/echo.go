package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/gopxl/beep/v2"

	"soundgrid/output"
	"soundgrid/slot"
)

const (
	maxEchoes      = 6
	firstEchoRatio = 0.6
)

// EchoStep is one instance of an echo burst.
type EchoStep struct {
	Offset time.Duration
	Gain   float64
}

// EchoCount returns how many repeats follow the original hit.
func EchoCount(feedback float64) int {
	return min(int(math.Floor(feedback*6))+3, maxEchoes)
}

// PlanEcho expands p into the original hit plus its decaying repeats.
// Delays shorter than minDelay are raised to it.
func PlanEcho(p slot.Parameters, minDelay time.Duration) []EchoStep {
	delay := max(time.Duration(p.EchoDelay*float64(time.Second)), minDelay)
	count := EchoCount(p.EchoFeedback)

	steps := make([]EchoStep, count+1)
	for i := range steps {
		gain := p.Gain
		if i > 0 {
			gain = p.Gain * firstEchoRatio * math.Pow(p.EchoFeedback, float64(i-1))
		}
		steps[i] = EchoStep{Offset: time.Duration(i) * delay, Gain: gain}
	}
	return steps
}

type echoTimer struct {
	slot  slot.ID
	timer Timer
}

// scheduleEcho arms one deferred fire per step and marks the slot playing.
func (e *Engine) scheduleEcho(id slot.ID, p slot.Parameters) {
	buf := e.buffer(id, p)
	st := e.state(id)
	steps := PlanEcho(p, e.cfg.MinEchoDelay)
	for _, step := range steps {
		step := step
		t := &echoTimer{slot: id}
		e.echoes[t] = struct{}{}
		st.pending++
		t.timer = e.clock.AfterFunc(step.Offset, func() {
			e.post(func() { e.fireEcho(t, p, buf, step) })
		})
	}
	st.playing = true
	e.logger.Debug("Echo burst scheduled",
		slog.Int("slot", int(id)),
		slog.Int("instances", len(steps)),
		slog.Float64("delay", p.EchoDelay),
		slog.Float64("feedback", p.EchoFeedback))
}

func (e *Engine) fireEcho(t *echoTimer, p slot.Parameters, buf *beep.Buffer, step EchoStep) {
	if _, ok := e.echoes[t]; !ok {
		return
	}
	delete(e.echoes, t)
	st := e.state(t.slot)
	st.pending--

	e.enforceCap(t.slot, st, e.cfg.InstanceCap-1)

	audio, ok := e.ensureContext()
	if !ok {
		e.settle(t.slot)
		return
	}
	sink := e.bind(audio)
	if sink == nil {
		e.settle(t.slot)
		return
	}

	in := e.newInstance(t.slot, buf, false)
	in.speed = p.Speed
	in.started = e.clock.Now()
	in.sink = sink
	in.volume = min(step.Gain, 1)
	if audio.State() == output.Running {
		e.connect(in, p.Balance, step.Gain)
	}
	if in.nodes != nil {
		in.volume = 1
	}

	e.register(in)
	if err := e.start(in, audio); err != nil {
		e.logger.Warn("Echo instance rejected", slog.Int("slot", int(t.slot)), slog.Any("error", err))
	}
}

// cancelEchoes drops pending fires for one slot.
func (e *Engine) cancelEchoes(id slot.ID) {
	st := e.state(id)
	for t := range e.echoes {
		if t.slot != id {
			continue
		}
		t.timer.Stop()
		delete(e.echoes, t)
		st.pending--
	}
	st.pending = max(st.pending, 0)
}

func (e *Engine) cancelAllEchoes() {
	for t := range e.echoes {
		t.timer.Stop()
	}
	clear(e.echoes)
	for _, st := range e.slots {
		st.pending = 0
	}
}
