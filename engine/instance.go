package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"soundgrid/output"
	"soundgrid/slot"
)

// NodeSet is the pan→gain chain carried by an instance. Gains above 1 can
// only be realised here; the direct path is capped at unity.
type NodeSet struct {
	Pan  float64
	Gain float64
}

func newNodeSet(pan, gain float64) (*NodeSet, error) {
	if math.IsNaN(pan) || pan < -1 || pan > 1 {
		return nil, fmt.Errorf("%w: pan %v", ErrGraphWiring, pan)
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) || gain < 0 {
		return nil, fmt.Errorf("%w: gain %v", ErrGraphWiring, gain)
	}
	return &NodeSet{Pan: pan, Gain: gain}, nil
}

func (n *NodeSet) wrap(s beep.Streamer) beep.Streamer {
	pan := &effects.Pan{Streamer: s, Pan: n.Pan}
	return &effects.Gain{Streamer: pan, Gain: n.Gain - 1}
}

// Instance is one sound-producing unit bound to a slot.
type Instance struct {
	id      uint64
	slot    slot.ID
	started time.Time
	buffer  *beep.Buffer
	cached  bool
	loop    bool
	speed   float64
	volume  float64
	nodes   *NodeSet
	sink    output.Sink

	source beep.StreamSeeker
	ctrl   *beep.Ctrl
	gen    uint64
	live   bool
}

func (in *Instance) info() InstanceInfo {
	info := InstanceInfo{
		ID:      in.id,
		Started: in.started,
		Gain:    in.volume,
		Cached:  in.cached,
		Loop:    in.loop,
	}
	if in.nodes != nil {
		info.Gain = in.nodes.Gain
		info.Pan = in.nodes.Pan
	}
	if in.sink != nil {
		info.Sink = in.sink.ID()
	}
	return info
}

// play builds a fresh chain from the start of the clip and hands it to the
// sink. onEnd receives the generation of the chain that ran out.
func (in *Instance) play(rate beep.SampleRate, quality int, onEnd func(gen uint64)) error {
	in.gen++
	gen := in.gen

	in.source = in.buffer.Streamer(0, in.buffer.Len())
	var s beep.Streamer = in.source
	if in.loop {
		s = beep.Loop(-1, in.source)
	}
	if ratio := in.speed * float64(in.buffer.Format().SampleRate) / float64(rate); ratio != 1 {
		s = beep.ResampleRatio(quality, ratio, s)
	}
	s = &effects.Gain{Streamer: s, Gain: in.volume - 1}
	if in.nodes != nil {
		s = in.nodes.wrap(s)
	}
	in.ctrl = &beep.Ctrl{Streamer: s}
	return in.sink.Play(beep.Seq(in.ctrl, beep.Callback(func() { onEnd(gen) })))
}

// halt pauses and rewinds the running chain and detaches it from the mixer.
// The detached chain's end callback still fires, with a stale generation.
func (in *Instance) halt() {
	if in.ctrl == nil || in.sink == nil {
		return
	}
	in.sink.Lock()
	in.ctrl.Paused = true
	if in.source != nil {
		_ = in.source.Seek(0)
	}
	in.ctrl.Streamer = nil
	in.sink.Unlock()
	in.ctrl = nil
	in.gen++
}
