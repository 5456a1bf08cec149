// Package graph implements the audio render callback: it drains the
// control thread's ScheduledEventQueue, applies each event to the synth
// backend at the right sub-block boundary, sums the three buses with
// their volumes, and stamps the audio clock. Render runs on the
// dedicated audio thread and must never allocate or block.
package graph

import (
	"sort"
	"sync"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/synth"
)

// AudioGraph owns the consumer side of the control->audio event queue
// and renders one interleaved-free stereo block per callback.
type AudioGraph struct {
	synth  synth.Synth
	params *core.AudioParams
	clock  *core.AudioClock
	queue  *core.ScheduledEventQueue

	mu        sync.Mutex
	scratchL  []float32
	scratchR  []float32
	events    []core.ScheduledEvent
	pending   core.ScheduledEvent
	hasPending bool

	limiterEnvelopeL float32
	limiterEnvelopeR float32
}

// New builds an AudioGraph wired to the given backend, param bundle,
// queue, and clock. All four are expected to live for the process's
// lifetime.
func New(synthBackend synth.Synth, params *core.AudioParams, queue *core.ScheduledEventQueue, clock *core.AudioClock) *AudioGraph {
	return &AudioGraph{synth: synthBackend, params: params, clock: clock, queue: queue}
}

// Render is the RenderCallback the audio backend invokes: it fills outL
// and outR with exactly len(outL) (== len(outR)) frames starting at
// sampleTimeStart.
func (g *AudioGraph) Render(sampleTimeStart core.SampleTime, outL, outR []float32) {
	frames := len(outL)
	if len(outR) < frames {
		frames = len(outR)
	}
	sampleTimeEnd := saturatingAddFrames(sampleTimeStart, frames)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureScratch(frames)
	g.collectEvents(sampleTimeEnd)

	cursorSample := sampleTimeStart
	cursorFrame := 0

	for _, event := range g.events {
		if event.SampleTime < cursorSample || event.SampleTime >= sampleTimeEnd {
			continue
		}
		eventFrame := int(event.SampleTime - cursorSample)
		if eventFrame > 0 {
			end := cursorFrame + eventFrame
			g.renderSegment(eventFrame, outL[cursorFrame:end], outR[cursorFrame:end])
			cursorFrame = end
			cursorSample = event.SampleTime
		}
		g.synth.HandleEvent(event.Bus, event.Event, event.SampleTime)
	}

	if cursorFrame < frames {
		g.renderSegment(frames-cursorFrame, outL[cursorFrame:frames], outR[cursorFrame:frames])
	}

	g.clock.Set(sampleTimeEnd)
}

// collectEvents drains the queue into g.events, keeping anything at or
// past sampleTimeEnd parked in g.pending for the next callback, and
// stably sorts the batch by sample time then event rank then note key so
// same-sample-time events resolve deterministically regardless of
// arrival order.
func (g *AudioGraph) collectEvents(sampleTimeEnd core.SampleTime) {
	g.events = g.events[:0]

	if g.hasPending {
		g.hasPending = false
		if g.pending.SampleTime < sampleTimeEnd {
			g.events = append(g.events, g.pending)
		} else {
			g.hasPending = true
			return
		}
	}

	for {
		event, ok := g.queue.Pop()
		if !ok {
			break
		}
		if event.SampleTime < sampleTimeEnd {
			g.events = append(g.events, event)
			continue
		}
		g.pending = event
		g.hasPending = true
		break
	}

	sort.SliceStable(g.events, func(i, j int) bool {
		return core.LessForAudioOrder(g.events[i], g.events[j])
	})
}

func (g *AudioGraph) ensureScratch(frames int) {
	if len(g.scratchL) < frames {
		g.scratchL = make([]float32, frames)
		g.scratchR = make([]float32, frames)
	}
}

var renderBuses = [3]core.Bus{core.BusUserMonitor, core.BusAutopilot, core.BusMetronomeFx}

func (g *AudioGraph) renderSegment(frames int, outL, outR []float32) {
	scratchL := g.scratchL[:frames]
	scratchR := g.scratchR[:frames]

	for i := range outL {
		outL[i] = 0
	}
	for i := range outR {
		outR[i] = 0
	}

	master := g.params.Master()
	monitorEnabled := g.params.MonitorEnabled()

	for _, bus := range renderBuses {
		if bus == core.BusUserMonitor && !monitorEnabled {
			continue
		}
		g.synth.Render(bus, frames, scratchL, scratchR)
		busVolume := g.params.Bus(bus)
		for i := 0; i < frames; i++ {
			outL[i] += scratchL[i] * busVolume
			outR[i] += scratchR[i] * busVolume
		}
	}

	for i := 0; i < frames; i++ {
		outL[i] = softLimit(outL[i]*master, &g.limiterEnvelopeL)
		outR[i] = softLimit(outR[i]*master, &g.limiterEnvelopeR)
	}
}

const (
	limiterAttack  = 0.25
	limiterRelease = 0.01
	limiterCeiling = 0.98
)

// softLimit is a one-pole peak-following soft limiter: envelope chases
// the absolute peak with a fast attack and slow release, and gain is
// pulled back toward limiterCeiling only once the envelope exceeds it.
// envelope is persistent across callbacks so a burst of coincident notes
// across buses can't produce a hard digital clip at a block boundary.
func softLimit(x float32, envelope *float32) float32 {
	peak := x
	if peak < 0 {
		peak = -peak
	}
	if peak > *envelope {
		*envelope += limiterAttack * (peak - *envelope)
	} else {
		*envelope += limiterRelease * (peak - *envelope)
	}
	if *envelope > limiterCeiling {
		return x * (limiterCeiling / *envelope)
	}
	return x
}

func saturatingAddFrames(start core.SampleTime, frames int) core.SampleTime {
	sum := start + core.SampleTime(frames)
	if sum < start {
		return ^core.SampleTime(0)
	}
	return sum
}
