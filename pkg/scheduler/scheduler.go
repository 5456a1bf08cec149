// Package scheduler implements the look-ahead dequeue of a score's
// playback events into sample-accurate ScheduledEvents for the audio
// queue, including loop-range wraparound and hand-based routing.
package scheduler

import (
	"sort"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// Mode selects whether the scheduler plays the whole score (Demo) or
// routes only the unmuted hands (Accompaniment).
type Mode int

const (
	ModeDemo Mode = iota
	ModeAccompaniment
)

// AccompanimentRoute controls which hands are audible in Accompaniment
// mode.
type AccompanimentRoute struct {
	PlayLeft  bool
	PlayRight bool
}

// Config holds the scheduler's fixed tuning.
type Config struct {
	LookaheadMs uint64
}

// DefaultConfig returns the documented default look-ahead window.
func DefaultConfig() Config { return Config{LookaheadMs: 30} }

// Scheduler walks a sorted score event list, emitting ScheduledEvents as
// the transport's look-ahead window passes over them.
type Scheduler struct {
	config       Config
	events       []core.PlaybackMidiEvent
	cursor       int
	loopRange    *core.LoopRange
	mode         Mode
	accompaniment AccompanimentRoute
	sampleRateHz uint32
}

// New builds a Scheduler in Demo mode with both hands audible.
func New(sampleRateHz uint32, config Config) *Scheduler {
	return &Scheduler{
		config:        config,
		mode:          ModeDemo,
		accompaniment: AccompanimentRoute{PlayLeft: true, PlayRight: true},
		sampleRateHz:  sampleRateHz,
	}
}

// SetScore stably sorts the events by tick and resets the cursor.
func (s *Scheduler) SetScore(events []core.PlaybackMidiEvent) {
	sorted := append([]core.PlaybackMidiEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })
	s.events = sorted
	s.cursor = 0
}

func (s *Scheduler) SetLoop(r *core.LoopRange)      { s.loopRange = r }
func (s *Scheduler) LoopRange() *core.LoopRange     { return s.loopRange }
func (s *Scheduler) SetMode(mode Mode)              { s.mode = mode }
func (s *Scheduler) SetAccompanimentRoute(left, right bool) {
	s.accompaniment = AccompanimentRoute{PlayLeft: left, PlayRight: right}
}

// Seek finds the first event with tick >= target and parks the cursor
// there.
func (s *Scheduler) Seek(tick core.Tick) {
	idx := len(s.events)
	for i, e := range s.events {
		if e.Tick >= tick {
			idx = i
			break
		}
	}
	s.cursor = idx
}

// transport is the narrow Transport surface the scheduler needs, kept as
// an interface so tests can substitute a stub.
type transport interface {
	NowSample() core.SampleTime
	SampleToTick(core.SampleTime) core.Tick
	TickToSample(core.Tick) core.SampleTime
	Seek(core.Tick)
}

// Schedule advances the cursor across the look-ahead window and returns
// the ScheduledEvents it emits. It mutates the transport only to follow
// a loop wraparound.
func (s *Scheduler) Schedule(t transport) []core.ScheduledEvent {
	lookaheadSamples := uint64(round(float64(s.config.LookaheadMs) * float64(s.sampleRateHz) / 1000.0))
	windowEndSample := saturatingAddSample(t.NowSample(), lookaheadSamples)
	windowEndTick := t.SampleToTick(windowEndSample)

	var emitted []core.ScheduledEvent
	for s.cursor < len(s.events) {
		event := s.events[s.cursor]
		if event.Tick > windowEndTick {
			break
		}

		if s.loopRange != nil && event.Tick >= s.loopRange.End {
			t.Seek(s.loopRange.Start)
			s.Seek(s.loopRange.Start)
			break
		}

		if bus, ok := s.routeBus(event); ok {
			emitted = append(emitted, core.ScheduledEvent{
				SampleTime: t.TickToSample(event.Tick),
				Bus:        bus,
				Event:      event.Event,
			})
		}

		s.cursor++
	}

	return emitted
}

func (s *Scheduler) routeBus(event core.PlaybackMidiEvent) (core.Bus, bool) {
	switch s.mode {
	case ModeDemo:
		return core.BusAutopilot, true
	case ModeAccompaniment:
		if event.HasHand {
			if event.Hand == core.HandLeft && !s.accompaniment.PlayLeft {
				return 0, false
			}
			if event.Hand == core.HandRight && !s.accompaniment.PlayRight {
				return 0, false
			}
		}
		return core.BusAutopilot, true
	default:
		return core.BusAutopilot, true
	}
}

func saturatingAddSample(a core.SampleTime, b uint64) core.SampleTime {
	sum := a + core.SampleTime(b)
	if sum < a {
		return ^core.SampleTime(0)
	}
	return sum
}

func round(x float64) float64 {
	if x >= 0 {
		return float64(int64(x + 0.5))
	}
	return float64(int64(x - 0.5))
}
