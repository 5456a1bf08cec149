package scheduler

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// TestSchedulerRoundTripProperty checks that events emitted by
// schedule() over successive calls until the score ends, once sorted by
// sample_time, equal tick_to_sample(e.tick) for each event.
func TestSchedulerRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every emitted ScheduledEvent's sample_time equals tick_to_sample(tick)", prop.ForAll(
		func(count int) bool {
			tr := core.NewTransport(480, 48000, []core.TempoPoint{{Tick: 0, UsPerQuarter: 500_000}})
			tr.Play()

			s := New(48000, Config{LookaheadMs: 30})
			ticks := make([]core.Tick, count)
			for i := range ticks {
				ticks[i] = core.Tick(i * 240)
			}
			s.SetScore(events(ticks...))

			// Each 240-tick gap spans about 23.4 blocks of 512 samples, so
			// count*24 blocks reach the last event; 200 more drain the window.
			var all []core.ScheduledEvent
			for i := 0; i < count*24+200; i++ {
				all = append(all, s.Schedule(tr)...)
				tr.AdvanceBySamples(512)
			}

			sort.Slice(all, func(i, j int) bool { return all[i].SampleTime < all[j].SampleTime })
			if len(all) != count {
				return false
			}
			for i, e := range all {
				if e.SampleTime != tr.TickToSample(ticks[i]) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}
