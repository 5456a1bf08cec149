package judge

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// TestJudgeSingleNotePerfectProperty checks that for a single-note
// target, a NoteOn at target.tick always yields Grade::Perfect with
// delta_tick == 0, for any non-negative perfect window.
func TestJudgeSingleNotePerfectProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("on-time single-note hit is always Perfect with delta 0", prop.ForAll(
		func(targetTick int64, perfect int64, note int64) bool {
			j := New(Config{
				PerfectWindowTicks: core.Tick(perfect),
				GoodWindowTicks:    core.Tick(perfect + 10),
				ChordRollTicks:     4,
				WrongNotePolicy:    RecordOnly,
			})
			j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: core.Tick(targetTick), Notes: notes(uint8(note))}})

			events := j.OnNoteOn(core.Tick(targetTick), uint8(note))
			hit, ok := lastHit(events)
			return ok && hit.Grade == GradePerfect && hit.DeltaTick == 0
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 50),
		gen.Int64Range(0, 127),
	))

	properties.TestingRun(t)
}

// TestJudgeDegradePerfectProperty checks that with DegradePerfect and
// wrong_notes > 0, a perfectly-timed hit downgrades to Good; with
// RecordOnly it does not.
func TestJudgeDegradePerfectProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("DegradePerfect downgrades an on-time hit after a wrong note; RecordOnly does not", prop.ForAll(
		func(targetTick int64) bool {
			const target, wrong = uint8(60), uint8(61)

			degraded := New(Config{PerfectWindowTicks: 5, GoodWindowTicks: 20, ChordRollTicks: 4, WrongNotePolicy: DegradePerfect})
			degraded.LoadTargets([]core.TargetEvent{{ID: 1, Tick: core.Tick(targetTick), Notes: notes(target)}})
			degraded.OnNoteOn(core.Tick(targetTick), wrong)
			degradedEvents := degraded.OnNoteOn(core.Tick(targetTick), target)
			degradedHit, ok1 := lastHit(degradedEvents)

			recorded := New(Config{PerfectWindowTicks: 5, GoodWindowTicks: 20, ChordRollTicks: 4, WrongNotePolicy: RecordOnly})
			recorded.LoadTargets([]core.TargetEvent{{ID: 1, Tick: core.Tick(targetTick), Notes: notes(target)}})
			recorded.OnNoteOn(core.Tick(targetTick), wrong)
			recordedEvents := recorded.OnNoteOn(core.Tick(targetTick), target)
			recordedHit, ok2 := lastHit(recordedEvents)

			return ok1 && ok2 && degradedHit.Grade == GradeGood && recordedHit.Grade == GradePerfect
		},
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestJudgeAdvanceToEmitsExactlyOneMissPerTimedOutTarget pins invariant
// 7: advance_to(now) emits exactly one Miss per target whose tick +
// good_window < now and is still focused.
func TestJudgeAdvanceToEmitsExactlyOneMissPerTimedOutTarget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("advance_to emits exactly one Miss per expired target", prop.ForAll(
		func(count int, spacing int64) bool {
			good := core.Tick(10)
			j := New(Config{PerfectWindowTicks: 2, GoodWindowTicks: good, ChordRollTicks: 2})
			targets := make([]core.TargetEvent, count)
			for i := 0; i < count; i++ {
				targets[i] = core.TargetEvent{ID: uint64(i + 1), Tick: core.Tick(int64(i) * spacing), Notes: notes(60)}
			}
			j.LoadTargets(targets)

			lastTick := core.Tick(0)
			if count > 0 {
				lastTick = targets[count-1].Tick
			}
			events := j.AdvanceTo(lastTick + good + 1)

			missCount := 0
			for _, e := range events {
				if e.Kind == EventMiss {
					missCount++
				}
			}
			return missCount == count
		},
		gen.IntRange(0, 20),
		gen.Int64Range(1, 100),
	))

	properties.TestingRun(t)
}
