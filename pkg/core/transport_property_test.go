package core

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTransportRoundTripProperty checks that with tempo_multiplier==1 and
// a constant tempo map, sample_to_tick(tick_to_sample(t)) == t within +-1
// tick for 0 <= t <= 2^31.
func TestTransportRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("tick round-trips through sample conversion within +-1", prop.ForAll(
		func(tick int64) bool {
			tr := NewTransport(480, 48000, nil)
			tr.Play()
			sample := tr.TickToSample(Tick(tick))
			back := tr.SampleToTick(sample)
			diff := int64(back) - tick
			return diff >= -1 && diff <= 1
		},
		gen.Int64Range(0, 1<<31),
	))

	properties.TestingRun(t)
}

// TestTransportTempoMultiplierScalingProperty checks that doubling the
// tempo multiplier halves (tick_to_sample(t) - origin) within 1 sample,
// for a constant 500000 us/quarter tempo map.
func TestTransportTempoMultiplierScalingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("doubling tempo multiplier halves tick_to_sample offset", prop.ForAll(
		func(tick int64, multiplier float64) bool {
			m := float32(multiplier)

			tr1 := NewTransport(480, 48000, []TempoPoint{{Tick: 0, UsPerQuarter: 500_000}})
			tr1.SetTempoMultiplier(m)
			s1 := tr1.TickToSample(Tick(tick))

			tr2 := NewTransport(480, 48000, []TempoPoint{{Tick: 0, UsPerQuarter: 500_000}})
			tr2.SetTempoMultiplier(m * 2)
			s2 := tr2.TickToSample(Tick(tick))

			off1 := int64(s1) - int64(tr1.originSample)
			off2 := int64(s2) - int64(tr2.originSample)

			diff := off1 - 2*off2
			if diff < 0 {
				diff = -diff
			}
			return diff <= 2 // +-1 sample per leg, two conversions compared
		},
		gen.Int64Range(0, 10_000_000),
		gen.Float64Range(0.1, 2.0),
	))

	properties.TestingRun(t)
}

func TestScheduledEventQueueFIFOAndDropsWhenFull(t *testing.T) {
	q := NewScheduledEventQueue()
	for i := 0; i < ScheduledEventQueueCapacity; i++ {
		if !q.Push(ScheduledEvent{SampleTime: SampleTime(i)}) {
			t.Fatalf("push %d should have succeeded within capacity", i)
		}
	}
	if q.Push(ScheduledEvent{SampleTime: 999999}) {
		t.Fatalf("push beyond capacity should be dropped")
	}
	for i := 0; i < ScheduledEventQueueCapacity; i++ {
		e, ok := q.Pop()
		if !ok || e.SampleTime != SampleTime(i) {
			t.Fatalf("expected FIFO order at %d, got %+v ok=%v", i, e, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("queue should be empty")
	}
}

func TestPlayerEventQueueTryPushDropsOnContention(t *testing.T) {
	q := NewPlayerEventQueue()
	q.locked.Store(true) // simulate a concurrent in-flight producer
	if q.TryPush(PlayerEvent{}) {
		t.Fatalf("TryPush should drop on contention, never block")
	}
	q.locked.Store(false)
	if !q.TryPush(PlayerEvent{At: 42}) {
		t.Fatalf("TryPush should succeed once uncontended")
	}
	e, ok := q.Pop()
	if !ok || e.At != 42 {
		t.Fatalf("expected popped event At=42, got %+v ok=%v", e, ok)
	}
}
