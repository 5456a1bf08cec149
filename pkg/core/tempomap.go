package core

import "math/big"

// TempoPoint is one entry of a tempo map: the tick at which a new
// microseconds-per-quarter-note value takes effect.
type TempoPoint struct {
	Tick         Tick
	UsPerQuarter uint32
}

type tempoSegment struct {
	startTick    Tick
	startUs      int64
	usPerQuarter uint32
}

// TempoMap is a piecewise-constant map from Tick to microseconds, with
// O(segments) lookup in either direction. It always begins at tick 0: if
// the caller's points don't start there, a synthetic 500000 us/quarter
// point is prepended.
type TempoMap struct {
	ppq      uint16
	segments []tempoSegment
}

// NewTempoMap builds a TempoMap from an arbitrary (possibly unsorted,
// possibly tick-0-less) set of points.
func NewTempoMap(ppq uint16, points []TempoPoint) TempoMap {
	pts := append([]TempoPoint(nil), points...)
	if len(pts) == 0 || pts[0].Tick != 0 {
		pts = append([]TempoPoint{{Tick: 0, UsPerQuarter: 500_000}}, pts...)
	}
	sortTempoPoints(pts)

	segments := make([]tempoSegment, 0, len(pts))
	var currentUs int64
	for idx, p := range pts {
		if idx > 0 {
			prev := pts[idx-1]
			deltaTicks := p.Tick - prev.Tick
			currentUs += ticksToUs(deltaTicks, prev.UsPerQuarter, ppq)
		}
		segments = append(segments, tempoSegment{
			startTick:    p.Tick,
			startUs:      currentUs,
			usPerQuarter: p.UsPerQuarter,
		})
	}
	return TempoMap{ppq: ppq, segments: segments}
}

func sortTempoPoints(pts []TempoPoint) {
	// insertion sort: tempo maps carry very few points (tens, not
	// thousands), and stability w.r.t. input order of equal ticks matches
	// the reference's stable sort_by_key.
	for i := 1; i < len(pts); i++ {
		j := i
		for j > 0 && pts[j-1].Tick > pts[j].Tick {
			pts[j-1], pts[j] = pts[j], pts[j-1]
			j--
		}
	}
}

// TickToMicros converts a Tick to microseconds since tick 0.
func (m TempoMap) TickToMicros(tick Tick) int64 {
	seg := m.segmentForTick(tick)
	deltaTicks := tick - seg.startTick
	return seg.startUs + ticksToUs(deltaTicks, seg.usPerQuarter, m.ppq)
}

// MicrosToTick converts microseconds since tick 0 to a Tick.
func (m TempoMap) MicrosToTick(micros int64) Tick {
	seg := m.segmentForMicros(micros)
	deltaUs := micros - seg.startUs
	deltaTicks := usToTicks(deltaUs, seg.usPerQuarter, m.ppq)
	return seg.startTick + deltaTicks
}

// segmentForTick scans forward and keeps the last segment whose start_tick
// <= tick — ties at a tempo-change tick resolve to the new segment.
func (m TempoMap) segmentForTick(tick Tick) tempoSegment {
	current := m.segments[0]
	for _, seg := range m.segments {
		if seg.startTick > tick {
			break
		}
		current = seg
	}
	return current
}

func (m TempoMap) segmentForMicros(micros int64) tempoSegment {
	current := m.segments[0]
	for _, seg := range m.segments {
		if seg.startUs > micros {
			break
		}
		current = seg
	}
	return current
}

func (m TempoMap) usPerQuarterAt(tick Tick) uint32 {
	return m.segmentForTick(tick).usPerQuarter
}

// ticksToUs and usToTicks widen through a 128-bit intermediate (math/big)
// so that ticks up to 2^31 times a us_per_quarter up to 2^32 never
// overflows an int64 product before the division. Both round the
// quotient to nearest (halves away from zero).
func ticksToUs(ticks Tick, usPerQuarter uint32, ppq uint16) int64 {
	if ppq == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(int64(ticks)), big.NewInt(int64(usPerQuarter)))
	return quoRound(num, int64(ppq))
}

func usToTicks(us int64, usPerQuarter uint32, ppq uint16) Tick {
	if usPerQuarter == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(us), big.NewInt(int64(ppq)))
	return Tick(quoRound(num, int64(usPerQuarter)))
}

// quoRound returns num/den (den > 0) rounded to nearest, halves away from zero.
func quoRound(num *big.Int, den int64) int64 {
	d := big.NewInt(den)
	q, r := new(big.Int).QuoRem(num, d, new(big.Int))
	r.Abs(r)
	if r.Lsh(r, 1).Cmp(d) >= 0 {
		q.Add(q, big.NewInt(int64(num.Sign())))
	}
	return q.Int64()
}
