// Package judge implements the chord-aware timing-window evaluator: it
// matches a player's NoteOn stream against an ordered list of targets,
// grading each as Perfect/Good/Miss and advancing focus to the next
// target once the current one resolves or times out.
package judge

import (
	"github.com/cadenzapiano/practicecore/pkg/core"
)

// WrongNotePolicy governs what an off-target NoteOn does to an otherwise
// Perfect hit.
type WrongNotePolicy int

const (
	RecordOnly WrongNotePolicy = iota
	DegradePerfect
)

// AdvanceMode is a config field with two values, but the Judge does not
// read it: focus always advances on resolve or timeout, so
// AdvanceAggressive behaves the same as AdvanceOnResolve.
type AdvanceMode int

const (
	AdvanceOnResolve AdvanceMode = iota
	AdvanceAggressive
)

// Config holds the tuning knobs for one judging session. Invariant:
// Perfect <= Good.
type Config struct {
	PerfectWindowTicks core.Tick
	GoodWindowTicks    core.Tick
	ChordRollTicks     core.Tick
	WrongNotePolicy    WrongNotePolicy
	Advance            AdvanceMode
}

// Grade is the outcome of a resolved target.
type Grade int

const (
	GradePerfect Grade = iota
	GradeGood
	GradeMiss
)

// MissReason distinguishes why a target resolved as a miss.
type MissReason int

const (
	MissTimeout MissReason = iota
	MissSkipped
)

// Event is a tagged union of everything the judge can emit. Exactly one
// of the Kind-specific field groups is meaningful per EventKind.
type EventKind int

const (
	EventFocusChanged EventKind = iota
	EventHit
	EventMiss
	EventStats
)

type Event struct {
	Kind EventKind

	// FocusChanged
	TargetID    uint64
	HasTargetID bool

	// Hit
	Grade      Grade
	DeltaTick  core.Tick
	WrongNotes uint32

	// Miss
	Reason        MissReason
	MissingNotes  uint32

	// Stats
	Combo uint32
	Score int64
	Hit   uint32
	Miss  uint32
	Wrong uint32
}

// Stats is the running score-summary state, exposed for hosts that want
// to read it without replaying events.
type Stats struct {
	Combo uint32
	Score int64
	Hit   uint32
	Miss  uint32
	Wrong uint32
}

type targetState struct {
	expected       map[uint8]struct{}
	matched        map[uint8]core.Tick
	wrongNotes     uint32
	firstMatchTick core.Tick
	hasFirstMatch  bool
}

// Judge is a focus-based evaluator over an ordered list of targets.
type Judge struct {
	cfg     Config
	targets []core.TargetEvent
	idx     int
	state   *targetState
	stats   Stats
}

// New builds a Judge with no targets loaded.
func New(cfg Config) *Judge {
	return &Judge{cfg: cfg}
}

// Stats returns the current running statistics.
func (j *Judge) Stats() Stats { return j.stats }

// LoadTargets replaces the target list, resets focus to the first
// target, and emits an initial FocusChanged.
func (j *Judge) LoadTargets(targets []core.TargetEvent) []Event {
	j.targets = targets
	j.idx = 0
	j.state = j.buildState()
	return []Event{j.focusChangedEvent()}
}

// OnNoteOn resolves a player's NoteOn against the current focus target.
func (j *Judge) OnNoteOn(tick core.Tick, note uint8) []Event {
	events := j.AdvanceTo(tick)

	target, ok := j.currentTarget()
	if !ok {
		return events
	}

	good := j.cfg.GoodWindowTicks
	perfect := j.cfg.PerfectWindowTicks
	windowStart := target.Tick - good
	windowEnd := target.Tick + good

	if tick < windowStart {
		return events
	}

	var resolvedGrade Grade
	var resolvedDelta core.Tick
	var resolvedWrong uint32
	resolved := false

	if state := j.state; state != nil {
		if tick <= windowEnd {
			_, alreadyMatched := state.matched[note]
			if _, expected := state.expected[note]; expected && !alreadyMatched {
				withinRoll := true
				if state.hasFirstMatch {
					delta := tick - state.firstMatchTick
					if delta < 0 {
						delta = -delta
					}
					withinRoll = delta <= j.cfg.ChordRollTicks
				}
				if withinRoll {
					state.matched[note] = tick
					if !state.hasFirstMatch {
						state.firstMatchTick = tick
						state.hasFirstMatch = true
					}
				}
			} else if _, expected := state.expected[note]; !expected {
				state.wrongNotes++
			}
		}

		if len(state.matched) == len(state.expected) && len(state.expected) > 0 {
			firstMatch := target.Tick
			if state.hasFirstMatch {
				firstMatch = state.firstMatchTick
			}
			delta := firstMatch - target.Tick
			absDelta := delta
			if absDelta < 0 {
				absDelta = -absDelta
			}
			grade := GradeGood
			if absDelta <= perfect {
				grade = GradePerfect
			}
			if j.cfg.WrongNotePolicy == DegradePerfect && state.wrongNotes > 0 && grade == GradePerfect {
				grade = GradeGood
			}
			resolvedGrade, resolvedDelta, resolvedWrong = grade, delta, state.wrongNotes
			resolved = true
		}
	}

	if resolved {
		events = append(events, Event{
			Kind:       EventHit,
			TargetID:   target.ID,
			HasTargetID: true,
			Grade:      resolvedGrade,
			DeltaTick:  resolvedDelta,
			WrongNotes: resolvedWrong,
		})
		events = append(events, j.statsOnHit(resolvedGrade, resolvedWrong))
		events = append(events, j.advanceFocus())
	}

	return events
}

// AdvanceTo flushes every focused target whose good-window has elapsed
// as of now_tick, emitting one Miss (and Stats) per target.
func (j *Judge) AdvanceTo(nowTick core.Tick) []Event {
	var events []Event
	for {
		target, ok := j.currentTarget()
		if !ok {
			break
		}
		state := j.state
		if state == nil {
			break
		}
		good := j.cfg.GoodWindowTicks
		if nowTick <= target.Tick+good {
			break
		}

		missing := len(state.expected) - len(state.matched)
		if missing < 0 {
			missing = 0
		}
		events = append(events, Event{
			Kind:         EventMiss,
			TargetID:     target.ID,
			HasTargetID:  true,
			Reason:       MissTimeout,
			MissingNotes: uint32(missing),
			WrongNotes:   state.wrongNotes,
		})
		events = append(events, j.statsOnMiss(state.wrongNotes))
		events = append(events, j.advanceFocus())
	}
	return events
}

// CurrentFocus returns the id of the currently focused target, if any.
func (j *Judge) CurrentFocus() (uint64, bool) {
	if j.idx < 0 || j.idx >= len(j.targets) {
		return 0, false
	}
	return j.targets[j.idx].ID, true
}

func (j *Judge) currentTarget() (core.TargetEvent, bool) {
	if j.idx < 0 || j.idx >= len(j.targets) {
		return core.TargetEvent{}, false
	}
	return j.targets[j.idx], true
}

func (j *Judge) buildState() *targetState {
	target, ok := j.currentTarget()
	if !ok {
		return nil
	}
	expected := make(map[uint8]struct{}, len(target.Notes))
	for note := range target.Notes {
		expected[note] = struct{}{}
	}
	return &targetState{expected: expected, matched: map[uint8]core.Tick{}}
}

func (j *Judge) advanceFocus() Event {
	j.idx++
	j.state = j.buildState()
	return j.focusChangedEvent()
}

func (j *Judge) focusChangedEvent() Event {
	id, ok := j.CurrentFocus()
	return Event{Kind: EventFocusChanged, TargetID: id, HasTargetID: ok}
}

func (j *Judge) statsOnHit(grade Grade, wrongNotes uint32) Event {
	j.stats.Hit++
	j.stats.Combo++
	j.stats.Wrong += wrongNotes
	switch grade {
	case GradePerfect:
		j.stats.Score += 100
	case GradeGood:
		j.stats.Score += 70
	}
	return j.statsEvent()
}

func (j *Judge) statsOnMiss(wrongNotes uint32) Event {
	j.stats.Miss++
	j.stats.Combo = 0
	j.stats.Wrong += wrongNotes
	return j.statsEvent()
}

func (j *Judge) statsEvent() Event {
	return Event{
		Kind:  EventStats,
		Combo: j.stats.Combo,
		Score: j.stats.Score,
		Hit:   j.stats.Hit,
		Miss:  j.stats.Miss,
		Wrong: j.stats.Wrong,
	}
}
