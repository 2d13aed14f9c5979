// Package ledger holds the live, mutable, newest-first collection of laps
// for the in-progress session. Mutations are whole-snapshot swaps behind a
// lock, so a reader never observes a half-updated lap list.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/clockwork/internal"
)

// RejectionReason explains why a split or merge was refused. The caller
// (typically the UI layer) decides whether to surface it.
type RejectionReason int

const (
	RejectNone RejectionReason = iota
	RejectNotFound
	RejectRunningLap
	RejectTooShort
	RejectNotAdjacent
)

func (r RejectionReason) Message() string {
	switch r {
	case RejectNone:
		return ""
	case RejectNotFound:
		return "lap not found"
	case RejectRunningLap:
		return "cannot modify the currently running lap, finish or lap it first"
	case RejectTooShort:
		return "lap is too short to split (needs at least 2 seconds)"
	case RejectNotAdjacent:
		return "only adjacent laps can be merged"
	}
	return "rejected"
}

type Ledger struct {
	mu     sync.RWMutex
	laps   []internal.WorkLap
	logger internal.Logger
	now    func() time.Time
}

func New(logger internal.Logger) *Ledger {
	return &Ledger{logger: logger, now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (g *Ledger) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// AddLap starts a new running lap at the front of the ledger and returns
// it. Ending the previously running lap is the caller's job; the ledger
// itself never closes laps implicitly.
func (g *Ledger) AddLap(rate float64) internal.WorkLap {
	g.mu.Lock()
	defer g.mu.Unlock()
	lap := internal.NewWorkLap(g.now(), rate)
	g.laps = append([]internal.WorkLap{lap}, g.laps...)
	return lap
}

// EndCurrent closes the lap with the given id. A closed lap never becomes
// running again.
func (g *Ledger) EndCurrent(id string, end time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutate(id, func(l *internal.WorkLap) {
		l.EndTime = end
	})
}

func (g *Ledger) UpdateTime(id string, hours, minutes, seconds int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutate(id, func(l *internal.WorkLap) {
		l.Hours = hours
		l.Minutes = minutes
		l.Seconds = seconds
	})
}

func (g *Ledger) UpdateWorkDone(id, workDone string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutate(id, func(l *internal.WorkLap) {
		l.WorkDone = workDone
	})
}

func (g *Ledger) SetBreak(id string, isBreak bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutate(id, func(l *internal.WorkLap) {
		l.IsBreak = isBreak
	})
}

func (g *Ledger) mutate(id string, fn func(*internal.WorkLap)) bool {
	for i := range g.laps {
		if g.laps[i].ID == id {
			laps := snapshot(g.laps)
			fn(&laps[i])
			g.laps = laps
			return true
		}
	}
	return false
}

// Split replaces one closed lap with two laps whose durations sum to the
// original. The earlier half keeps the original start and a synthesized
// end at the midpoint second; the later half spans midpoint to the
// original end and keeps the note, the earlier half's note is cleared.
func (g *Ledger) Split(id string) RejectionReason {
	g.mu.Lock()
	defer g.mu.Unlock()

	index := g.indexOf(id)
	if index < 0 {
		return RejectNotFound
	}
	lap := g.laps[index]
	if lap.Running() {
		return RejectRunningLap
	}
	total := lap.TotalSecondsRaw()
	if total < 2 {
		return RejectTooShort
	}

	half := total / 2
	remainder := total - half

	start := lap.StartTime
	if start.IsZero() {
		// Recover a usable start boundary from the end and the counters.
		start = lap.EndTime.Add(-time.Duration(total) * time.Second)
	}
	mid := start.Add(time.Duration(half) * time.Second)

	earlier := internal.WorkLap{
		ID:         uuid.NewString(),
		StartTime:  lap.StartTime,
		EndTime:    mid,
		IsBreak:    lap.IsBreak,
		HourlyRate: lap.HourlyRate,
	}
	earlier.SetDuration(half)

	later := internal.WorkLap{
		ID:         uuid.NewString(),
		StartTime:  mid,
		EndTime:    lap.EndTime,
		WorkDone:   lap.WorkDone,
		IsBreak:    lap.IsBreak,
		HourlyRate: lap.HourlyRate,
	}
	later.SetDuration(remainder)

	laps := snapshot(g.laps)
	// Newest-first order: the later half sits at the original index, the
	// earlier half right after it.
	laps = append(laps[:index], append([]internal.WorkLap{later, earlier}, laps[index+1:]...)...)
	g.laps = laps
	g.logger.Debugf("ledger: split lap %s into %s/%s (%ds/%ds)", id, later.ID, earlier.ID, remainder, half)
	return RejectNone
}

// Merge replaces two adjacent closed laps with one lap spanning from the
// older lap's start to the newer lap's end. Notes are joined with a
// newline (empties dropped) and the break flag is the AND of both.
func (g *Ledger) Merge(idA, idB string) RejectionReason {
	g.mu.Lock()
	defer g.mu.Unlock()

	idxA := g.indexOf(idA)
	idxB := g.indexOf(idB)
	if idxA < 0 || idxB < 0 || idxA == idxB {
		return RejectNotFound
	}
	if g.laps[idxA].Running() || g.laps[idxB].Running() {
		return RejectRunningLap
	}
	if idxA-idxB != 1 && idxB-idxA != 1 {
		return RejectNotAdjacent
	}

	// Higher index = chronologically older in a newest-first ledger.
	olderIdx, newerIdx := idxA, idxB
	if olderIdx < newerIdx {
		olderIdx, newerIdx = newerIdx, olderIdx
	}
	older := g.laps[olderIdx]
	newer := g.laps[newerIdx]

	var parts []string
	for _, s := range []string{older.WorkDone, newer.WorkDone} {
		if s != "" {
			parts = append(parts, s)
		}
	}

	merged := internal.WorkLap{
		ID:         uuid.NewString(),
		StartTime:  older.StartTime,
		EndTime:    newer.EndTime,
		WorkDone:   strings.Join(parts, "\n"),
		IsBreak:    older.IsBreak && newer.IsBreak,
		HourlyRate: older.HourlyRate,
	}
	merged.SetDuration(older.TotalSecondsRaw() + newer.TotalSecondsRaw())

	laps := make([]internal.WorkLap, 0, len(g.laps)-1)
	for i, l := range g.laps {
		if i == olderIdx || i == newerIdx {
			continue
		}
		laps = append(laps, l)
	}
	laps = append(laps[:newerIdx], append([]internal.WorkLap{merged}, laps[newerIdx:]...)...)
	g.laps = laps
	g.logger.Debugf("ledger: merged laps %s+%s into %s", idA, idB, merged.ID)
	return RejectNone
}

// Reset clears the ledger. Used when a session is stopped and archived.
func (g *Ledger) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.laps = nil
}

// Replace loads a persisted snapshot wholesale (crash recovery).
func (g *Ledger) Replace(laps []internal.WorkLap) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.laps = snapshot(laps)
}

// Laps returns a newest-first copy of the ledger.
func (g *Ledger) Laps() []internal.WorkLap {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return snapshot(g.laps)
}

func (g *Ledger) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.laps)
}

// First returns the newest lap.
func (g *Ledger) First() (internal.WorkLap, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.laps) == 0 {
		return internal.WorkLap{}, false
	}
	return g.laps[0], true
}

func (g *Ledger) GetByID(id string) (internal.WorkLap, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i := g.indexOf(id); i >= 0 {
		return g.laps[i], true
	}
	return internal.WorkLap{}, false
}

func (g *Ledger) indexOf(id string) int {
	for i := range g.laps {
		if g.laps[i].ID == id {
			return i
		}
	}
	return -1
}

func snapshot(laps []internal.WorkLap) []internal.WorkLap {
	out := make([]internal.WorkLap, len(laps))
	copy(out, laps)
	return out
}
