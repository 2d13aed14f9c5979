package ledger

import "github.com/yourname/clockwork/internal"

// TotalAmount sums lap earnings, rounded to 3 decimals. When
// excludeBreaks is set, break laps do not count toward the amount.
func (g *Ledger) TotalAmount(excludeBreaks bool) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0.0
	for _, l := range g.laps {
		if excludeBreaks && l.IsBreak {
			continue
		}
		total += l.Amount()
	}
	return internal.Round3(total)
}

// TotalMinutes sums lap durations in minutes, rounded to 2 decimals.
func (g *Ledger) TotalMinutes(excludeBreaks bool) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0.0
	for _, l := range g.laps {
		if excludeBreaks && l.IsBreak {
			continue
		}
		total += l.TotalMinutes()
	}
	return internal.Round2(total)
}

// TotalSeconds sums lap durations in seconds, rounded to 2 decimals.
func (g *Ledger) TotalSeconds(excludeBreaks bool) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0.0
	for _, l := range g.laps {
		if excludeBreaks && l.IsBreak {
			continue
		}
		total += float64(l.TotalSecondsRaw())
	}
	return internal.Round2(total)
}

// TotalBreakMinutes sums break-lap durations in minutes, rounded to 2
// decimals.
func (g *Ledger) TotalBreakMinutes() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0.0
	for _, l := range g.laps {
		if l.IsBreak {
			total += l.TotalMinutes()
		}
	}
	return internal.Round2(total)
}
