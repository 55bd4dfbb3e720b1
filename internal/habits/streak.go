package habits

import "math"

// StreakState captures the derived streak fields carried on a habit row.
type StreakState struct {
	StreakCount     int
	BestStreak      int
	LastCompletedOn Day
}

// Progress reports goal completion for display. It is derived on demand and
// never persisted.
type Progress struct {
	Ratio   float64 `json:"ratio"`
	Percent int     `json:"percent"`
}

// advanceStreak applies one accepted check-in day to the prior streak state.
//
// A day exactly one after the last completion extends the streak; any larger
// gap (or no prior completion) restarts it at one. A day equal to or earlier
// than the last completion leaves the state untouched: duplicates are already
// rejected by the ledger's unique index, and replays must not rewind state.
func advanceStreak(prior StreakState, day Day) StreakState {
	next := prior
	switch {
	case prior.LastCompletedOn.IsZero():
		next.StreakCount = 1
	case day == prior.LastCompletedOn, day.Before(prior.LastCompletedOn):
		return prior
	case day == prior.LastCompletedOn.Next():
		next.StreakCount = prior.StreakCount + 1
	default:
		next.StreakCount = 1
	}
	if next.StreakCount > next.BestStreak {
		next.BestStreak = next.StreakCount
	}
	next.LastCompletedOn = day
	return next
}

// RebuildStreak derives the streak state from a full check-in history,
// ascending by occurred_on. It produces the same result the incremental
// reducer maintains, which makes cached fields recoverable from the ledger.
func RebuildStreak(history []CheckIn) StreakState {
	state := StreakState{}
	for _, checkIn := range history {
		day, err := NewDay(checkIn.OccurredOn)
		if err != nil {
			continue
		}
		state = advanceStreak(state, day)
	}
	return state
}

func computeProgress(streakCount, targetDays int) Progress {
	if targetDays <= 0 {
		// Rejected at create/update time; a zero guard here only protects
		// rows that predate the target_days column.
		return Progress{}
	}
	ratio := float64(streakCount) / float64(targetDays)
	if ratio > 1 {
		ratio = 1
	}
	return Progress{
		Ratio:   ratio,
		Percent: int(math.Round(ratio * 100)),
	}
}
