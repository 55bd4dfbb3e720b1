package habits

import "testing"

func TestAdvanceStreakStartsAtOne(t *testing.T) {
	state := advanceStreak(StreakState{}, mustDay(t, "2026-03-01"))
	if state.StreakCount != 1 {
		t.Fatalf("expected streak 1, got %d", state.StreakCount)
	}
	if state.BestStreak != 1 {
		t.Fatalf("expected best streak 1, got %d", state.BestStreak)
	}
	if state.LastCompletedOn != mustDay(t, "2026-03-01") {
		t.Fatalf("unexpected last completed day %s", state.LastCompletedOn)
	}
}

func TestAdvanceStreakConsecutiveDaysExtend(t *testing.T) {
	state := StreakState{}
	for _, raw := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		state = advanceStreak(state, mustDay(t, raw))
	}
	if state.StreakCount != 3 {
		t.Fatalf("expected streak 3, got %d", state.StreakCount)
	}
	if state.BestStreak != 3 {
		t.Fatalf("expected best streak 3, got %d", state.BestStreak)
	}
}

func TestAdvanceStreakGapResets(t *testing.T) {
	tests := []struct {
		name          string
		days          []string
		expectStreak  int
		expectBest    int
		expectLastDay string
	}{
		{
			name:          "two-day-gap-resets",
			days:          []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-05"},
			expectStreak:  1,
			expectBest:    3,
			expectLastDay: "2026-03-05",
		},
		{
			name:          "long-gap-resets",
			days:          []string{"2026-03-01", "2026-04-01"},
			expectStreak:  1,
			expectBest:    1,
			expectLastDay: "2026-04-01",
		},
		{
			name:          "month-boundary-extends",
			days:          []string{"2026-02-28", "2026-03-01"},
			expectStreak:  2,
			expectBest:    2,
			expectLastDay: "2026-03-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := StreakState{}
			for _, raw := range tt.days {
				state = advanceStreak(state, mustDay(t, raw))
			}
			if state.StreakCount != tt.expectStreak {
				t.Fatalf("expected streak %d, got %d", tt.expectStreak, state.StreakCount)
			}
			if state.BestStreak != tt.expectBest {
				t.Fatalf("expected best %d, got %d", tt.expectBest, state.BestStreak)
			}
			if state.LastCompletedOn != mustDay(t, tt.expectLastDay) {
				t.Fatalf("expected last day %s, got %s", tt.expectLastDay, state.LastCompletedOn)
			}
		})
	}
}

func TestAdvanceStreakSameOrEarlierDayIsNoOp(t *testing.T) {
	state := StreakState{}
	state = advanceStreak(state, mustDay(t, "2026-03-01"))
	state = advanceStreak(state, mustDay(t, "2026-03-02"))

	same := advanceStreak(state, mustDay(t, "2026-03-02"))
	if same != state {
		t.Fatalf("same-day replay should not change state: %+v vs %+v", same, state)
	}
	earlier := advanceStreak(state, mustDay(t, "2026-02-20"))
	if earlier != state {
		t.Fatalf("earlier-day replay should not change state: %+v vs %+v", earlier, state)
	}
}

func TestBestStreakNeverDecreases(t *testing.T) {
	days := []string{
		"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04",
		"2026-03-10", "2026-03-11",
		"2026-03-20",
	}
	state := StreakState{}
	for _, raw := range days {
		previousBest := state.BestStreak
		state = advanceStreak(state, mustDay(t, raw))
		if state.BestStreak < previousBest {
			t.Fatalf("best streak decreased from %d to %d at %s", previousBest, state.BestStreak, raw)
		}
		if state.BestStreak < state.StreakCount {
			t.Fatalf("best streak %d below current %d at %s", state.BestStreak, state.StreakCount, raw)
		}
	}
	if state.BestStreak != 4 {
		t.Fatalf("expected best streak 4, got %d", state.BestStreak)
	}
	if state.StreakCount != 1 {
		t.Fatalf("expected current streak 1, got %d", state.StreakCount)
	}
}

func TestRebuildMatchesIncrementalReducer(t *testing.T) {
	histories := [][]string{
		{},
		{"2026-03-01"},
		{"2026-03-01", "2026-03-02", "2026-03-03"},
		{"2026-03-01", "2026-03-03", "2026-03-04", "2026-03-08", "2026-03-09", "2026-03-10", "2026-03-11"},
		{"2025-12-30", "2025-12-31", "2026-01-01", "2026-01-02"},
	}

	for _, days := range histories {
		incremental := StreakState{}
		history := make([]CheckIn, 0, len(days))
		for _, raw := range days {
			incremental = advanceStreak(incremental, mustDay(t, raw))
			history = append(history, CheckIn{HabitID: "habit-1", OccurredOn: raw})
		}
		rebuilt := RebuildStreak(history)
		if rebuilt != incremental {
			t.Fatalf("rebuild diverged for %v: %+v vs %+v", days, rebuilt, incremental)
		}
	}
}

func TestComputeProgressBounds(t *testing.T) {
	tests := []struct {
		name          string
		streak        int
		target        int
		expectPercent int
	}{
		{name: "zero-streak", streak: 0, target: 30, expectPercent: 0},
		{name: "partial", streak: 10, target: 30, expectPercent: 33},
		{name: "at-target", streak: 3, target: 3, expectPercent: 100},
		{name: "beyond-target-caps", streak: 45, target: 30, expectPercent: 100},
		{name: "unmigrated-target-column", streak: 5, target: 0, expectPercent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := computeProgress(tt.streak, tt.target)
			if progress.Percent != tt.expectPercent {
				t.Fatalf("expected %d%%, got %d%%", tt.expectPercent, progress.Percent)
			}
			if progress.Ratio < 0 || progress.Ratio > 1 {
				t.Fatalf("ratio out of bounds: %f", progress.Ratio)
			}
		})
	}
}

func TestDayOfRespectsLocalMidnight(t *testing.T) {
	// 2026-03-02 03:30 UTC is still 2026-03-01 in UTC-5 and already
	// 2026-03-02 in UTC+2.
	instantRaw := "2026-03-02T03:30:00Z"
	instant := mustInstant(t, instantRaw)

	if day := DayOf(instant, -5*60); day != mustDay(t, "2026-03-01") {
		t.Fatalf("expected 2026-03-01 in UTC-5, got %s", day)
	}
	if day := DayOf(instant, 2*60); day != mustDay(t, "2026-03-02") {
		t.Fatalf("expected 2026-03-02 in UTC+2, got %s", day)
	}
	if day := DayOf(instant, 0); day != mustDay(t, "2026-03-02") {
		t.Fatalf("expected 2026-03-02 in UTC, got %s", day)
	}
}
