package habits

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190
	maxNameLength       = 256
	maxIconLength       = 16

	// DefaultIcon is assigned when a habit is created without a glyph.
	DefaultIcon = "🔥"
	// DefaultTargetDays is assigned when a habit is created without a goal length.
	DefaultTargetDays = 30

	dayLayout = "2006-01-02"
)

var (
	// ErrInvalidHabitID indicates that a habit identifier is empty or exceeds storage bounds.
	ErrInvalidHabitID = errors.New("habits: invalid habit id")
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("habits: invalid owner id")
	// ErrInvalidDay indicates that a calendar day string is not an ISO date.
	ErrInvalidDay = errors.New("habits: invalid day")
)

// HabitID represents a validated habit identifier.
type HabitID string

// NewHabitID validates raw input and returns a HabitID.
func NewHabitID(rawInput string) (HabitID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidHabitID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidHabitID, maxIdentifierLength)
	}
	return HabitID(trimmed), nil
}

// String returns the underlying string identifier.
func (id HabitID) String() string {
	return string(id)
}

// OwnerID represents a validated owner identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// Day represents a calendar date at day granularity, stored as "YYYY-MM-DD".
// Comparisons are lexicographic, which matches chronological order for this layout.
type Day string

// NewDay validates an ISO-8601 date string and returns a Day.
func NewDay(rawInput string) (Day, error) {
	trimmed := strings.TrimSpace(rawInput)
	parsed, err := time.Parse(dayLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, rawInput)
	}
	return Day(parsed.Format(dayLayout)), nil
}

// DayOf truncates an instant to the calendar day observed at the given
// fixed offset from UTC. Offset minutes east of UTC are positive.
func DayOf(instant time.Time, offsetMinutes int) Day {
	zone := time.FixedZone("local", offsetMinutes*60)
	return Day(instant.In(zone).Format(dayLayout))
}

// String returns the ISO date string.
func (d Day) String() string {
	return string(d)
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool {
	return d == ""
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	parsed, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return Day(parsed.AddDate(0, 0, 1).Format(dayLayout))
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

// Habit models the persisted habit row, including the cached streak fields
// maintained by the streak reducer.
type Habit struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OwnerID         string    `gorm:"column:user_id;size:190;not null;index:idx_habits_owner_created,priority:1" json:"owner_id"`
	Name            string    `gorm:"column:name;size:256;not null" json:"name"`
	Icon            string    `gorm:"column:icon;size:16;not null" json:"icon"`
	TargetDays      int       `gorm:"column:target_days;not null;default:30" json:"target_days"`
	StreakCount     int       `gorm:"column:streak_count;not null;default:0" json:"streak_count"`
	BestStreak      int       `gorm:"column:best_streak;not null;default:0" json:"best_streak"`
	LastCompletedOn string    `gorm:"column:last_completed_at;size:10" json:"last_completed_at,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime;index:idx_habits_owner_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Habit) TableName() string {
	return "habits"
}

// Progress reports goal completion derived from the cached streak fields.
func (h Habit) Progress() Progress {
	return computeProgress(h.StreakCount, h.TargetDays)
}

// CheckIn models one completed day for a habit. The (habit_id, occurred_on)
// pair is unique; the index is what makes concurrent duplicate attempts
// resolve to exactly one success.
type CheckIn struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	HabitID    string    `gorm:"column:habit_id;size:190;not null;uniqueIndex:idx_checkins_habit_day,priority:1" json:"habit_id"`
	UserID     string    `gorm:"column:user_id;size:190;not null" json:"user_id"`
	OccurredOn string    `gorm:"column:occurred_on;size:10;not null;uniqueIndex:idx_checkins_habit_day,priority:2" json:"occurred_on"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (CheckIn) TableName() string {
	return "habit_check_ins"
}

// Patch describes a partial habit update. Nil fields are left unchanged.
type Patch struct {
	Name       *string
	Icon       *string
	TargetDays *int
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	return trimmed, nil
}

func normalizeIcon(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultIcon, nil
	}
	if len(trimmed) > maxIconLength {
		return "", fmt.Errorf("%w: icon exceeds %d bytes", ErrValidation, maxIconLength)
	}
	return trimmed, nil
}

func normalizeTargetDays(raw int) (int, error) {
	if raw == 0 {
		return DefaultTargetDays, nil
	}
	if raw < 0 {
		return 0, fmt.Errorf("%w: target days must be positive", ErrValidation)
	}
	return raw, nil
}
