package challenges

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxNameLength        = 256
	maxDescriptionLength = 1024

	dayLayout = "2006-01-02"
)

var (
	// ErrValidation indicates caller-supplied data violates a field constraint.
	ErrValidation = errors.New("challenges: validation failed")
	// ErrNotFound indicates the challenge or participant does not exist.
	ErrNotFound = errors.New("challenges: not found")
	// ErrAlreadyJoined indicates the user already participates in the challenge.
	ErrAlreadyJoined = errors.New("challenges: already joined")
	// ErrStorageUnavailable indicates the backing store failed; callers may retry.
	ErrStorageUnavailable = errors.New("challenges: storage unavailable")
)

// Challenge models a time-boxed group goal created by one user.
type Challenge struct {
	ID           string        `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	CreatorID    string        `gorm:"column:creator_id;size:190;not null;index" json:"creator_id"`
	Name         string        `gorm:"column:name;size:256;not null" json:"name"`
	Description  string        `gorm:"column:description;size:1024" json:"description,omitempty"`
	StartDate    string        `gorm:"column:start_date;size:10;not null" json:"start_date"`
	EndDate      string        `gorm:"column:end_date;size:10;not null" json:"end_date"`
	Participants []Participant `gorm:"foreignKey:ChallengeID;references:ID" json:"participants"`
	CreatedAt    time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Challenge) TableName() string {
	return "challenges"
}

// Participant is one user's membership and progress in a challenge. The
// (challenge_id, user_id) pair is unique so a double join resolves to
// exactly one row.
type Participant struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	ChallengeID string    `gorm:"column:challenge_id;size:190;not null;uniqueIndex:idx_participants_challenge_user,priority:1" json:"challenge_id"`
	UserID      string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_participants_challenge_user,priority:2" json:"user_id"`
	Progress    int       `gorm:"column:progress;not null;default:0" json:"progress"`
	JoinedAt    time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
}

// TableName provides the explicit table binding for GORM.
func (Participant) TableName() string {
	return "challenge_participants"
}

func normalizeChallengeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	return trimmed, nil
}

func normalizeDescription(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > maxDescriptionLength {
		return "", fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxDescriptionLength)
	}
	return trimmed, nil
}

func normalizeDateRange(start, end string) (string, string, error) {
	startParsed, err := time.Parse(dayLayout, strings.TrimSpace(start))
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid start date %q", ErrValidation, start)
	}
	endParsed, err := time.Parse(dayLayout, strings.TrimSpace(end))
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid end date %q", ErrValidation, end)
	}
	if endParsed.Before(startParsed) {
		return "", "", fmt.Errorf("%w: end date precedes start date", ErrValidation)
	}
	return startParsed.Format(dayLayout), endParsed.Format(dayLayout), nil
}

func validateProgress(progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress must be within [0, 100]", ErrValidation)
	}
	return nil
}
