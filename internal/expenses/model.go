package expenses

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190
	maxNameLength       = 256
)

var (
	// ErrValidation indicates caller-supplied data violates a field constraint.
	ErrValidation = errors.New("expenses: validation failed")
	// ErrNotFound indicates the expense or member does not exist under the owner.
	ErrNotFound = errors.New("expenses: not found")
	// ErrStorageUnavailable indicates the backing store failed; callers may retry.
	ErrStorageUnavailable = errors.New("expenses: storage unavailable")
)

// Expense models a shared cost owned by the user who recorded it. Amounts
// are integral cents to keep member shares exact.
type Expense struct {
	ID          string          `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OwnerID     string          `gorm:"column:user_id;size:190;not null;index:idx_expenses_owner_created,priority:1" json:"owner_id"`
	Name        string          `gorm:"column:name;size:256;not null" json:"name"`
	TotalCents  int64           `gorm:"column:total_cents;not null" json:"total_cents"`
	Members     []ExpenseMember `gorm:"foreignKey:ExpenseID;references:ID" json:"members"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_expenses_owner_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Expense) TableName() string {
	return "expenses"
}

// ExpenseMember is one participant's share of an expense.
type ExpenseMember struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	ExpenseID       string    `gorm:"column:expense_id;size:190;not null;index" json:"expense_id"`
	UserID          string    `gorm:"column:user_id;size:190;not null" json:"user_id"`
	AmountOwedCents int64     `gorm:"column:amount_owed_cents;not null" json:"amount_owed_cents"`
	IsSettled       bool      `gorm:"column:is_settled;not null;default:false" json:"is_settled"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (ExpenseMember) TableName() string {
	return "expense_members"
}

func normalizeExpenseName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	return trimmed, nil
}

func normalizeMemberIDs(rawMembers []string) ([]string, error) {
	if len(rawMembers) == 0 {
		return nil, fmt.Errorf("%w: at least one member is required", ErrValidation)
	}
	seen := make(map[string]struct{}, len(rawMembers))
	members := make([]string, 0, len(rawMembers))
	for _, raw := range rawMembers {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: member id must not be empty", ErrValidation)
		}
		if len(trimmed) > maxIdentifierLength {
			return nil, fmt.Errorf("%w: member id exceeds %d characters", ErrValidation, maxIdentifierLength)
		}
		if _, dup := seen[trimmed]; dup {
			return nil, fmt.Errorf("%w: duplicate member %s", ErrValidation, trimmed)
		}
		seen[trimmed] = struct{}{}
		members = append(members, trimmed)
	}
	return members, nil
}

// splitEqually divides a total across n members. The remainder cents go to
// the earliest members so the shares always sum to the total.
func splitEqually(totalCents int64, memberCount int) []int64 {
	shares := make([]int64, memberCount)
	base := totalCents / int64(memberCount)
	remainder := totalCents % int64(memberCount)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}
