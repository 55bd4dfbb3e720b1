package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "expenses.service.new"
	opCreate     = "expenses.create"
	opList       = "expenses.list"
	opSettle     = "expenses.settle"
	opDelete     = "expenses.delete"
)

// IDProvider issues opaque unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for the expense service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns shared expenses and their member splits.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the expense service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateRequest carries the fields for a new shared expense. MemberUserIDs
// are the participants the total is split across; the recording owner is
// included only if listed.
type CreateRequest struct {
	Name          string
	TotalCents    int64
	MemberUserIDs []string
}

// Create persists the expense and an equal split across its members in one
// transaction. Remainder cents land on the earliest members, so the member
// shares always sum to the total.
func (s *Service) Create(ctx context.Context, ownerID string, request CreateRequest) (Expense, error) {
	name, err := normalizeExpenseName(request.Name)
	if err != nil {
		return Expense{}, newServiceError(opCreate, "invalid_name", err)
	}
	if request.TotalCents <= 0 {
		return Expense{}, newServiceError(opCreate, "invalid_total",
			fmt.Errorf("%w: total must be positive", ErrValidation))
	}
	memberIDs, err := normalizeMemberIDs(request.MemberUserIDs)
	if err != nil {
		return Expense{}, newServiceError(opCreate, "invalid_members", err)
	}

	expenseID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("owner_id", ownerID))
		return Expense{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	expense := Expense{
		ID:         expenseID,
		OwnerID:    ownerID,
		Name:       name,
		TotalCents: request.TotalCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	shares := splitEqually(request.TotalCents, len(memberIDs))
	for i, memberUserID := range memberIDs {
		memberID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opCreate, "id_generation_failed", err, zap.String("owner_id", ownerID))
			return Expense{}, newServiceError(opCreate, "id_generation_failed", err)
		}
		expense.Members = append(expense.Members, ExpenseMember{
			ID:              memberID,
			ExpenseID:       expenseID,
			UserID:          memberUserID,
			AmountOwedCents: shares[i],
			CreatedAt:       now,
		})
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(&expense).Error; err != nil {
			return newServiceError(opCreate, "insert_failed", classifyStorageError(err))
		}
		if err := tx.Create(&expense.Members).Error; err != nil {
			return newServiceError(opCreate, "member_insert_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opCreate, txErr, ownerID)
		return Expense{}, txErr
	}
	return expense, nil
}

// List returns the owner's expenses with members preloaded, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Expense, error) {
	expenseRows := make([]Expense, 0)
	if err := s.db.WithContext(ctx).
		Preload("Members").
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&expenseRows).Error; err != nil {
		classified := classifyStorageError(err)
		s.logError(opList, "query_failed", err, zap.String("owner_id", ownerID))
		return nil, newServiceError(opList, "query_failed", classified)
	}
	return expenseRows, nil
}

// Settle marks one member's share as settled and returns the refreshed
// expense snapshot.
func (s *Service) Settle(ctx context.Context, ownerID, expenseID, memberID string) (Expense, error) {
	var settled Expense
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expense, err := lockExpense(tx, ownerID, expenseID)
		if err != nil {
			return err
		}

		result := tx.Model(&ExpenseMember{}).
			Where("expense_id = ? AND id = ?", expense.ID, memberID).
			Update("is_settled", true)
		if result.Error != nil {
			return newServiceError(opSettle, "update_failed", classifyStorageError(result.Error))
		}
		if result.RowsAffected == 0 {
			return newServiceError(opSettle, "member_not_found",
				fmt.Errorf("%w: member %s", ErrNotFound, memberID))
		}

		expense.UpdatedAt = s.clock().UTC()
		if err := tx.Omit("Members").Save(&expense).Error; err != nil {
			return newServiceError(opSettle, "save_failed", classifyStorageError(err))
		}
		if err := tx.Preload("Members").Take(&settled, "id = ?", expense.ID).Error; err != nil {
			return newServiceError(opSettle, "reload_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opSettle, txErr, ownerID)
		return Expense{}, txErr
	}
	return settled, nil
}

// Delete removes the owner's expense and its member rows in one transaction.
func (s *Service) Delete(ctx context.Context, ownerID, expenseID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expense, err := lockExpense(tx, ownerID, expenseID)
		if err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&ExpenseMember{}).Error; err != nil {
			return newServiceError(opDelete, "cascade_failed", classifyStorageError(err))
		}
		if err := tx.Delete(&Expense{}, "id = ?", expense.ID).Error; err != nil {
			return newServiceError(opDelete, "delete_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opDelete, txErr, ownerID)
		return txErr
	}
	return nil
}

func lockExpense(tx *gorm.DB, ownerID, expenseID string) (Expense, error) {
	var expense Expense
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id = ?", ownerID, expenseID).
		Take(&expense).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Expense{}, newServiceError(opSettle, "not_found",
			fmt.Errorf("%w: expense %s", ErrNotFound, expenseID))
	}
	if err != nil {
		return Expense{}, newServiceError(opSettle, "lookup_failed", classifyStorageError(err))
	}
	return expense, nil
}

// ServiceError carries a dotted operation code alongside the classified cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (s *Service) logStorageFailure(operation string, err error, ownerID string) {
	if !errors.Is(err, ErrStorageUnavailable) {
		return
	}
	s.logError(operation, "storage_failed", err, zap.String("owner_id", ownerID))
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("expenses service error", attrs...)
}
