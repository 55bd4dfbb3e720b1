package habits

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
	opServiceNew = "habits.service.new"
	opCreate     = "habits.create"
	opUpdate     = "habits.update"
	opDelete     = "habits.delete"
	opList       = "habits.list"
	opGet        = "habits.get"
	opCheckIn    = "habits.check_in"
	opHistory    = "habits.history"
	opRebuild    = "habits.rebuild"
)

// IDProvider issues opaque unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for the habit service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns habit rows and their check-in ledger. Streak fields are
// maintained synchronously by the streak reducer inside the check-in
// transaction, so a returned snapshot is always consistent with the ledger.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the habit service.
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

// CreateRequest carries the caller-supplied fields for a new habit.
// Zero-valued Icon and TargetDays receive the documented defaults.
type CreateRequest struct {
	Name       string
	Icon       string
	TargetDays int
}

// Create validates the request, applies defaults once, and persists a habit
// with zeroed streak fields. The created snapshot is returned directly.
func (s *Service) Create(ctx context.Context, owner OwnerID, request CreateRequest) (Habit, error) {
	name, err := normalizeName(request.Name)
	if err != nil {
		return Habit{}, newServiceError(opCreate, "invalid_name", err)
	}
	icon, err := normalizeIcon(request.Icon)
	if err != nil {
		return Habit{}, newServiceError(opCreate, "invalid_icon", err)
	}
	targetDays, err := normalizeTargetDays(request.TargetDays)
	if err != nil {
		return Habit{}, newServiceError(opCreate, "invalid_target_days", err)
	}

	habitID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("owner_id", owner.String()))
		return Habit{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	habit := Habit{
		ID:         habitID,
		OwnerID:    owner.String(),
		Name:       name,
		Icon:       icon,
		TargetDays: targetDays,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(&habit).Error; err != nil {
		classified := classifyStorageError(err)
		s.logError(opCreate, "insert_failed", err, zap.String("owner_id", owner.String()))
		return Habit{}, newServiceError(opCreate, "insert_failed", classified)
	}

	return habit, nil
}

// Update applies a partial patch to an owner's habit and returns the updated
// snapshot.
func (s *Service) Update(ctx context.Context, owner OwnerID, habitID HabitID, patch Patch) (Habit, error) {
	var updated Habit
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := lockHabit(tx, owner, habitID)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			name, err := normalizeName(*patch.Name)
			if err != nil {
				return newServiceError(opUpdate, "invalid_name", err)
			}
			habit.Name = name
		}
		if patch.Icon != nil {
			icon, err := normalizeIcon(*patch.Icon)
			if err != nil {
				return newServiceError(opUpdate, "invalid_icon", err)
			}
			habit.Icon = icon
		}
		if patch.TargetDays != nil {
			if *patch.TargetDays <= 0 {
				return newServiceError(opUpdate, "invalid_target_days",
					fmt.Errorf("%w: target days must be positive", ErrValidation))
			}
			habit.TargetDays = *patch.TargetDays
		}

		habit.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&habit).Error; err != nil {
			return newServiceError(opUpdate, "save_failed", classifyStorageError(err))
		}
		updated = habit
		return nil
	})
	if txErr != nil {
		s.logDomainFailure(opUpdate, txErr, owner, habitID)
		return Habit{}, txErr
	}
	return updated, nil
}

// Delete removes an owner's habit and its entire check-in history in one
// transaction. A missing habit surfaces ErrNotFound; callers wanting
// idempotent deletes may treat that as success.
func (s *Service) Delete(ctx context.Context, owner OwnerID, habitID HabitID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := lockHabit(tx, owner, habitID)
		if err != nil {
			return err
		}
		if err := tx.Where("habit_id = ?", habit.ID).Delete(&CheckIn{}).Error; err != nil {
			return newServiceError(opDelete, "cascade_failed", classifyStorageError(err))
		}
		if err := tx.Delete(&habit).Error; err != nil {
			return newServiceError(opDelete, "delete_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logDomainFailure(opDelete, txErr, owner, habitID)
		return txErr
	}
	return nil
}

// List returns the owner's habits ordered by creation time, newest first.
// An owner with no habits receives an empty slice, not an error.
func (s *Service) List(ctx context.Context, owner OwnerID) ([]Habit, error) {
	habitRows := make([]Habit, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", owner.String()).
		Order("created_at DESC").
		Find(&habitRows).Error; err != nil {
		classified := classifyStorageError(err)
		s.logError(opList, "query_failed", err, zap.String("owner_id", owner.String()))
		return nil, newServiceError(opList, "query_failed", classified)
	}
	return habitRows, nil
}

// Get fetches a single habit scoped to its owner.
func (s *Service) Get(ctx context.Context, owner OwnerID, habitID HabitID) (Habit, error) {
	var habit Habit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", owner.String(), habitID.String()).
		Take(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Habit{}, newServiceError(opGet, "not_found", fmt.Errorf("%w: %s", ErrNotFound, habitID))
	}
	if err != nil {
		classified := classifyStorageError(err)
		s.logError(opGet, "query_failed", err, zap.String("habit_id", habitID.String()))
		return Habit{}, newServiceError(opGet, "query_failed", classified)
	}
	return habit, nil
}

// CheckIn records one completion for the given local day and applies the
// streak reducer, all in a single transaction. The unique (habit_id,
// occurred_on) index makes the insert the atomic uniqueness check: of two
// concurrent attempts for the same day exactly one insert succeeds and the
// other surfaces ErrDuplicateCheckIn.
func (s *Service) CheckIn(ctx context.Context, owner OwnerID, habitID HabitID, day Day) (Habit, error) {
	if day.IsZero() {
		return Habit{}, newServiceError(opCheckIn, "invalid_day",
			fmt.Errorf("%w: occurred_on is required", ErrValidation))
	}

	var updated Habit
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := lockHabit(tx, owner, habitID)
		if err != nil {
			return err
		}

		checkInID, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opCheckIn, "id_generation_failed", err)
		}
		checkIn := CheckIn{
			ID:         checkInID,
			HabitID:    habit.ID,
			UserID:     owner.String(),
			OccurredOn: day.String(),
			CreatedAt:  s.clock().UTC(),
		}
		if err := tx.Create(&checkIn).Error; err != nil {
			classified := classifyStorageError(err)
			if errors.Is(classified, ErrDuplicateCheckIn) {
				return newServiceError(opCheckIn, "duplicate_day", classified)
			}
			return newServiceError(opCheckIn, "insert_failed", classified)
		}

		prior := streakStateOf(habit)
		var state StreakState
		if !prior.LastCompletedOn.IsZero() && !prior.LastCompletedOn.Before(day) {
			// Backfilled day: the incremental reducer cannot splice an
			// earlier day into the cached state, so recompute from the
			// full ledger the inserted row is now part of.
			var history []CheckIn
			if err := tx.Where("habit_id = ?", habit.ID).
				Order("occurred_on ASC").
				Find(&history).Error; err != nil {
				return newServiceError(opCheckIn, "history_query_failed", classifyStorageError(err))
			}
			state = RebuildStreak(history)
		} else {
			state = advanceStreak(prior, day)
		}
		habit.StreakCount = state.StreakCount
		habit.BestStreak = state.BestStreak
		habit.LastCompletedOn = state.LastCompletedOn.String()
		habit.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&habit).Error; err != nil {
			return newServiceError(opCheckIn, "streak_save_failed", classifyStorageError(err))
		}
		updated = habit
		return nil
	})
	if txErr != nil {
		s.logDomainFailure(opCheckIn, txErr, owner, habitID)
		return Habit{}, txErr
	}
	return updated, nil
}

// History returns the habit's check-ins ascending by occurred_on, optionally
// bounded by from/to (inclusive).
func (s *Service) History(ctx context.Context, owner OwnerID, habitID HabitID, from, to Day) ([]CheckIn, error) {
	var habit Habit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", owner.String(), habitID.String()).
		Take(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// A deleted habit has no history; callers see an empty calendar.
		return []CheckIn{}, nil
	}
	if err != nil {
		classified := classifyStorageError(err)
		s.logError(opHistory, "habit_lookup_failed", err, zap.String("habit_id", habitID.String()))
		return nil, newServiceError(opHistory, "habit_lookup_failed", classified)
	}

	query := s.db.WithContext(ctx).Where("habit_id = ?", habit.ID)
	if !from.IsZero() {
		query = query.Where("occurred_on >= ?", from.String())
	}
	if !to.IsZero() {
		query = query.Where("occurred_on <= ?", to.String())
	}

	checkIns := make([]CheckIn, 0)
	if err := query.Order("occurred_on ASC").Find(&checkIns).Error; err != nil {
		classified := classifyStorageError(err)
		s.logError(opHistory, "query_failed", err, zap.String("habit_id", habitID.String()))
		return nil, newServiceError(opHistory, "query_failed", classified)
	}
	return checkIns, nil
}

// Rebuild recomputes the habit's streak fields from its full ledger history
// and persists them, replacing whatever was cached. Used by data migrations
// and as a recovery path when cached fields are suspect.
func (s *Service) Rebuild(ctx context.Context, owner OwnerID, habitID HabitID) (Habit, error) {
	var updated Habit
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := lockHabit(tx, owner, habitID)
		if err != nil {
			return err
		}
		var history []CheckIn
		if err := tx.Where("habit_id = ?", habit.ID).
			Order("occurred_on ASC").
			Find(&history).Error; err != nil {
			return newServiceError(opRebuild, "history_query_failed", classifyStorageError(err))
		}
		state := RebuildStreak(history)
		habit.StreakCount = state.StreakCount
		habit.BestStreak = state.BestStreak
		habit.LastCompletedOn = state.LastCompletedOn.String()
		habit.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&habit).Error; err != nil {
			return newServiceError(opRebuild, "streak_save_failed", classifyStorageError(err))
		}
		updated = habit
		return nil
	})
	if txErr != nil {
		s.logDomainFailure(opRebuild, txErr, owner, habitID)
		return Habit{}, txErr
	}
	return updated, nil
}

func streakStateOf(habit Habit) StreakState {
	state := StreakState{
		StreakCount: habit.StreakCount,
		BestStreak:  habit.BestStreak,
	}
	if habit.LastCompletedOn != "" {
		if day, err := NewDay(habit.LastCompletedOn); err == nil {
			state.LastCompletedOn = day
		}
	}
	return state
}

func lockHabit(tx *gorm.DB, owner OwnerID, habitID HabitID) (Habit, error) {
	var habit Habit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id = ?", owner.String(), habitID.String()).
		Take(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Habit{}, newServiceError(opGet, "not_found", fmt.Errorf("%w: %s", ErrNotFound, habitID))
	}
	if err != nil {
		return Habit{}, newServiceError(opGet, "lookup_failed", classifyStorageError(err))
	}
	return habit, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

// logDomainFailure logs storage faults at error level; validation,
// not-found, and duplicate outcomes are caller mistakes and stay quiet.
func (s *Service) logDomainFailure(operation string, err error, owner OwnerID, habitID HabitID) {
	if !errors.Is(err, ErrStorageUnavailable) {
		return
	}
	s.logError(operation, "storage_failed", err,
		zap.String("owner_id", owner.String()),
		zap.String("habit_id", habitID.String()))
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
	s.loggerOrDefault().Error("habits service error", attrs...)
}
