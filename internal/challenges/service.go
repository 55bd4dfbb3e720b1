package challenges

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	opServiceNew = "challenges.service.new"
	opCreate     = "challenges.create"
	opList       = "challenges.list"
	opJoin       = "challenges.join"
	opProgress   = "challenges.progress"
	opDelete     = "challenges.delete"
)

// IDProvider issues opaque unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for the challenge service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns challenges and their participant rows.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the challenge service.
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

// CreateRequest carries the fields for a new challenge. Dates are ISO
// "YYYY-MM-DD" civil dates.
type CreateRequest struct {
	Name        string
	Description string
	StartDate   string
	EndDate     string
}

// Create persists a challenge with its creator as the first participant.
func (s *Service) Create(ctx context.Context, creatorID string, request CreateRequest) (Challenge, error) {
	name, err := normalizeChallengeName(request.Name)
	if err != nil {
		return Challenge{}, newServiceError(opCreate, "invalid_name", err)
	}
	description, err := normalizeDescription(request.Description)
	if err != nil {
		return Challenge{}, newServiceError(opCreate, "invalid_description", err)
	}
	startDate, endDate, err := normalizeDateRange(request.StartDate, request.EndDate)
	if err != nil {
		return Challenge{}, newServiceError(opCreate, "invalid_dates", err)
	}

	challengeID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("creator_id", creatorID))
		return Challenge{}, newServiceError(opCreate, "id_generation_failed", err)
	}
	participantID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("creator_id", creatorID))
		return Challenge{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	challenge := Challenge{
		ID:          challengeID,
		CreatorID:   creatorID,
		Name:        name,
		Description: description,
		StartDate:   startDate,
		EndDate:     endDate,
		Participants: []Participant{{
			ID:          participantID,
			ChallengeID: challengeID,
			UserID:      creatorID,
			JoinedAt:    now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(&challenge).Error; err != nil {
			return newServiceError(opCreate, "insert_failed", classifyStorageError(err))
		}
		if err := tx.Create(&challenge.Participants).Error; err != nil {
			return newServiceError(opCreate, "participant_insert_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opCreate, txErr, creatorID)
		return Challenge{}, txErr
	}
	return challenge, nil
}

// List returns challenges the user created or joined, newest first, with
// participants preloaded.
func (s *Service) List(ctx context.Context, userID string) ([]Challenge, error) {
	challengeRows := make([]Challenge, 0)
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		Where("creator_id = ? OR id IN (?)", userID,
			s.db.Model(&Participant{}).Select("challenge_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&challengeRows).Error; err != nil {
		classified := classifyStorageError(err)
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opList, "query_failed", classified)
	}
	return challengeRows, nil
}

// Join adds the user as a participant. The unique (challenge_id, user_id)
// index makes the insert the atomic membership check; a second join
// surfaces ErrAlreadyJoined.
func (s *Service) Join(ctx context.Context, userID, challengeID string) (Participant, error) {
	var challenge Challenge
	err := s.db.WithContext(ctx).Take(&challenge, "id = ?", challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Participant{}, newServiceError(opJoin, "not_found",
			fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID))
	}
	if err != nil {
		classified := classifyStorageError(err)
		s.logError(opJoin, "lookup_failed", err, zap.String("challenge_id", challengeID))
		return Participant{}, newServiceError(opJoin, "lookup_failed", classified)
	}

	participantID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opJoin, "id_generation_failed", err, zap.String("challenge_id", challengeID))
		return Participant{}, newServiceError(opJoin, "id_generation_failed", err)
	}
	participant := Participant{
		ID:          participantID,
		ChallengeID: challengeID,
		UserID:      userID,
		JoinedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&participant).Error; err != nil {
		classified := classifyStorageError(err)
		if errors.Is(classified, ErrAlreadyJoined) {
			return Participant{}, newServiceError(opJoin, "already_joined", classified)
		}
		s.logError(opJoin, "insert_failed", err, zap.String("challenge_id", challengeID))
		return Participant{}, newServiceError(opJoin, "insert_failed", classified)
	}
	return participant, nil
}

// UpdateProgress sets the user's own progress within [0, 100].
func (s *Service) UpdateProgress(ctx context.Context, userID, challengeID string, progress int) (Participant, error) {
	if err := validateProgress(progress); err != nil {
		return Participant{}, newServiceError(opProgress, "invalid_progress", err)
	}

	var participant Participant
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("challenge_id = ? AND user_id = ?", challengeID, userID).
			Take(&participant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opProgress, "not_found",
				fmt.Errorf("%w: not a participant of %s", ErrNotFound, challengeID))
		}
		if err != nil {
			return newServiceError(opProgress, "lookup_failed", classifyStorageError(err))
		}
		participant.Progress = progress
		if err := tx.Save(&participant).Error; err != nil {
			return newServiceError(opProgress, "save_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opProgress, txErr, userID)
		return Participant{}, txErr
	}
	return participant, nil
}

// Delete removes a challenge and its participants. Only the creator may
// delete.
func (s *Service) Delete(ctx context.Context, userID, challengeID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge Challenge
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("creator_id = ? AND id = ?", userID, challengeID).
			Take(&challenge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opDelete, "not_found",
				fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID))
		}
		if err != nil {
			return newServiceError(opDelete, "lookup_failed", classifyStorageError(err))
		}
		if err := tx.Where("challenge_id = ?", challenge.ID).Delete(&Participant{}).Error; err != nil {
			return newServiceError(opDelete, "cascade_failed", classifyStorageError(err))
		}
		if err := tx.Delete(&Challenge{}, "id = ?", challenge.ID).Error; err != nil {
			return newServiceError(opDelete, "delete_failed", classifyStorageError(err))
		}
		return nil
	})
	if txErr != nil {
		s.logStorageFailure(opDelete, txErr, userID)
		return txErr
	}
	return nil
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
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %v", ErrAlreadyJoined, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (s *Service) logStorageFailure(operation string, err error, userID string) {
	if !errors.Is(err, ErrStorageUnavailable) {
		return
	}
	s.logError(operation, "storage_failed", err, zap.String("user_id", userID))
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
	logger.Error("challenges service error", attrs...)
}
