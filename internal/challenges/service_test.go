package challenges

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestServiceCreateEnrollsCreator(t *testing.T) {
	service, _ := newTestService(t)

	challenge, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name:        "March running club",
		Description: "Run every day of March",
		StartDate:   "2026-03-01",
		EndDate:     "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(challenge.Participants) != 1 {
		t.Fatalf("expected creator enrolled, got %d participants", len(challenge.Participants))
	}
	if challenge.Participants[0].UserID != "user-1" {
		t.Fatalf("expected creator as participant, got %s", challenge.Participants[0].UserID)
	}
	if challenge.Participants[0].Progress != 0 {
		t.Fatalf("expected zero initial progress, got %d", challenge.Participants[0].Progress)
	}
}

func TestServiceCreateRejections(t *testing.T) {
	service, _ := newTestService(t)

	tests := []struct {
		name    string
		request CreateRequest
	}{
		{name: "blank-name", request: CreateRequest{Name: " ", StartDate: "2026-03-01", EndDate: "2026-03-31"}},
		{name: "bad-start-date", request: CreateRequest{Name: "Run", StartDate: "march 1st", EndDate: "2026-03-31"}},
		{name: "end-before-start", request: CreateRequest{Name: "Run", StartDate: "2026-03-31", EndDate: "2026-03-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.Create(context.Background(), "user-1", tt.request); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestServiceJoinIsUniquePerUser(t *testing.T) {
	service, db := newTestService(t)

	challenge, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name: "Hydration", StartDate: "2026-03-01", EndDate: "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	participant, err := service.Join(context.Background(), "user-2", challenge.ID)
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if participant.ChallengeID != challenge.ID || participant.UserID != "user-2" {
		t.Fatalf("unexpected participant: %+v", participant)
	}

	if _, err := service.Join(context.Background(), "user-2", challenge.ID); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected already joined error, got %v", err)
	}
	if _, err := service.Join(context.Background(), "user-1", challenge.ID); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected already joined error for creator, got %v", err)
	}
	if _, err := service.Join(context.Background(), "user-3", "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for absent challenge, got %v", err)
	}

	var participantCount int64
	if err := db.Model(&Participant{}).Where("challenge_id = ?", challenge.ID).Count(&participantCount).Error; err != nil {
		t.Fatalf("failed to count participants: %v", err)
	}
	if participantCount != 2 {
		t.Fatalf("expected 2 participants, got %d", participantCount)
	}
}

func TestServiceUpdateProgress(t *testing.T) {
	service, _ := newTestService(t)

	challenge, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name: "Reading", StartDate: "2026-03-01", EndDate: "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	participant, err := service.UpdateProgress(context.Background(), "user-1", challenge.ID, 40)
	if err != nil {
		t.Fatalf("unexpected progress error: %v", err)
	}
	if participant.Progress != 40 {
		t.Fatalf("expected progress 40, got %d", participant.Progress)
	}

	if _, err := service.UpdateProgress(context.Background(), "user-1", challenge.ID, 101); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for out-of-range progress, got %v", err)
	}
	if _, err := service.UpdateProgress(context.Background(), "user-9", challenge.ID, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for non-participant, got %v", err)
	}
}

func TestServiceDeleteCreatorOnlyAndCascades(t *testing.T) {
	service, db := newTestService(t)

	challenge, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name: "Plank", StartDate: "2026-03-01", EndDate: "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Join(context.Background(), "user-2", challenge.ID); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	if err := service.Delete(context.Background(), "user-2", challenge.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for non-creator delete, got %v", err)
	}
	if err := service.Delete(context.Background(), "user-1", challenge.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	var remaining int64
	if err := db.Model(&Participant{}).Where("challenge_id = ?", challenge.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count participants: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected cascade to remove participants, %d remain", remaining)
	}
}

func TestServiceListIncludesJoinedChallenges(t *testing.T) {
	service, _ := newTestService(t)

	created, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name: "Mine", StartDate: "2026-03-01", EndDate: "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foreign, err := service.Create(context.Background(), "user-2", CreateRequest{
		Name: "Joined", StartDate: "2026-03-01", EndDate: "2026-03-31",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Create(context.Background(), "user-3", CreateRequest{
		Name: "Unrelated", StartDate: "2026-03-01", EndDate: "2026-03-31",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Join(context.Background(), "user-1", foreign.ID); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	listed, err := service.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected created+joined challenges, got %d", len(listed))
	}
	seen := map[string]bool{}
	for _, challenge := range listed {
		seen[challenge.ID] = true
		if len(challenge.Participants) == 0 {
			t.Fatalf("expected participants preloaded for %s", challenge.Name)
		}
	}
	if !seen[created.ID] || !seen[foreign.ID] {
		t.Fatalf("missing expected challenges in %v", seen)
	}
}

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("row-%d", g.next), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:cadence_challenges_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Challenge{}, &Participant{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1780000000, 0).UTC() },
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct challenge service: %v", err)
	}
	return service, db
}
