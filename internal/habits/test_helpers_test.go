package habits

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func mustDay(t *testing.T, value string) Day {
	t.Helper()
	day, err := NewDay(value)
	if err != nil {
		t.Fatalf("unexpected day error: %v", err)
	}
	return day
}

func mustInstant(t *testing.T, value string) time.Time {
	t.Helper()
	instant, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("unexpected instant error: %v", err)
	}
	return instant
}

func mustOwnerID(t *testing.T, value string) OwnerID {
	t.Helper()
	id, err := NewOwnerID(value)
	if err != nil {
		t.Fatalf("unexpected owner id error: %v", err)
	}
	return id
}

func mustHabitID(t *testing.T, value string) HabitID {
	t.Helper()
	id, err := NewHabitID(value)
	if err != nil {
		t.Fatalf("unexpected habit id error: %v", err)
	}
	return id
}

type sequenceIDGenerator struct {
	prefix string
	next   int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type failingIDGenerator struct{}

func (failingIDGenerator) NewID() (string, error) {
	return "", errors.New("id generator exhausted")
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:cadence_habits_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Habit{}, &CheckIn{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1780000000, 0).UTC() },
		IDProvider: &sequenceIDGenerator{prefix: "row"},
	})
	if err != nil {
		t.Fatalf("failed to construct habit service: %v", err)
	}

	return service, db
}
