package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/internal/challenges"
	"github.com/MarcoPoloResearchLab/cadence/internal/expenses"
	"github.com/MarcoPoloResearchLab/cadence/internal/habits"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	prefix  string
	counter int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter), nil
}

// newDomainHandler wires an httpHandler against real services on an
// in-memory database so handler tests exercise the full request path.
func newDomainHandler(t *testing.T) *httpHandler {
	t.Helper()

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&habits.Habit{},
		&habits.CheckIn{},
		&expenses.Expense{},
		&expenses.ExpenseMember{},
		&challenges.Challenge{},
		&challenges.Participant{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := func() time.Time {
		return time.Unix(1780000000, 0).UTC()
	}

	habitsService, err := habits.NewService(habits.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDGenerator{prefix: "habit"},
	})
	if err != nil {
		t.Fatalf("failed to create habits service: %v", err)
	}
	expensesService, err := expenses.NewService(expenses.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDGenerator{prefix: "expense"},
	})
	if err != nil {
		t.Fatalf("failed to create expenses service: %v", err)
	}
	challengesService, err := challenges.NewService(challenges.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDGenerator{prefix: "challenge"},
	})
	if err != nil {
		t.Fatalf("failed to create challenges service: %v", err)
	}

	return &httpHandler{
		habits:     habitsService,
		expenses:   expensesService,
		challenges: challengesService,
		realtime:   NewRealtimeDispatcher(),
		clock:      clock,
		logger:     zap.NewNop(),
	}
}
