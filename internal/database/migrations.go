package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/internal/habits"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillStreakFields = "2026-08-20_backfill_streak_fields"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillStreakFields, apply: backfillStreakFields},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillStreakFields repairs rows imported from deployments that predate
// the best_streak and target_days columns. Streak fields are recomputed from
// the check-in ledger, which is the authoritative record.
func backfillStreakFields(db *gorm.DB) error {
	if err := db.Model(&habits.Habit{}).
		Where("target_days <= 0").
		Update("target_days", habits.DefaultTargetDays).Error; err != nil {
		return err
	}

	var stale []habits.Habit
	if err := db.Where("best_streak < streak_count OR (streak_count > 0 AND (last_completed_at = '' OR last_completed_at IS NULL))").
		Find(&stale).Error; err != nil {
		return err
	}

	for _, habit := range stale {
		var history []habits.CheckIn
		if err := db.Where("habit_id = ?", habit.ID).
			Order("occurred_on ASC").
			Find(&history).Error; err != nil {
			return err
		}
		state := habits.RebuildStreak(history)
		if err := db.Model(&habits.Habit{}).
			Where("id = ?", habit.ID).
			Updates(map[string]interface{}{
				"streak_count":      state.StreakCount,
				"best_streak":       state.BestStreak,
				"last_completed_at": string(state.LastCompletedOn),
			}).Error; err != nil {
			return err
		}
	}
	return nil
}
