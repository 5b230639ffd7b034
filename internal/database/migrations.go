package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillEngagementCounters = "2026-08-10_backfill_engagement_counters"

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
		{name: migrationBackfillEngagementCounters, apply: backfillEngagementCounters},
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

// backfillEngagementCounters recomputes the write-maintained counters from
// their relation tables, repairing drift left behind by earlier releases.
func backfillEngagementCounters(db *gorm.DB) error {
	statements := []string{
		"UPDATE posts SET shares_count = (SELECT COUNT(*) FROM post_shares WHERE post_shares.post_id = posts.id);",
		"UPDATE comments SET likes_count = (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id);",
		"UPDATE events SET rsvp_count = (SELECT COUNT(*) FROM event_rsvps WHERE event_rsvps.event_id = events.id);",
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
