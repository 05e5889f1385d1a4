package database

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := normalizeTierValues(db); err != nil {
		return err
	}
	if err := purgeExpiredDeals(db); err != nil {
		return err
	}
	return nil
}

// normalizeTierValues backfills tier columns written before tiering
// existed. Safe to run multiple times.
func normalizeTierValues(db *gorm.DB) error {
	if !db.Migrator().HasTable("deals") {
		return nil
	}

	result := db.Exec(`UPDATE deals SET tier = 'STANDARD' WHERE tier IS NULL OR tier = ''`)
	if result.Error != nil {
		log.Printf("Warning: failed to normalize deal tiers: %v", result.Error)
		return nil
	}
	if result.RowsAffected > 0 {
		log.Printf("Normalized tier on %d legacy deals", result.RowsAffected)
	}
	return nil
}

// purgeExpiredDeals drops deals whose listings are long gone. The
// unique listing_id index stays useful because expired rows no longer
// occupy it.
func purgeExpiredDeals(db *gorm.DB) error {
	if !db.Migrator().HasTable("deals") {
		return nil
	}

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	result := db.Exec(`DELETE FROM deals WHERE expires_at < ?`, cutoff)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Purged %d expired deals", result.RowsAffected)
	}
	return nil
}
