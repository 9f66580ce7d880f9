package logging

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"gorm.io/gorm"
)

// PurgeBefore deletes system_logs older than cutoff.
func PurgeBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
