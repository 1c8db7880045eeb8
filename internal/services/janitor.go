package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/haulbase/dispatch-backend/internal/models"
)

// LocationJanitor periodically purges location pings older than the
// retention horizon. Route tracking summaries are retained separately
// and are never touched by the sweep.
type LocationJanitor struct {
	db        *gorm.DB
	retention time.Duration
	interval  time.Duration
	log       *logrus.Logger
	stop      chan struct{}
}

// NewLocationJanitor creates a janitor purging pings older than
// retention, sweeping once per interval.
func NewLocationJanitor(db *gorm.DB, retention, interval time.Duration, log *logrus.Logger) *LocationJanitor {
	return &LocationJanitor{
		db:        db,
		retention: retention,
		interval:  interval,
		log:       log,
		stop:      make(chan struct{}),
	}
}

// Run sweeps on a ticker until Stop is called. Intended to run in its
// own goroutine.
func (j *LocationJanitor) Run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stop:
			return
		}
	}
}

// Stop terminates the ticker loop.
func (j *LocationJanitor) Stop() {
	close(j.stop)
}

// Sweep deletes location pings recorded before the retention horizon
// and returns the number of rows removed.
func (j *LocationJanitor) Sweep() int64 {
	horizon := time.Now().Add(-j.retention)

	result := j.db.Where("recorded_at < ?", horizon).Delete(&models.DriverLocation{})
	if result.Error != nil {
		j.log.WithError(result.Error).Error("location retention sweep failed")
		return 0
	}

	if result.RowsAffected > 0 {
		j.log.WithFields(logrus.Fields{
			"purged":  result.RowsAffected,
			"horizon": horizon,
		}).Info("purged stale location pings")
	}

	return result.RowsAffected
}
