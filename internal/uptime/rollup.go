package uptime

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// RollupSummary reports one daily rollup run.
type RollupSummary struct {
	Date     string `json:"date"`
	Monitors int    `json:"monitors"`
	Checks   int    `json:"checks"`
}

// RunDailyRollup folds yesterday's (UTC, relative to now) status history
// into one monitor_daily_stats row per monitor and deletes the folded rows.
func (m *Module) RunDailyRollup(ctx context.Context, now time.Time) (RollupSummary, error) {
	if m.store == nil {
		return RollupSummary{}, errors.New("uptime store not available")
	}
	m.inflight.Add(1)
	defer m.inflight.Done()

	today := now.UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -1)
	sum := RollupSummary{Date: from.Format(dateLayout)}

	stats, err := m.store.RollupDay(ctx, sum.Date, from, today)
	if err != nil {
		m.logger.Warn("daily rollup failed", zap.String("date", sum.Date), zap.Error(err))
		return sum, err
	}
	sum.Monitors = len(stats)
	for i := range stats {
		sum.Checks += stats[i].TotalChecks
	}
	m.logger.Info("daily rollup completed",
		zap.String("date", sum.Date),
		zap.Int("monitors", sum.Monitors),
		zap.Int("checks", sum.Checks),
	)
	m.publish(ctx, TopicRollupCompleted, sum)
	return sum, nil
}
