package audit

import (
	"context"
	"fmt"
	"slices"
	"time"
)

const (
	defaultMonitorWindow    = 5 * time.Minute
	defaultMonitorThreshold = 5
)

// Monitor scans the audit trail for bursts of failed logins.
type Monitor struct {
	logger    *Logger
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewMonitor creates a new security monitor
func NewMonitor(logger *Logger) *Monitor {
	return &Monitor{
		logger:    logger,
		window:    defaultMonitorWindow,
		threshold: defaultMonitorThreshold,
		now:       time.Now,
	}
}

// DetectFailedLogins raises one CRITICAL event per account that failed
// threshold or more logins within the window, and returns those account IDs.
func (m *Monitor) DetectFailedLogins(ctx context.Context) ([]int, error) {
	now := m.now().UTC()
	since := now.Add(-m.window)
	failed := false

	events, err := m.logger.QueryLogs(ctx, QueryFilters{
		StartTime: &since,
		EndTime:   &now,
		Action:    ActionLogin,
		Success:   &failed,
		Limit:     1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	failedAttempts := make(map[int]int)
	for _, event := range events {
		if event.UserID != nil {
			failedAttempts[*event.UserID]++
		}
	}

	var flagged []int
	for userID, count := range failedAttempts {
		if count < m.threshold {
			continue
		}
		flagged = append(flagged, userID)

		m.logger.log.Warn("security alert: repeated failed logins", "user_id", userID, "attempts", count, "window", m.window)
		_ = m.logger.Log(&Event{
			Level:    LevelCritical,
			UserID:   &userID,
			Action:   ActionFailedLoginThreshold,
			Resource: "authentication",
			Success:  false,
			ErrorMsg: fmt.Sprintf("%d failed attempts detected", count),
		})
	}
	slices.Sort(flagged)

	return flagged, nil
}

// DetectSuspiciousActivity runs all security checks
func (m *Monitor) DetectSuspiciousActivity(ctx context.Context) error {
	if _, err := m.DetectFailedLogins(ctx); err != nil {
		m.logger.log.Error("failed to detect failed logins", "error", err)
		return err
	}
	return nil
}

// Run scans every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.DetectSuspiciousActivity(ctx)
		}
	}
}
