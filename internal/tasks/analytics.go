package tasks

import (
	"context"
	"math"
	"time"
)

const (
	DefaultProductivityDays = 7
	MaxProductivityDays     = 365
)

type CompletionStats struct {
	UserID         string  `json:"userId"`
	TotalTasks     int64   `json:"totalTasks"`
	CompletedTasks int64   `json:"completedTasks"`
	CompletionRate float64 `json:"completionRate"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ProductivityReport struct {
	UserID             string       `json:"userId"`
	AnalysisWindowDays int          `json:"analysisWindowDays"`
	Trend              []DailyCount `json:"trend"`
}

// CompletionStats reports the share of completed tasks as a percentage
// rounded to two decimals. An empty task list has a rate of 0.
func (s *Service) CompletionStats(ctx context.Context, requesterID string) (*CompletionStats, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	counts, err := s.repo.CountByOwner(ctx, requesterID)
	if err != nil {
		return nil, storeError("count", err)
	}
	stats := &CompletionStats{
		UserID:         requesterID,
		TotalTasks:     counts.Total,
		CompletedTasks: counts.Completed,
	}
	if counts.Total > 0 {
		rate := float64(counts.Completed) / float64(counts.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

// Productivity counts completions per UTC day over the last days days,
// today included. Days without completions are left out of the trend.
func (s *Service) Productivity(ctx context.Context, requesterID string, days int) (*ProductivityReport, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	if days == 0 {
		days = DefaultProductivityDays
	}
	if days < 1 || days > MaxProductivityDays {
		return nil, invalid("days", "days must be between 1 and %d", MaxProductivityDays)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	completed, err := s.repo.CompletedSince(ctx, requesterID, start)
	if err != nil {
		return nil, storeError("completed since", err)
	}

	perDay := make(map[string]int, days)
	for _, t := range completed {
		perDay[t.UTC().Format(time.DateOnly)]++
	}

	trend := make([]DailyCount, 0, len(perDay))
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		if n := perDay[key]; n > 0 {
			trend = append(trend, DailyCount{Date: key, Count: n})
		}
	}
	return &ProductivityReport{
		UserID:             requesterID,
		AnalysisWindowDays: days,
		Trend:              trend,
	}, nil
}
