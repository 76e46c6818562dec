package tasks

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/chepyr/quicktask/internal/models"
)

type Dashboard struct {
	TotalTasks     int64                  `json:"totalTasks"`
	CompletedTasks int64                  `json:"completedTasks"`
	PendingTasks   int64                  `json:"pendingTasks"`
	PriorityStats  []models.PriorityCount `json:"priorityStats"`
}

// dashboardComputeTimeout bounds a shared dashboard computation, which runs
// detached from any single caller's context.
const dashboardComputeTimeout = 5 * time.Second

func dashboardKey(userID string) string {
	return "dashboard:" + userID
}

// dashboardGeneration counts the invalidations seen for userID. A computed
// dashboard is only cached if the counter has not moved since it started.
func (s *Service) dashboardGeneration(userID string) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(userID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// Dashboard summarizes the requester's tasks. Totals come from a single
// aggregate read, so pending always equals total minus completed.
func (s *Service) Dashboard(ctx context.Context, requesterID string) (*Dashboard, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	key := dashboardKey(requesterID)

	if s.cache != nil {
		var cached Dashboard
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", "user_id", requesterID, "error", err)
		} else if hit {
			if cached.PriorityStats == nil {
				cached.PriorityStats = []models.PriorityCount{}
			}
			return &cached, nil
		}
	}

	gen := s.dashboardGeneration(requesterID)
	started := gen.Load()
	flight := key + "@" + strconv.FormatUint(started, 10)
	v, err, _ := s.sfGroup.Do(flight, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dashboardComputeTimeout)
		defer cancel()
		return s.computeDashboard(cctx, requesterID)
	})
	if err != nil {
		return nil, err
	}
	d := v.(*Dashboard)

	if s.cache != nil && gen.Load() == started {
		if err := s.cache.Set(ctx, key, d); err != nil {
			s.logger.Warn("dashboard cache write failed", "user_id", requesterID, "error", err)
		} else if gen.Load() != started {
			// a mutation landed between the check and the write
			s.invalidateCachedDashboard(ctx, requesterID)
		}
	}
	// callers sharing a singleflight result get their own copy
	out := *d
	out.PriorityStats = append([]models.PriorityCount{}, d.PriorityStats...)
	return &out, nil
}

func (s *Service) computeDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	counts, err := s.repo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, storeError("count", err)
	}
	dist, err := s.repo.PriorityDistribution(ctx, userID)
	if err != nil {
		return nil, storeError("priority distribution", err)
	}

	stats := make([]models.PriorityCount, 0, len(dist))
	for _, pc := range dist {
		if pc.Count > 0 {
			stats = append(stats, pc)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Priority.Rank() < stats[j].Priority.Rank()
	})

	return &Dashboard{
		TotalTasks:     counts.Total,
		CompletedTasks: counts.Completed,
		PendingTasks:   counts.Total - counts.Completed,
		PriorityStats:  stats,
	}, nil
}

func (s *Service) invalidateDashboard(ctx context.Context, userID string) {
	s.dashboardGeneration(userID).Add(1)
	s.invalidateCachedDashboard(ctx, userID)
}

func (s *Service) invalidateCachedDashboard(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardKey(userID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", "user_id", userID, "error", err)
	}
}
