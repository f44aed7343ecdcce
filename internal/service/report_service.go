package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
)

const (
	recentBugsLimit  = 10
	recentWindowDays = 7
	chartWindowDays  = 30
	emptyChartDays   = 7
)

// ReportCache is a best-effort cache for dashboard payloads.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ReportService computes dashboard aggregates.
type ReportService struct {
	reports repository.ReportRepository
	bugs    repository.BugRepository
	cache   ReportCache
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// ReportDependencies bundles collaborators. Cache may be nil.
type ReportDependencies struct {
	ReportRepo repository.ReportRepository
	BugRepo    repository.BugRepository
	Cache      ReportCache
	CacheTTL   time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{
		reports: deps.ReportRepo,
		bugs:    deps.BugRepo,
		cache:   deps.Cache,
		ttl:     deps.CacheTTL,
		now:     clock,
		logger:  logger,
	}
}

// DashboardStats are the headline numbers. Count maps always hold every
// value of their vocabulary.
type DashboardStats struct {
	TotalBugs      int64                        `json:"total_bugs"`
	MyBugs         int64                        `json:"my_bugs"`
	RecentBugs     int64                        `json:"recent_bugs"`
	StatusCounts   map[domain.BugStatus]int64   `json:"status_counts"`
	PriorityCounts map[domain.BugPriority]int64 `json:"priority_counts"`
}

// DayCount is one point of the bugs-over-time series.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// PriorityResolution is the mean resolution time for one priority.
type PriorityResolution struct {
	Priority domain.BugPriority `json:"priority"`
	AvgDays  float64            `json:"avg_days"`
}

// DashboardCharts are the chart series.
type DashboardCharts struct {
	BugsOverTime    []DayCount           `json:"bugs_over_time"`
	ResolutionTimes []PriorityResolution `json:"resolution_times"`
}

// Stats returns the dashboard numbers for actor. The aggregates are
// independent queries and run concurrently.
func (s *ReportService) Stats(ctx context.Context, actor domain.Identity) (*DashboardStats, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("stats:%d", actor.ID)
	var cached DashboardStats
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	stats := &DashboardStats{}
	var (
		statusCounts   []domain.StatusCount
		priorityCounts []domain.PriorityCount
	)
	since := s.now().AddDate(0, 0, -recentWindowDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalBugs, err = s.reports.CountBugs(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.MyBugs, err = s.reports.CountAssignedTo(gctx, actor.ID)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentBugs, err = s.reports.CountCreatedSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		statusCounts, err = s.reports.StatusCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		priorityCounts, err = s.reports.PriorityCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeFailure(s.logger, "reports.stats", err)
	}

	stats.StatusCounts = make(map[domain.BugStatus]int64, len(domain.BugStatuses))
	for _, status := range domain.BugStatuses {
		stats.StatusCounts[status] = 0
	}
	for _, sc := range statusCounts {
		stats.StatusCounts[sc.Status] = sc.Count
	}
	stats.PriorityCounts = make(map[domain.BugPriority]int64, len(domain.BugPriorities))
	for _, priority := range domain.BugPriorities {
		stats.PriorityCounts[priority] = 0
	}
	for _, pc := range priorityCounts {
		stats.PriorityCounts[pc.Priority] = pc.Count
	}

	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

// Recent returns the newest bugs with their joined names.
func (s *ReportService) Recent(ctx context.Context, actor domain.Identity) ([]domain.Bug, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	bugs, err := s.bugs.List(ctx, repository.BugFilter{Limit: recentBugsLimit})
	if err != nil {
		return nil, storeFailure(s.logger, "reports.recent", err)
	}
	return bugs, nil
}

// Charts returns the bugs-over-time and resolution-time series. An empty
// window yields the last week at zero; every priority has a resolution
// entry.
func (s *ReportService) Charts(ctx context.Context, actor domain.Identity) (*DashboardCharts, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	const cacheKey = "charts"
	var cached DashboardCharts
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	now := s.now()
	var (
		perDay      []domain.DailyCount
		resolutions []domain.ResolutionTime
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		perDay, err = s.reports.BugsPerDay(gctx, now.AddDate(0, 0, -chartWindowDays))
		return err
	})
	g.Go(func() (err error) {
		resolutions, err = s.reports.ResolutionTimes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeFailure(s.logger, "reports.charts", err)
	}

	charts := &DashboardCharts{}
	if len(perDay) == 0 {
		for i := emptyChartDays - 1; i >= 0; i-- {
			charts.BugsOverTime = append(charts.BugsOverTime, DayCount{Date: now.AddDate(0, 0, -i).Format(time.DateOnly)})
		}
	} else {
		for _, dc := range perDay {
			charts.BugsOverTime = append(charts.BugsOverTime, DayCount{Date: dc.Date, Count: dc.Count})
		}
	}

	byPriority := make(map[domain.BugPriority]float64, len(resolutions))
	for _, rt := range resolutions {
		byPriority[rt.Priority] = rt.AvgDays
	}
	for _, priority := range domain.BugPriorities {
		charts.ResolutionTimes = append(charts.ResolutionTimes, PriorityResolution{
			Priority: priority,
			AvgDays:  math.Round(byPriority[priority]*10) / 10,
		})
	}

	s.cacheSet(ctx, cacheKey, charts)
	return charts, nil
}

func (s *ReportService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil || s.ttl <= 0 {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
