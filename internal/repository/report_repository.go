package repository

import (
	"context"
	"time"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// ReportRepository runs the aggregate queries behind the dashboard.
type ReportRepository interface {
	CountBugs(ctx context.Context) (int64, error)
	CountAssignedTo(ctx context.Context, userID int64) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	StatusCounts(ctx context.Context) ([]domain.StatusCount, error)
	PriorityCounts(ctx context.Context) ([]domain.PriorityCount, error)
	BugsPerDay(ctx context.Context, since time.Time) ([]domain.DailyCount, error)
	ResolutionTimes(ctx context.Context) ([]domain.ResolutionTime, error)
}

type reportRepository struct {
	db DBTX
}

// NewReportRepository builds the repository.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) CountBugs(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM bugs`)
}

func (r *reportRepository) CountAssignedTo(ctx context.Context, userID int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM bugs WHERE assignee_id=$1`, userID)
}

func (r *reportRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM bugs WHERE created_at >= $1`, since)
}

func (r *reportRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (r *reportRepository) StatusCounts(ctx context.Context) ([]domain.StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM bugs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusCount
	for rows.Next() {
		var sc domain.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (r *reportRepository) PriorityCounts(ctx context.Context) ([]domain.PriorityCount, error) {
	rows, err := r.db.Query(ctx, `SELECT priority, COUNT(*) FROM bugs GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PriorityCount
	for rows.Next() {
		var pc domain.PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, err
		}
		result = append(result, pc)
	}
	return result, rows.Err()
}

func (r *reportRepository) BugsPerDay(ctx context.Context, since time.Time) ([]domain.DailyCount, error) {
	const query = `
        SELECT TO_CHAR(DATE(created_at), 'YYYY-MM-DD'), COUNT(*)
        FROM bugs
        WHERE created_at >= $1
        GROUP BY DATE(created_at)
        ORDER BY DATE(created_at) ASC`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DailyCount
	for rows.Next() {
		var dc domain.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		result = append(result, dc)
	}
	return result, rows.Err()
}

func (r *reportRepository) ResolutionTimes(ctx context.Context) ([]domain.ResolutionTime, error) {
	const query = `
        SELECT priority,
               AVG(DATE(COALESCE(updated_at, NOW())) - DATE(created_at))::float8
        FROM bugs
        WHERE status IN ('Resolved', 'Closed')
        GROUP BY priority`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ResolutionTime
	for rows.Next() {
		var rt domain.ResolutionTime
		if err := rows.Scan(&rt.Priority, &rt.AvgDays); err != nil {
			return nil, err
		}
		result = append(result, rt)
	}
	return result, rows.Err()
}
