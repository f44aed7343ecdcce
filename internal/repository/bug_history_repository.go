package repository

import (
	"context"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// BugHistoryRepository stores audit entries.
type BugHistoryRepository interface {
	Create(ctx context.Context, entry *domain.BugHistoryEntry) error
	ListByBug(ctx context.Context, bugID int64) ([]domain.BugHistoryEntry, error)
}

type bugHistoryRepository struct {
	db DBTX
}

// NewBugHistoryRepository builds repository.
func NewBugHistoryRepository(db DBTX) BugHistoryRepository {
	return &bugHistoryRepository{db: db}
}

func (r *bugHistoryRepository) Create(ctx context.Context, entry *domain.BugHistoryEntry) error {
	const query = `
        INSERT INTO bug_history (bug_id, changed_by, field_changed, old_value, new_value, changed_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        RETURNING history_id, changed_at`
	return r.db.QueryRow(ctx, query,
		entry.BugID,
		entry.ChangedBy,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *bugHistoryRepository) ListByBug(ctx context.Context, bugID int64) ([]domain.BugHistoryEntry, error) {
	const query = `
        SELECT h.history_id, h.bug_id, h.changed_by, COALESCE(u.name, ''), h.field_changed,
               h.old_value, h.new_value, h.changed_at
        FROM bug_history h
        LEFT JOIN users u ON h.changed_by = u.user_id
        WHERE h.bug_id=$1 ORDER BY h.changed_at ASC, h.history_id ASC`
	rows, err := r.db.Query(ctx, query, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BugHistoryEntry
	for rows.Next() {
		var entry domain.BugHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.BugID,
			&entry.ChangedBy,
			&entry.ChangedByName,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
