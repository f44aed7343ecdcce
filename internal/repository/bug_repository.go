package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// BugFilter captures list parameters.
type BugFilter struct {
	Status     *domain.BugStatus
	Priority   *domain.BugPriority
	ProjectID  *int64
	AssigneeID *int64
	Limit      int
	Offset     int
}

// BugUpdate lists the columns to write. Nil pointers are left untouched;
// AssigneeSet distinguishes "clear the assignee" from "leave it alone".
type BugUpdate struct {
	Title       *string
	Description *string
	Priority    *domain.BugPriority
	Status      *domain.BugStatus
	AssigneeSet bool
	AssigneeID  *int64
}

// IsEmpty reports whether the update writes nothing.
func (u BugUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil && u.Status == nil && !u.AssigneeSet
}

// BugRepository encapsulates bug persistence.
type BugRepository interface {
	Create(ctx context.Context, bug *domain.Bug) error
	Update(ctx context.Context, id int64, update BugUpdate) error
	GetByID(ctx context.Context, id int64) (*domain.Bug, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Bug, error)
	List(ctx context.Context, filter BugFilter) ([]domain.Bug, error)
	Count(ctx context.Context, filter BugFilter) (int64, error)
	Search(ctx context.Context, term string, limit int) ([]domain.Bug, error)
	HasTitleMatch(ctx context.Context, title string) (bool, error)
	FindDuplicates(ctx context.Context, title string, limit int) ([]domain.DuplicateCandidate, error)
}

type bugRepository struct {
	db DBTX
}

// NewBugRepository instantiates repository.
func NewBugRepository(db DBTX) BugRepository {
	return &bugRepository{db: db}
}

const bugSelect = `
        SELECT b.bug_id, b.project_id, b.title, b.description, b.priority, b.status,
               b.reporter_id, b.assignee_id, b.created_at, b.updated_at,
               p.name, COALESCE(reporter.name, ''), assignee.name
        FROM bugs b
        LEFT JOIN projects p ON b.project_id = p.project_id
        LEFT JOIN users reporter ON b.reporter_id = reporter.user_id
        LEFT JOIN users assignee ON b.assignee_id = assignee.user_id`

func (r *bugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	const query = `
        INSERT INTO bugs (project_id, title, description, priority, status, reporter_id, assignee_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
        RETURNING bug_id, created_at`
	return r.db.QueryRow(ctx, query,
		bug.ProjectID,
		bug.Title,
		bug.Description,
		bug.Priority,
		bug.Status,
		bug.ReporterID,
		bug.AssigneeID,
	).Scan(&bug.ID, &bug.CreatedAt)
}

func (r *bugRepository) Update(ctx context.Context, id int64, update BugUpdate) error {
	sets := []string{}
	args := []any{}

	if update.Title != nil {
		args = append(args, *update.Title)
		sets = append(sets, fmt.Sprintf("title=$%d", len(args)))
	}
	if update.Description != nil {
		args = append(args, *update.Description)
		sets = append(sets, fmt.Sprintf("description=$%d", len(args)))
	}
	if update.Priority != nil {
		args = append(args, *update.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if update.AssigneeSet {
		args = append(args, update.AssigneeID)
		sets = append(sets, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(sets) == 0 {
		return fmt.Errorf("bug update has no fields")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE bugs SET %s, updated_at=NOW() WHERE bug_id=$%d`, strings.Join(sets, ", "), len(args))
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *bugRepository) GetByID(ctx context.Context, id int64) (*domain.Bug, error) {
	rows, err := r.db.Query(ctx, bugSelect+` WHERE b.bug_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bugs, err := scanBugs(rows)
	if err != nil {
		return nil, err
	}
	if len(bugs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &bugs[0], nil
}

// GetForUpdate loads the bare row and locks it until the surrounding
// transaction ends.
func (r *bugRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Bug, error) {
	const query = `
        SELECT bug_id, project_id, title, description, priority, status,
               reporter_id, assignee_id, created_at, updated_at
        FROM bugs WHERE bug_id=$1 FOR UPDATE`
	var bug domain.Bug
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&bug.ID,
		&bug.ProjectID,
		&bug.Title,
		&bug.Description,
		&bug.Priority,
		&bug.Status,
		&bug.ReporterID,
		&bug.AssigneeID,
		&bug.CreatedAt,
		&bug.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &bug, nil
}

func (r *bugRepository) List(ctx context.Context, filter BugFilter) ([]domain.Bug, error) {
	where, args := bugWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s %s ORDER BY b.created_at DESC, b.bug_id DESC LIMIT %d OFFSET %d`, bugSelect, where, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBugs(rows)
}

func (r *bugRepository) Count(ctx context.Context, filter BugFilter) (int64, error) {
	where, args := bugWhere(filter)
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bugs b `+where, args...).Scan(&total)
	return total, err
}

func (r *bugRepository) Search(ctx context.Context, term string, limit int) ([]domain.Bug, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`%s WHERE b.title ILIKE $1 OR b.description ILIKE $1 ORDER BY b.created_at DESC, b.bug_id DESC LIMIT %d`, bugSelect, limit)
	rows, err := r.db.Query(ctx, query, ContainsPattern(term))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBugs(rows)
}

func (r *bugRepository) HasTitleMatch(ctx context.Context, title string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM bugs WHERE title ILIKE $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, ContainsPattern(title)).Scan(&exists)
	return exists, err
}

func (r *bugRepository) FindDuplicates(ctx context.Context, title string, limit int) ([]domain.DuplicateCandidate, error) {
	const query = `
        SELECT bug_id, title FROM bugs
        WHERE title ILIKE $1 OR description ILIKE $1
        ORDER BY bug_id ASC LIMIT $2`
	rows, err := r.db.Query(ctx, query, ContainsPattern(title), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DuplicateCandidate
	for rows.Next() {
		var candidate domain.DuplicateCandidate
		if err := rows.Scan(&candidate.ID, &candidate.Title); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}

// ContainsPattern builds a LIKE pattern matching s literally anywhere in a value.
func ContainsPattern(s string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(s) + "%"
}

func bugWhere(filter BugFilter) (string, []any) {
	clauses := []string{}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("b.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("b.priority=$%d", len(args)))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		clauses = append(clauses, fmt.Sprintf("b.project_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("b.assignee_id=$%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanBugs(rows pgx.Rows) ([]domain.Bug, error) {
	var result []domain.Bug
	for rows.Next() {
		var bug domain.Bug
		if err := rows.Scan(
			&bug.ID,
			&bug.ProjectID,
			&bug.Title,
			&bug.Description,
			&bug.Priority,
			&bug.Status,
			&bug.ReporterID,
			&bug.AssigneeID,
			&bug.CreatedAt,
			&bug.UpdatedAt,
			&bug.ProjectName,
			&bug.ReporterName,
			&bug.AssigneeName,
		); err != nil {
			return nil, err
		}
		result = append(result, bug)
	}
	return result, rows.Err()
}
