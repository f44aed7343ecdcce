package repository

import (
	"context"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// ProjectRepository handles project persistence.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	ListWithBugCounts(ctx context.Context) ([]domain.Project, error)
}

type projectRepository struct {
	db DBTX
}

// NewProjectRepository builds the repository.
func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	const query = `
        INSERT INTO projects (name, description, created_at)
        VALUES ($1,$2,NOW())
        RETURNING project_id, created_at`
	return r.db.QueryRow(ctx, query,
		project.Name,
		project.Description,
	).Scan(&project.ID, &project.CreatedAt)
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	const query = `
        SELECT project_id, name, description, created_at
        FROM projects WHERE project_id=$1`
	var project domain.Project
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListWithBugCounts(ctx context.Context) ([]domain.Project, error) {
	const query = `
        SELECT p.project_id, p.name, p.description, p.created_at, COUNT(b.bug_id)
        FROM projects p
        LEFT JOIN bugs b ON p.project_id = b.project_id
        GROUP BY p.project_id
        ORDER BY p.name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		var project domain.Project
		if err := rows.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.BugCount); err != nil {
			return nil, err
		}
		result = append(result, project)
	}
	return result, rows.Err()
}
