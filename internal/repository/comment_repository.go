package repository

import (
	"context"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// CommentRepository manages bug comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByBug(ctx context.Context, bugID int64) ([]domain.Comment, error)
}

type commentRepository struct {
	db DBTX
}

// NewCommentRepository builds repository.
func NewCommentRepository(db DBTX) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (bug_id, user_id, comment_text, created_at)
        VALUES ($1,$2,$3,NOW())
        RETURNING comment_id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.BugID,
		comment.UserID,
		comment.Text,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByBug(ctx context.Context, bugID int64) ([]domain.Comment, error) {
	const query = `
        SELECT c.comment_id, c.bug_id, c.user_id, u.name, c.comment_text, c.created_at
        FROM comments c JOIN users u ON c.user_id = u.user_id
        WHERE c.bug_id=$1 ORDER BY c.created_at ASC, c.comment_id ASC`
	rows, err := r.db.Query(ctx, query, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.BugID,
			&comment.UserID,
			&comment.UserName,
			&comment.Text,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
