package service

import (
	"context"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
)

const defaultDuplicateLimit = 5

// DuplicateDetector flags existing bugs whose text contains a proposed
// title. Matching is a case-insensitive literal substring test with no
// ranking and no minimum title length.
type DuplicateDetector struct {
	bugs  repository.BugRepository
	limit int
}

// NewDuplicateDetector builds a detector returning at most limit candidates.
func NewDuplicateDetector(bugs repository.BugRepository, limit int) *DuplicateDetector {
	if limit <= 0 {
		limit = defaultDuplicateLimit
	}
	return &DuplicateDetector{bugs: bugs, limit: limit}
}

// HasDuplicates reports whether any bug title contains title.
func (d *DuplicateDetector) HasDuplicates(ctx context.Context, title string) (bool, error) {
	return d.bugs.HasTitleMatch(ctx, title)
}

// FindDuplicates returns the first bugs, by id, whose title or description
// contains title.
func (d *DuplicateDetector) FindDuplicates(ctx context.Context, title string) ([]domain.DuplicateCandidate, error) {
	return d.bugs.FindDuplicates(ctx, title, d.limit)
}
