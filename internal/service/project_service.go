package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

// ProjectService manages projects.
type ProjectService struct {
	projects  repository.ProjectRepository
	validator *inputValidator
	logger    *zap.Logger
}

// NewProjectService constructs the service.
func NewProjectService(projects repository.ProjectRepository, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{projects: projects, validator: newInputValidator(), logger: logger}
}

// CreateProjectInput describes a new project.
type CreateProjectInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
}

// List returns all projects with their bug counts, ordered by name.
func (s *ProjectService) List(ctx context.Context, actor domain.Identity) ([]domain.Project, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	projects, err := s.projects.ListWithBugCounts(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "projects.list", err)
	}
	return projects, nil
}

// Create adds a project. Admins only.
func (s *ProjectService) Create(ctx context.Context, actor domain.Identity, input CreateProjectInput) (*domain.Project, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	input.Name = SanitizeText(input.Name)
	input.Description = SanitizeText(input.Description)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	project := &domain.Project{Name: input.Name, Description: input.Description}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, storeFailure(s.logger, "projects.create", err)
	}
	return project, nil
}
