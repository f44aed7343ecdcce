package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/events"
	"github.com/bugsage-dev/bugsage/internal/repository"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

// Result messages for status transitions.
const (
	StatusUpdatedMessage   = "Status updated"
	StatusUnchangedMessage = "Status unchanged"
)

// BugService runs the bug lifecycle: creation behind the duplicate gate,
// audited updates, status transitions and comments.
type BugService struct {
	bugs        repository.BugRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	history     repository.BugHistoryRepository
	projects    repository.ProjectRepository
	users       repository.UserRepository
	tx          repository.Transactor
	detector    *DuplicateDetector
	dispatcher  events.Dispatcher
	validator   *inputValidator
	cfg         config.BugsConfig
	logger      *zap.Logger
}

// BugDependencies bundles collaborators for the bug service.
type BugDependencies struct {
	BugRepo        repository.BugRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.BugHistoryRepository
	ProjectRepo    repository.ProjectRepository
	UserRepo       repository.UserRepository
	Transactor     repository.Transactor
	Dispatcher     events.Dispatcher
	Config         config.BugsConfig
	Logger         *zap.Logger
}

// NewBugService constructs the service.
func NewBugService(deps BugDependencies) *BugService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BugService{
		bugs:        deps.BugRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		history:     deps.HistoryRepo,
		projects:    deps.ProjectRepo,
		users:       deps.UserRepo,
		tx:          deps.Transactor,
		detector:    NewDuplicateDetector(deps.BugRepo, deps.Config.DuplicateLimit),
		dispatcher:  deps.Dispatcher,
		validator:   newInputValidator(),
		cfg:         deps.Config,
		logger:      logger,
	}
}

// CreateBugInput describes a new bug.
type CreateBugInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,bug_priority"`
	ProjectID   *int64 `json:"project_id"`
	AssigneeID  *int64 `json:"assignee_id"`
	Force       bool   `json:"force_create"`
}

// CreateResult is either a created bug id or, when the duplicate gate
// tripped, the candidates that caused it. A warning is not an error.
type CreateResult struct {
	BugID      int64
	Duplicates []domain.DuplicateCandidate
}

// IsWarning reports whether creation stopped at the duplicate gate.
func (r CreateResult) IsWarning() bool {
	return r.BugID == 0 && len(r.Duplicates) > 0
}

// Create validates input, runs the duplicate gate unless forced, checks
// references and inserts the bug. The first failing step wins.
func (s *BugService) Create(ctx context.Context, actor domain.Identity, input CreateBugInput) (*CreateResult, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	input.Title = SanitizeText(input.Title)
	input.Description = SanitizeText(input.Description)
	input.Priority = strings.TrimSpace(input.Priority)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	priority := domain.BugPriorityMedium
	if input.Priority != "" {
		priority, _ = domain.ParseBugPriority(input.Priority)
	}

	if !input.Force {
		candidates, err := s.duplicateCandidates(ctx, input.Title)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return &CreateResult{Duplicates: candidates}, nil
		}
	}

	projectID := normalizeRef(input.ProjectID)
	assigneeID := normalizeRef(input.AssigneeID)
	if err := s.checkProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	bug := &domain.Bug{
		ProjectID:   projectID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    priority,
		Status:      domain.BugStatusNew,
		ReporterID:  actor.ID,
		AssigneeID:  assigneeID,
	}
	if err := s.bugs.Create(ctx, bug); err != nil {
		return nil, storeFailure(s.logger, "bugs.create", err)
	}

	s.publish(ctx, events.NewEvent(events.EventBugCreated, bug.ID, actor.ID, events.BugCreatedPayload{
		Title:      bug.Title,
		Priority:   bug.Priority,
		ReporterID: bug.ReporterID,
		AssigneeID: bug.AssigneeID,
	}))
	if bug.AssigneeID != nil {
		s.publish(ctx, events.NewEvent(events.EventBugAssigned, bug.ID, actor.ID, events.BugAssignedPayload{
			Title:      bug.Title,
			AssigneeID: bug.AssigneeID,
		}))
	}
	return &CreateResult{BugID: bug.ID}, nil
}

func (s *BugService) duplicateCandidates(ctx context.Context, title string) ([]domain.DuplicateCandidate, error) {
	found, err := s.detector.HasDuplicates(ctx, title)
	if err != nil {
		return nil, storeFailure(s.logger, "bugs.has_duplicates", err)
	}
	if !found {
		return nil, nil
	}
	candidates, err := s.detector.FindDuplicates(ctx, title)
	if err != nil {
		return nil, storeFailure(s.logger, "bugs.find_duplicates", err)
	}
	return candidates, nil
}

// BugPatch is a partial update. Nil fields are absent from the request;
// AssigneeSet marks an assignee key that was present, even if null.
type BugPatch struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	AssigneeSet bool
	AssigneeID  *int64
}

// IsEmpty reports whether the patch carries no recognized field.
func (p BugPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil && !p.AssigneeSet
}

// UpdateResult lists the fields whose value actually changed.
type UpdateResult struct {
	ChangedFields []string
}

type fieldChange struct {
	field    string
	oldValue *string
	newValue *string
}

// Update applies patch to a bug. Every present field is written; a history
// entry is appended for each field that differs from the locked snapshot.
// The write and its history commit together.
func (s *BugService) Update(ctx context.Context, actor domain.Identity, bugID int64, patch BugPatch) (*UpdateResult, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if err := s.BugExists(ctx, bugID); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	update, err := s.validatePatch(ctx, patch)
	if err != nil {
		return nil, err
	}

	var (
		snapshot domain.Bug
		changes  []fieldChange
	)
	err = s.tx.WithinTx(ctx, func(repos repository.TxRepositories) error {
		current, err := repos.Bugs.GetForUpdate(ctx, bugID)
		if err != nil {
			return notFoundOr(s.logger, "bugs.get_for_update", "bug", bugID, err)
		}
		snapshot = *current
		changes = diffBug(*current, update)

		if err := repos.Bugs.Update(ctx, bugID, update); err != nil {
			return storeFailure(s.logger, "bugs.update", err, zap.Int64("bug_id", bugID))
		}
		return s.appendHistory(ctx, repos.History, bugID, actor.ID, changes)
	})
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{ChangedFields: make([]string, 0, len(changes))}
	for _, change := range changes {
		result.ChangedFields = append(result.ChangedFields, change.field)
		switch change.field {
		case domain.FieldStatus:
			s.publish(ctx, events.NewEvent(events.EventBugStatusChanged, bugID, actor.ID, events.BugStatusChangedPayload{
				Title:      titleAfter(snapshot, update),
				OldStatus:  snapshot.Status,
				NewStatus:  *update.Status,
				ReporterID: snapshot.ReporterID,
				AssigneeID: assigneeAfter(snapshot, update),
			}))
		case domain.FieldAssignee:
			if update.AssigneeID != nil {
				s.publish(ctx, events.NewEvent(events.EventBugAssigned, bugID, actor.ID, events.BugAssignedPayload{
					Title:         titleAfter(snapshot, update),
					OldAssigneeID: snapshot.AssigneeID,
					AssigneeID:    update.AssigneeID,
				}))
			}
		}
	}
	return result, nil
}

func (s *BugService) validatePatch(ctx context.Context, patch BugPatch) (repository.BugUpdate, error) {
	var update repository.BugUpdate
	if patch.Title != nil {
		title := SanitizeText(*patch.Title)
		if title == "" {
			return update, apperrors.NewFieldError("title", "title is required")
		}
		update.Title = &title
	}
	if patch.Description != nil {
		description := SanitizeText(*patch.Description)
		if description == "" {
			return update, apperrors.NewFieldError("description", "description is required")
		}
		update.Description = &description
	}
	if patch.Priority != nil {
		priority, ok := domain.ParseBugPriority(strings.TrimSpace(*patch.Priority))
		if !ok {
			return update, apperrors.NewFieldError("priority", "invalid priority")
		}
		update.Priority = &priority
	}
	if patch.Status != nil {
		status, ok := domain.ParseBugStatus(strings.TrimSpace(*patch.Status))
		if !ok {
			return update, apperrors.NewFieldError("status", "invalid status")
		}
		update.Status = &status
	}
	if patch.AssigneeSet {
		assigneeID := normalizeRef(patch.AssigneeID)
		if err := s.checkAssignee(ctx, assigneeID); err != nil {
			return update, err
		}
		update.AssigneeSet = true
		update.AssigneeID = assigneeID
	}
	return update, nil
}

// diffBug compares each written field against the snapshot with typed
// equality. Output order is fixed so history rows are deterministic.
func diffBug(current domain.Bug, update repository.BugUpdate) []fieldChange {
	var changes []fieldChange
	if update.Title != nil && *update.Title != current.Title {
		changes = append(changes, textChange(domain.FieldTitle, current.Title, *update.Title))
	}
	if update.Description != nil && *update.Description != current.Description {
		changes = append(changes, textChange(domain.FieldDescription, current.Description, *update.Description))
	}
	if update.Priority != nil && *update.Priority != current.Priority {
		changes = append(changes, textChange(domain.FieldPriority, string(current.Priority), string(*update.Priority)))
	}
	if update.Status != nil && *update.Status != current.Status {
		changes = append(changes, textChange(domain.FieldStatus, string(current.Status), string(*update.Status)))
	}
	if update.AssigneeSet && !sameRef(current.AssigneeID, update.AssigneeID) {
		changes = append(changes, fieldChange{
			field:    domain.FieldAssignee,
			oldValue: refText(current.AssigneeID),
			newValue: refText(update.AssigneeID),
		})
	}
	return changes
}

func textChange(field, oldValue, newValue string) fieldChange {
	return fieldChange{field: field, oldValue: &oldValue, newValue: &newValue}
}

func (s *BugService) appendHistory(ctx context.Context, history repository.BugHistoryRepository, bugID, actorID int64, changes []fieldChange) error {
	for _, change := range changes {
		entry := &domain.BugHistoryEntry{
			BugID:     bugID,
			ChangedBy: actorID,
			Field:     change.field,
			OldValue:  change.oldValue,
			NewValue:  change.newValue,
		}
		if err := history.Create(ctx, entry); err != nil {
			return storeFailure(s.logger, "bug_history.create", err, zap.Int64("bug_id", bugID), zap.String("field", change.field))
		}
	}
	return nil
}

// TransitionResult reports whether a status transition wrote anything.
type TransitionResult struct {
	Changed bool
	Message string
}

// TransitionStatus moves a bug to status. Any status may follow any other;
// moving to the current status is a no-op that writes nothing.
func (s *BugService) TransitionStatus(ctx context.Context, actor domain.Identity, bugID int64, status string) (*TransitionResult, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	next, ok := domain.ParseBugStatus(strings.TrimSpace(status))
	if !ok {
		return nil, apperrors.NewFieldError("status", "invalid status")
	}

	var snapshot domain.Bug
	changed := false
	err := s.tx.WithinTx(ctx, func(repos repository.TxRepositories) error {
		current, err := repos.Bugs.GetForUpdate(ctx, bugID)
		if err != nil {
			return notFoundOr(s.logger, "bugs.get_for_update", "bug", bugID, err)
		}
		snapshot = *current
		if current.Status == next {
			return nil
		}

		if err := repos.Bugs.Update(ctx, bugID, repository.BugUpdate{Status: &next}); err != nil {
			return storeFailure(s.logger, "bugs.update_status", err, zap.Int64("bug_id", bugID))
		}
		changed = true
		return s.appendHistory(ctx, repos.History, bugID, actor.ID, []fieldChange{
			textChange(domain.FieldStatus, string(current.Status), string(next)),
		})
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		return &TransitionResult{Message: StatusUnchangedMessage}, nil
	}
	s.publish(ctx, events.NewEvent(events.EventBugStatusChanged, bugID, actor.ID, events.BugStatusChangedPayload{
		Title:      snapshot.Title,
		OldStatus:  snapshot.Status,
		NewStatus:  next,
		ReporterID: snapshot.ReporterID,
		AssigneeID: snapshot.AssigneeID,
	}))
	return &TransitionResult{Changed: true, Message: StatusUpdatedMessage}, nil
}

// AddComment appends a comment to an existing bug. Comments are not audited.
func (s *BugService) AddComment(ctx context.Context, actor domain.Identity, bugID int64, text string) (*domain.Comment, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	text = SanitizeText(text)
	if text == "" {
		return nil, apperrors.NewFieldError("comment", "comment is required")
	}

	bug, err := s.bugs.GetByID(ctx, bugID)
	if err != nil {
		return nil, notFoundOr(s.logger, "bugs.get", "bug", bugID, err)
	}

	comment := &domain.Comment{BugID: bugID, UserID: actor.ID, UserName: actor.Name, Text: text}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, storeFailure(s.logger, "comments.create", err, zap.Int64("bug_id", bugID))
	}

	s.publish(ctx, events.NewEvent(events.EventCommentAdded, bugID, actor.ID, events.CommentAddedPayload{
		CommentID:   comment.ID,
		Title:       bug.Title,
		ReporterID:  bug.ReporterID,
		AssigneeID:  bug.AssigneeID,
		BodyPreview: stringPreview(text, 80),
	}))
	return comment, nil
}

// BugDetails is the read model behind the bug page.
type BugDetails struct {
	Bug         domain.Bug
	Comments    []domain.Comment
	Attachments []domain.Attachment
}

// GetDetails loads a bug with its comments and attachments, oldest first.
func (s *BugService) GetDetails(ctx context.Context, actor domain.Identity, bugID int64) (*BugDetails, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	bug, err := s.bugs.GetByID(ctx, bugID)
	if err != nil {
		return nil, notFoundOr(s.logger, "bugs.get", "bug", bugID, err)
	}
	comments, err := s.comments.ListByBug(ctx, bugID)
	if err != nil {
		return nil, storeFailure(s.logger, "comments.list", err, zap.Int64("bug_id", bugID))
	}
	attachments, err := s.attachments.ListByBug(ctx, bugID)
	if err != nil {
		return nil, storeFailure(s.logger, "attachments.list", err, zap.Int64("bug_id", bugID))
	}
	return &BugDetails{Bug: *bug, Comments: comments, Attachments: attachments}, nil
}

// ListBugsInput carries list filters as received from the client. Assignee
// accepts a user id or "me".
type ListBugsInput struct {
	Status    string `json:"status" validate:"omitempty,bug_status"`
	Priority  string `json:"priority" validate:"omitempty,bug_priority"`
	ProjectID *int64 `json:"project"`
	Assignee  string `json:"assignee"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPages  int   `json:"total_pages"`
	TotalBugs   int64 `json:"total_bugs"`
}

// BugPage is one page of bugs, newest first.
type BugPage struct {
	Bugs       []domain.Bug
	Pagination Pagination
}

// List returns a filtered page of bugs.
func (s *BugService) List(ctx context.Context, actor domain.Identity, input ListBugsInput) (*BugPage, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	input.Status = strings.TrimSpace(input.Status)
	input.Priority = strings.TrimSpace(input.Priority)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	filter := repository.BugFilter{ProjectID: input.ProjectID}
	if input.Status != "" {
		status, _ := domain.ParseBugStatus(input.Status)
		filter.Status = &status
	}
	if input.Priority != "" {
		priority, _ := domain.ParseBugPriority(input.Priority)
		filter.Priority = &priority
	}
	switch assignee := strings.TrimSpace(input.Assignee); assignee {
	case "":
	case "me":
		filter.AssigneeID = &actor.ID
	default:
		id, err := strconv.ParseInt(assignee, 10, 64)
		if err != nil {
			return nil, apperrors.NewFieldError("assignee", "invalid assignee")
		}
		filter.AssigneeID = &id
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	perPage := input.PerPage
	if perPage <= 0 {
		perPage = s.cfg.PerPage
	}
	if perPage <= 0 {
		perPage = 20
	}
	if s.cfg.MaxPerPage > 0 && perPage > s.cfg.MaxPerPage {
		perPage = s.cfg.MaxPerPage
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	total, err := s.bugs.Count(ctx, filter)
	if err != nil {
		return nil, storeFailure(s.logger, "bugs.count", err)
	}
	bugs, err := s.bugs.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(s.logger, "bugs.list", err)
	}
	return &BugPage{
		Bugs: bugs,
		Pagination: Pagination{
			CurrentPage: page,
			PerPage:     perPage,
			TotalPages:  int(math.Ceil(float64(total) / float64(perPage))),
			TotalBugs:   total,
		},
	}, nil
}

// Search matches query against titles and descriptions, newest first.
func (s *BugService) Search(ctx context.Context, actor domain.Identity, query string) ([]domain.Bug, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewFieldError("q", "search query is required")
	}
	bugs, err := s.bugs.Search(ctx, query, s.cfg.SearchLimit)
	if err != nil {
		return nil, storeFailure(s.logger, "bugs.search", err)
	}
	return bugs, nil
}

// History returns the audit trail of a bug in the order it was written.
func (s *BugService) History(ctx context.Context, actor domain.Identity, bugID int64) ([]domain.BugHistoryEntry, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if _, err := s.bugs.GetByID(ctx, bugID); err != nil {
		return nil, notFoundOr(s.logger, "bugs.get", "bug", bugID, err)
	}
	entries, err := s.history.ListByBug(ctx, bugID)
	if err != nil {
		return nil, storeFailure(s.logger, "bug_history.list", err, zap.Int64("bug_id", bugID))
	}
	return entries, nil
}

// BugExists reports whether bugID resolves, mapping other failures.
func (s *BugService) BugExists(ctx context.Context, bugID int64) error {
	if _, err := s.bugs.GetByID(ctx, bugID); err != nil {
		return notFoundOr(s.logger, "bugs.get", "bug", bugID, err)
	}
	return nil
}

func (s *BugService) checkProject(ctx context.Context, projectID *int64) error {
	if projectID == nil {
		return nil
	}
	if _, err := s.projects.GetByID(ctx, *projectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewFieldError("project", "Invalid project")
		}
		return storeFailure(s.logger, "projects.get", err, zap.Int64("project_id", *projectID))
	}
	return nil
}

func (s *BugService) checkAssignee(ctx context.Context, assigneeID *int64) error {
	if assigneeID == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, *assigneeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewFieldError("assignee", "Invalid assignee")
		}
		return storeFailure(s.logger, "users.get", err, zap.Int64("user_id", *assigneeID))
	}
	return nil
}

func (s *BugService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("bug_id", event.BugID),
			zap.Error(err))
	}
}

// normalizeRef treats a zero or negative id as "no reference", matching
// empty select boxes posted by forms.
func normalizeRef(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	v := *id
	return &v
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func refText(id *int64) *string {
	if id == nil {
		return nil
	}
	text := strconv.FormatInt(*id, 10)
	return &text
}

func titleAfter(snapshot domain.Bug, update repository.BugUpdate) string {
	if update.Title != nil {
		return *update.Title
	}
	return snapshot.Title
}

func assigneeAfter(snapshot domain.Bug, update repository.BugUpdate) *int64 {
	if update.AssigneeSet {
		return update.AssigneeID
	}
	return snapshot.AssigneeID
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
