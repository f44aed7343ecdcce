// Package repotest provides an in-memory implementation of every repository
// and of the transactor. Transactions work on a copy of the data that replaces
// the live state only when the callback succeeds.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
)

// Operation names accepted by FailOn.
const (
	OpBugCreate          = "bugs.create"
	OpBugUpdate          = "bugs.update"
	OpBugGet             = "bugs.get"
	OpBugList            = "bugs.list"
	OpBugDuplicates      = "bugs.duplicates"
	OpHistoryCreate      = "history.create"
	OpCommentCreate      = "comments.create"
	OpAttachmentCreate   = "attachments.create"
	OpUserCreate         = "users.create"
	OpProjectCreate      = "projects.create"
	OpNotificationCreate = "notifications.create"
	OpReport             = "reports"
)

type state struct {
	nextID        int64
	users         map[int64]domain.User
	projects      map[int64]domain.Project
	bugs          map[int64]domain.Bug
	history       []domain.BugHistoryEntry
	comments      []domain.Comment
	attachments   []domain.Attachment
	notifications []domain.Notification
}

func newState() *state {
	return &state{
		users:    map[int64]domain.User{},
		projects: map[int64]domain.Project{},
		bugs:     map[int64]domain.Bug{},
	}
}

func (st *state) clone() *state {
	c := &state{
		nextID:        st.nextID,
		users:         make(map[int64]domain.User, len(st.users)),
		projects:      make(map[int64]domain.Project, len(st.projects)),
		bugs:          make(map[int64]domain.Bug, len(st.bugs)),
		history:       append([]domain.BugHistoryEntry(nil), st.history...),
		comments:      append([]domain.Comment(nil), st.comments...),
		attachments:   append([]domain.Attachment(nil), st.attachments...),
		notifications: append([]domain.Notification(nil), st.notifications...),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.projects {
		c.projects[k] = v
	}
	for k, v := range st.bugs {
		c.bugs[k] = v
	}
	return c
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Store is a goroutine-safe in-memory database.
type Store struct {
	mu       sync.Mutex
	data     *state
	failures map[string]error
	clock    func() time.Time
}

// NewStore returns an empty store using the wall clock.
func NewStore() *Store {
	return &Store{data: newState(), failures: map[string]error{}, clock: time.Now}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// scope is a view over either the live state or a transaction copy.
type scope struct {
	store *Store
	tx    *state
}

func (sc scope) do(op string, fn func(st *state, now time.Time) error) error {
	if sc.tx != nil {
		if err := sc.store.failures[op]; err != nil {
			return err
		}
		return fn(sc.tx, sc.store.clock())
	}
	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	if err := sc.store.failures[op]; err != nil {
		return err
	}
	return fn(sc.store.data, sc.store.clock())
}

func (s *Store) live() scope { return scope{store: s} }

// WithinTx implements repository.Transactor. The store lock is held for the
// whole callback, so transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	sc := scope{store: s, tx: work}
	if err := fn(repository.TxRepositories{
		Bugs:    &bugRepo{sc},
		History: &historyRepo{sc},
	}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Repository accessors over the live state.

func (s *Store) Bugs() repository.BugRepository                   { return &bugRepo{s.live()} }
func (s *Store) History() repository.BugHistoryRepository         { return &historyRepo{s.live()} }
func (s *Store) Comments() repository.CommentRepository           { return &commentRepo{s.live()} }
func (s *Store) Attachments() repository.AttachmentRepository     { return &attachmentRepo{s.live()} }
func (s *Store) Users() repository.UserRepository                 { return &userRepo{s.live()} }
func (s *Store) Projects() repository.ProjectRepository           { return &projectRepo{s.live()} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s.live()} }
func (s *Store) Reports() repository.ReportRepository             { return &reportRepo{s.live()} }

// Seeding helpers for tests.

// AddUser inserts a user and returns it with its id set.
func (s *Store) AddUser(name, email string, role domain.UserRole) domain.User {
	user := domain.User{Name: name, Email: email, Role: role, PasswordHash: "x"}
	_ = s.Users().Create(context.Background(), &user)
	return user
}

// AddProject inserts a project and returns it with its id set.
func (s *Store) AddProject(name string) domain.Project {
	project := domain.Project{Name: name}
	_ = s.Projects().Create(context.Background(), &project)
	return project
}

// PutBug stores bug as-is, assigning an id when it has none. Timestamps are
// kept so report tests can place bugs in the past.
func (s *Store) PutBug(bug domain.Bug) domain.Bug {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bug.ID == 0 {
		bug.ID = s.data.id()
	} else if bug.ID > s.data.nextID {
		s.data.nextID = bug.ID
	}
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = s.clock()
	}
	s.data.bugs[bug.ID] = bug
	return bug
}

// Bug returns the stored row for id.
func (s *Store) Bug(id int64) (domain.Bug, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bug, ok := s.data.bugs[id]
	return bug, ok
}

// BugCount returns the number of stored bugs.
func (s *Store) BugCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.bugs)
}

// HistoryFor returns the audit entries of one bug in insertion order.
func (s *Store) HistoryFor(bugID int64) []domain.BugHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BugHistoryEntry
	for _, entry := range s.data.history {
		if entry.BugID == bugID {
			out = append(out, entry)
		}
	}
	return out
}

// NotificationsFor returns the notifications of one user in insertion order.
func (s *Store) NotificationsFor(userID int64) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.data.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type bugRepo struct{ sc scope }

func (r *bugRepo) Create(_ context.Context, bug *domain.Bug) error {
	return r.sc.do(OpBugCreate, func(st *state, now time.Time) error {
		bug.ID = st.id()
		bug.CreatedAt = now
		stored := *bug
		stored.ProjectName, stored.ReporterName, stored.AssigneeName = nil, "", nil
		st.bugs[bug.ID] = stored
		return nil
	})
}

func (r *bugRepo) Update(_ context.Context, id int64, update repository.BugUpdate) error {
	return r.sc.do(OpBugUpdate, func(st *state, now time.Time) error {
		bug, ok := st.bugs[id]
		if !ok {
			return pgx.ErrNoRows
		}
		if update.Title != nil {
			bug.Title = *update.Title
		}
		if update.Description != nil {
			bug.Description = *update.Description
		}
		if update.Priority != nil {
			bug.Priority = *update.Priority
		}
		if update.Status != nil {
			bug.Status = *update.Status
		}
		if update.AssigneeSet {
			bug.AssigneeID = update.AssigneeID
		}
		updated := now
		bug.UpdatedAt = &updated
		st.bugs[id] = bug
		return nil
	})
}

func (r *bugRepo) GetByID(_ context.Context, id int64) (*domain.Bug, error) {
	var out *domain.Bug
	err := r.sc.do(OpBugGet, func(st *state, _ time.Time) error {
		bug, ok := st.bugs[id]
		if !ok {
			return pgx.ErrNoRows
		}
		bug = st.joined(bug)
		out = &bug
		return nil
	})
	return out, err
}

func (r *bugRepo) GetForUpdate(_ context.Context, id int64) (*domain.Bug, error) {
	var out *domain.Bug
	err := r.sc.do(OpBugGet, func(st *state, _ time.Time) error {
		bug, ok := st.bugs[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &bug
		return nil
	})
	return out, err
}

func (r *bugRepo) List(_ context.Context, filter repository.BugFilter) ([]domain.Bug, error) {
	var out []domain.Bug
	err := r.sc.do(OpBugList, func(st *state, _ time.Time) error {
		matched := st.filtered(filter)
		limit := filter.Limit
		if limit <= 0 {
			limit = 20
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		for i := offset; i < len(matched) && i < offset+limit; i++ {
			out = append(out, st.joined(matched[i]))
		}
		return nil
	})
	return out, err
}

func (r *bugRepo) Count(_ context.Context, filter repository.BugFilter) (int64, error) {
	var total int64
	err := r.sc.do(OpBugList, func(st *state, _ time.Time) error {
		total = int64(len(st.filtered(filter)))
		return nil
	})
	return total, err
}

func (r *bugRepo) Search(_ context.Context, term string, limit int) ([]domain.Bug, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Bug
	err := r.sc.do(OpBugList, func(st *state, _ time.Time) error {
		for _, bug := range st.newestFirst() {
			if len(out) == limit {
				break
			}
			if containsFold(bug.Title, term) || containsFold(bug.Description, term) {
				out = append(out, st.joined(bug))
			}
		}
		return nil
	})
	return out, err
}

func (r *bugRepo) HasTitleMatch(_ context.Context, title string) (bool, error) {
	var found bool
	err := r.sc.do(OpBugDuplicates, func(st *state, _ time.Time) error {
		for _, bug := range st.bugs {
			if containsFold(bug.Title, title) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *bugRepo) FindDuplicates(_ context.Context, title string, limit int) ([]domain.DuplicateCandidate, error) {
	var out []domain.DuplicateCandidate
	err := r.sc.do(OpBugDuplicates, func(st *state, _ time.Time) error {
		ids := make([]int64, 0, len(st.bugs))
		for id := range st.bugs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if len(out) == limit {
				break
			}
			bug := st.bugs[id]
			if containsFold(bug.Title, title) || containsFold(bug.Description, title) {
				out = append(out, domain.DuplicateCandidate{ID: bug.ID, Title: bug.Title})
			}
		}
		return nil
	})
	return out, err
}

func (st *state) joined(bug domain.Bug) domain.Bug {
	if bug.ProjectID != nil {
		if project, ok := st.projects[*bug.ProjectID]; ok {
			name := project.Name
			bug.ProjectName = &name
		}
	}
	if reporter, ok := st.users[bug.ReporterID]; ok {
		bug.ReporterName = reporter.Name
	}
	if bug.AssigneeID != nil {
		if assignee, ok := st.users[*bug.AssigneeID]; ok {
			name := assignee.Name
			bug.AssigneeName = &name
		}
	}
	return bug
}

func (st *state) newestFirst() []domain.Bug {
	out := make([]domain.Bug, 0, len(st.bugs))
	for _, bug := range st.bugs {
		out = append(out, bug)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (st *state) filtered(filter repository.BugFilter) []domain.Bug {
	var out []domain.Bug
	for _, bug := range st.newestFirst() {
		if filter.Status != nil && bug.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && bug.Priority != *filter.Priority {
			continue
		}
		if filter.ProjectID != nil && (bug.ProjectID == nil || *bug.ProjectID != *filter.ProjectID) {
			continue
		}
		if filter.AssigneeID != nil && (bug.AssigneeID == nil || *bug.AssigneeID != *filter.AssigneeID) {
			continue
		}
		out = append(out, bug)
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type historyRepo struct{ sc scope }

func (r *historyRepo) Create(_ context.Context, entry *domain.BugHistoryEntry) error {
	return r.sc.do(OpHistoryCreate, func(st *state, now time.Time) error {
		entry.ID = st.id()
		entry.ChangedAt = now
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r *historyRepo) ListByBug(_ context.Context, bugID int64) ([]domain.BugHistoryEntry, error) {
	var out []domain.BugHistoryEntry
	err := r.sc.do("history.list", func(st *state, _ time.Time) error {
		for _, entry := range st.history {
			if entry.BugID == bugID {
				entry.ChangedByName = st.users[entry.ChangedBy].Name
				out = append(out, entry)
			}
		}
		return nil
	})
	return out, err
}

type commentRepo struct{ sc scope }

func (r *commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	return r.sc.do(OpCommentCreate, func(st *state, now time.Time) error {
		comment.ID = st.id()
		comment.CreatedAt = now
		st.comments = append(st.comments, *comment)
		return nil
	})
}

func (r *commentRepo) ListByBug(_ context.Context, bugID int64) ([]domain.Comment, error) {
	var out []domain.Comment
	err := r.sc.do("comments.list", func(st *state, _ time.Time) error {
		for _, comment := range st.comments {
			if comment.BugID == bugID {
				comment.UserName = st.users[comment.UserID].Name
				out = append(out, comment)
			}
		}
		return nil
	})
	return out, err
}

type attachmentRepo struct{ sc scope }

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	return r.sc.do(OpAttachmentCreate, func(st *state, now time.Time) error {
		attachment.ID = st.id()
		attachment.UploadedAt = now
		st.attachments = append(st.attachments, *attachment)
		return nil
	})
}

func (r *attachmentRepo) GetByID(_ context.Context, id int64) (*domain.Attachment, error) {
	var out *domain.Attachment
	err := r.sc.do("attachments.get", func(st *state, _ time.Time) error {
		for _, attachment := range st.attachments {
			if attachment.ID == id {
				a := attachment
				out = &a
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (r *attachmentRepo) ListByBug(_ context.Context, bugID int64) ([]domain.Attachment, error) {
	var out []domain.Attachment
	err := r.sc.do("attachments.list", func(st *state, _ time.Time) error {
		for _, attachment := range st.attachments {
			if attachment.BugID == bugID {
				out = append(out, attachment)
			}
		}
		return nil
	})
	return out, err
}

type userRepo struct{ sc scope }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	return r.sc.do(OpUserCreate, func(st *state, now time.Time) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
			}
		}
		user.ID = st.id()
		user.CreatedAt = now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) UpdateRole(_ context.Context, id int64, role domain.UserRole) error {
	return r.sc.do("users.update", func(st *state, _ time.Time) error {
		user, ok := st.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		user.Role = role
		st.users[id] = user
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.sc.do("users.get", func(st *state, _ time.Time) error {
		user, ok := st.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &user
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.sc.do("users.get", func(st *state, _ time.Time) error {
		for _, user := range st.users {
			if user.Email == email {
				u := user
				out = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (r *userRepo) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	err := r.sc.do("users.list", func(st *state, _ time.Time) error {
		for _, user := range st.users {
			user.PasswordHash = ""
			out = append(out, user)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

type projectRepo struct{ sc scope }

func (r *projectRepo) Create(_ context.Context, project *domain.Project) error {
	return r.sc.do(OpProjectCreate, func(st *state, now time.Time) error {
		project.ID = st.id()
		project.CreatedAt = now
		st.projects[project.ID] = *project
		return nil
	})
}

func (r *projectRepo) GetByID(_ context.Context, id int64) (*domain.Project, error) {
	var out *domain.Project
	err := r.sc.do("projects.get", func(st *state, _ time.Time) error {
		project, ok := st.projects[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &project
		return nil
	})
	return out, err
}

func (r *projectRepo) ListWithBugCounts(_ context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := r.sc.do("projects.list", func(st *state, _ time.Time) error {
		counts := map[int64]int64{}
		for _, bug := range st.bugs {
			if bug.ProjectID != nil {
				counts[*bug.ProjectID]++
			}
		}
		for _, project := range st.projects {
			project.BugCount = counts[project.ID]
			out = append(out, project)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

type notificationRepo struct{ sc scope }

func (r *notificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	return r.sc.do(OpNotificationCreate, func(st *state, now time.Time) error {
		notification.ID = st.id()
		notification.CreatedAt = now
		st.notifications = append(st.notifications, *notification)
		return nil
	})
}

func (r *notificationRepo) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Notification
	err := r.sc.do("notifications.list", func(st *state, _ time.Time) error {
		for i := len(st.notifications) - 1; i >= 0 && len(out) < limit; i-- {
			if st.notifications[i].UserID == userID {
				out = append(out, st.notifications[i])
			}
		}
		return nil
	})
	return out, err
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID int64) error {
	return r.sc.do("notifications.update", func(st *state, _ time.Time) error {
		for i := range st.notifications {
			if st.notifications[i].ID == id && st.notifications[i].UserID == userID {
				st.notifications[i].IsRead = true
				return nil
			}
		}
		return pgx.ErrNoRows
	})
}

type reportRepo struct{ sc scope }

func (r *reportRepo) CountBugs(_ context.Context) (int64, error) {
	var total int64
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		total = int64(len(st.bugs))
		return nil
	})
	return total, err
}

func (r *reportRepo) CountAssignedTo(_ context.Context, userID int64) (int64, error) {
	var total int64
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		for _, bug := range st.bugs {
			if bug.AssigneeID != nil && *bug.AssigneeID == userID {
				total++
			}
		}
		return nil
	})
	return total, err
}

func (r *reportRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		for _, bug := range st.bugs {
			if !bug.CreatedAt.Before(since) {
				total++
			}
		}
		return nil
	})
	return total, err
}

func (r *reportRepo) StatusCounts(_ context.Context) ([]domain.StatusCount, error) {
	var out []domain.StatusCount
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		counts := map[domain.BugStatus]int64{}
		for _, bug := range st.bugs {
			counts[bug.Status]++
		}
		for status, n := range counts {
			out = append(out, domain.StatusCount{Status: status, Count: n})
		}
		return nil
	})
	return out, err
}

func (r *reportRepo) PriorityCounts(_ context.Context) ([]domain.PriorityCount, error) {
	var out []domain.PriorityCount
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		counts := map[domain.BugPriority]int64{}
		for _, bug := range st.bugs {
			counts[bug.Priority]++
		}
		for priority, n := range counts {
			out = append(out, domain.PriorityCount{Priority: priority, Count: n})
		}
		return nil
	})
	return out, err
}

func (r *reportRepo) BugsPerDay(_ context.Context, since time.Time) ([]domain.DailyCount, error) {
	var out []domain.DailyCount
	err := r.sc.do(OpReport, func(st *state, _ time.Time) error {
		counts := map[string]int64{}
		for _, bug := range st.bugs {
			if !bug.CreatedAt.Before(since) {
				counts[bug.CreatedAt.Format(time.DateOnly)]++
			}
		}
		for day, n := range counts {
			out = append(out, domain.DailyCount{Date: day, Count: n})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
		return nil
	})
	return out, err
}

func (r *reportRepo) ResolutionTimes(_ context.Context) ([]domain.ResolutionTime, error) {
	var out []domain.ResolutionTime
	err := r.sc.do(OpReport, func(st *state, now time.Time) error {
		sums := map[domain.BugPriority]float64{}
		counts := map[domain.BugPriority]int{}
		for _, bug := range st.bugs {
			if bug.Status != domain.BugStatusResolved && bug.Status != domain.BugStatusClosed {
				continue
			}
			end := now
			if bug.UpdatedAt != nil {
				end = *bug.UpdatedAt
			}
			sums[bug.Priority] += end.Sub(bug.CreatedAt).Hours() / 24
			counts[bug.Priority]++
		}
		for priority, sum := range sums {
			out = append(out, domain.ResolutionTime{Priority: priority, AvgDays: sum / float64(counts[priority])})
		}
		return nil
	})
	return out, err
}

var (
	_ repository.Transactor             = (*Store)(nil)
	_ repository.BugRepository          = (*bugRepo)(nil)
	_ repository.BugHistoryRepository   = (*historyRepo)(nil)
	_ repository.CommentRepository      = (*commentRepo)(nil)
	_ repository.AttachmentRepository   = (*attachmentRepo)(nil)
	_ repository.UserRepository         = (*userRepo)(nil)
	_ repository.ProjectRepository      = (*projectRepo)(nil)
	_ repository.NotificationRepository = (*notificationRepo)(nil)
	_ repository.ReportRepository       = (*reportRepo)(nil)
)
