package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"todo-chat/internal/messaging"
	"todo-chat/models"
	"todo-chat/repository"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const titleMaxLength = 200

// RecurrenceParams configures how a task regenerates after completion.
type RecurrenceParams struct {
	Pattern    string     `json:"pattern"`
	Interval   int        `json:"interval,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`  // 0=Monday .. 6=Sunday, weekly only
	DayOfMonth *int       `json:"day_of_month,omitempty"` // 1-31, monthly only
}

type CreateTaskParams struct {
	Title       string
	Description string
	Priority    string
	Category    string
	DueDate     *time.Time
	Recurrence  *RecurrenceParams
}

type UpdateTaskParams struct {
	Title       *string
	Description *string
	Priority    *string
	Category    *string
	DueDate     *time.Time
	Recurrence  *RecurrenceParams
}

type ListTasksParams struct {
	Status        string     `json:"status,omitempty"` // all, pending, completed
	Priority      string     `json:"priority,omitempty"`
	Category      string     `json:"category,omitempty"`
	Search        string     `json:"search,omitempty"`
	DueDateFrom   *time.Time `json:"due_date_from,omitempty"`
	DueDateTo     *time.Time `json:"due_date_to,omitempty"`
	RecurringOnly bool       `json:"recurring_only,omitempty"`
	SortBy        string     `json:"sort_by,omitempty"`    // created_at, due_date, priority, title
	SortOrder     string     `json:"sort_order,omitempty"` // asc, desc
}

// TaskList echoes the applied parameters so callers (and tests) can tell
// exactly which view of the list they got.
type TaskList struct {
	Tasks  []models.Task   `json:"tasks"`
	Count  int             `json:"count"`
	Params ListTasksParams `json:"params"`
}

type CompleteResult struct {
	Task        models.Task `json:"task"`
	SuccessorID string      `json:"successor_id,omitempty"`
}

// TaskService implements every task mutation. The owner id is the first
// argument of each operation and scopes all access; a stored task owned by
// someone else is a forbidden error, never a silent miss.
type TaskService interface {
	Create(ctx context.Context, ownerID string, params CreateTaskParams) (*models.Task, error)
	List(ctx context.Context, ownerID string, params ListTasksParams) (*TaskList, error)
	Complete(ctx context.Context, ownerID string, taskID string) (*CompleteResult, error)
	Delete(ctx context.Context, ownerID string, taskID string) error
	Update(ctx context.Context, ownerID string, taskID string, params UpdateTaskParams) (*models.Task, error)
	StopRecurrence(ctx context.Context, ownerID string, taskID string) (*models.Task, error)
}

type TaskServiceParams struct {
	fx.In

	TaskRepo  repository.TaskRepository
	Engine    *RecurrenceEngine
	Publisher messaging.Publisher
	Logger    *zap.Logger
}

type TaskServiceImpl struct {
	taskRepo  repository.TaskRepository
	engine    *RecurrenceEngine
	publisher messaging.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTaskService(params TaskServiceParams) TaskService {
	return &TaskServiceImpl{
		taskRepo:  params.TaskRepo,
		engine:    params.Engine,
		publisher: params.Publisher,
		logger:    params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskServiceImpl) Create(ctx context.Context, ownerID string, params CreateTaskParams) (*models.Task, error) {
	if err := validateTitle(params.Title); err != nil {
		return nil, err
	}
	priority := params.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	if err := validateCategory(params.Category); err != nil {
		return nil, err
	}
	if params.Recurrence != nil {
		if err := validateRecurrence(params.Recurrence); err != nil {
			return nil, err
		}
	}

	now := s.now()
	task := &models.Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       params.Title,
		Description: params.Description,
		Priority:    priority,
		Category:    params.Category,
		DueDate:     params.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,

		RecurrenceInterval: 1,
		RecurrenceActive:   true,
	}
	if params.Recurrence != nil {
		task.IsRecurring = true
		task.RecurrencePattern = params.Recurrence.Pattern
		if params.Recurrence.Interval > 0 {
			task.RecurrenceInterval = params.Recurrence.Interval
		}
		task.RecurrenceEndDate = params.Recurrence.EndDate
		task.RecurrenceDayOfWeek = params.Recurrence.DayOfWeek
		task.RecurrenceDayOfMonth = params.Recurrence.DayOfMonth
	}

	if err := s.taskRepo.CreateTask(task); err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}

	s.logger.Info("created task",
		zap.String("owner_id", ownerID),
		zap.String("task_id", task.ID),
		zap.Bool("recurring", task.IsRecurring),
	)
	s.publish(messaging.TaskEvent{Event: messaging.EventTaskCreated, OwnerID: ownerID, TaskID: task.ID, At: now})

	return task, nil
}

func (s *TaskServiceImpl) List(ctx context.Context, ownerID string, params ListTasksParams) (*TaskList, error) {
	if err := validateListParams(&params); err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListTasks(ownerID, repository.TaskQuery{
		Status:        params.Status,
		Priority:      params.Priority,
		Category:      params.Category,
		RecurringOnly: params.RecurringOnly,
	})
	if err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}

	tasks = filterTasks(tasks, params)
	sortTasks(tasks, params.SortBy, params.SortOrder)

	return &TaskList{Tasks: tasks, Count: len(tasks), Params: params}, nil
}

func (s *TaskServiceImpl) Complete(ctx context.Context, ownerID string, taskID string) (*CompleteResult, error) {
	task, err := s.getOwnedTask(ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if task.Completed {
		// Idempotent: completing twice is a no-op success.
		return &CompleteResult{Task: task}, nil
	}

	transitioned, err := s.taskRepo.MarkTaskCompleted(task.ID)
	if err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}
	task.Completed = true

	if !transitioned {
		// A concurrent request won the transition; it owns successor
		// generation, and the sweep covers it if that request died.
		return &CompleteResult{Task: task}, nil
	}

	now := s.now()
	s.logger.Info("completed task", zap.String("owner_id", ownerID), zap.String("task_id", task.ID))
	s.publish(messaging.TaskEvent{
		Event: messaging.EventTaskCompleted, OwnerID: ownerID, TaskID: task.ID,
		LineageID: lineageIDIfRecurring(&task), At: now,
	})

	result := &CompleteResult{Task: task}
	if task.IsRecurring && task.RecurrenceActive {
		successor, err := s.engine.GenerateSuccessor(ctx, task, now)
		if err != nil {
			// The completion itself stands; the periodic sweep will
			// regenerate the missing successor.
			s.logger.Error("failed to generate successor, deferring to sweep",
				zap.String("task_id", task.ID), zap.Error(err))
		} else if successor != nil {
			result.SuccessorID = successor.ID
		}
	}

	return result, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, ownerID string, taskID string) error {
	task, err := s.getOwnedTask(ownerID, taskID)
	if err != nil {
		if KindOf(err) == ErrKindNotFound {
			// Idempotent: already gone is success.
			return nil
		}
		return err
	}

	if err := s.taskRepo.DeleteTask(task.ID); err != nil {
		return dependencyError("the task store is currently unavailable", err)
	}

	s.logger.Info("deleted task", zap.String("owner_id", ownerID), zap.String("task_id", task.ID))
	s.publish(messaging.TaskEvent{Event: messaging.EventTaskDeleted, OwnerID: ownerID, TaskID: task.ID, At: s.now()})
	return nil
}

func (s *TaskServiceImpl) Update(ctx context.Context, ownerID string, taskID string, params UpdateTaskParams) (*models.Task, error) {
	task, err := s.getOwnedTask(ownerID, taskID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if params.Title != nil {
		if err := validateTitle(*params.Title); err != nil {
			return nil, err
		}
		fields["title"] = *params.Title
	}
	if params.Description != nil {
		fields["description"] = *params.Description
	}
	if params.Priority != nil {
		if err := validatePriority(*params.Priority); err != nil {
			return nil, err
		}
		fields["priority"] = *params.Priority
	}
	if params.Category != nil {
		if err := validateCategory(*params.Category); err != nil {
			return nil, err
		}
		fields["category"] = *params.Category
	}
	if params.DueDate != nil {
		fields["due_date"] = *params.DueDate
	}
	if params.Recurrence != nil {
		// Recurrence changes affect future generation only; instances already
		// written keep their dates.
		if err := validateRecurrence(params.Recurrence); err != nil {
			return nil, err
		}
		fields["is_recurring"] = true
		fields["recurrence_pattern"] = params.Recurrence.Pattern
		if params.Recurrence.Interval > 0 {
			fields["recurrence_interval"] = params.Recurrence.Interval
		}
		fields["recurrence_end_date"] = params.Recurrence.EndDate
		fields["recurrence_day_of_week"] = params.Recurrence.DayOfWeek
		fields["recurrence_day_of_month"] = params.Recurrence.DayOfMonth
	}

	if len(fields) == 0 {
		return &task, nil
	}
	fields["updated_at"] = s.now()

	if err := s.taskRepo.UpdateTaskFields(task.ID, fields); err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}

	updated, err := s.taskRepo.GetTaskByID(task.ID)
	if err != nil {
		return nil, storeError(err, "task not found")
	}

	s.logger.Info("updated task", zap.String("owner_id", ownerID), zap.String("task_id", task.ID))
	s.publish(messaging.TaskEvent{Event: messaging.EventTaskUpdated, OwnerID: ownerID, TaskID: task.ID, At: s.now()})
	return &updated, nil
}

func (s *TaskServiceImpl) StopRecurrence(ctx context.Context, ownerID string, taskID string) (*models.Task, error) {
	task, err := s.getOwnedTask(ownerID, taskID)
	if err != nil {
		return nil, err
	}

	rootID := task.LineageRootID()

	// Flag the whole lineage so neither a later completion nor the sweep can
	// generate another instance. Idempotent: stopping twice is a no-op.
	if err := s.taskRepo.UpdateLineage(ownerID, rootID, map[string]any{
		"recurrence_active": false,
		"updated_at":        s.now(),
	}); err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}

	task.RecurrenceActive = false

	s.logger.Info("stopped recurrence",
		zap.String("owner_id", ownerID),
		zap.String("task_id", task.ID),
		zap.String("lineage_id", rootID),
	)
	s.publish(messaging.TaskEvent{
		Event: messaging.EventRecurrenceStopped, OwnerID: ownerID, TaskID: task.ID,
		LineageID: rootID, At: s.now(),
	})
	return &task, nil
}

// getOwnedTask loads a task and enforces owner isolation. A mismatched owner
// is forbidden, never not-found, so the two stay distinguishable.
func (s *TaskServiceImpl) getOwnedTask(ownerID string, taskID string) (models.Task, error) {
	if taskID == "" {
		return models.Task{}, validationError("task id is required")
	}
	task, err := s.taskRepo.GetTaskByID(taskID)
	if err != nil {
		return models.Task{}, storeError(err, "task not found")
	}
	if task.OwnerID != ownerID {
		return models.Task{}, forbiddenError("you do not have access to this task")
	}
	return task, nil
}

func (s *TaskServiceImpl) publish(event messaging.TaskEvent) {
	if err := s.publisher.PublishTaskEvent(event); err != nil {
		s.logger.Warn("failed to publish task event",
			zap.String("event", event.Event),
			zap.String("task_id", event.TaskID),
			zap.Error(err),
		)
	}
}

func lineageIDIfRecurring(task *models.Task) string {
	if !task.IsRecurring {
		return ""
	}
	return task.LineageRootID()
}

// --- validation ---

func validateTitle(title string) error {
	if length := utf8.RuneCountInString(title); length < 1 || length > titleMaxLength {
		return validationError("title must be between 1 and 200 characters")
	}
	return nil
}

func validatePriority(priority string) error {
	switch priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return nil
	}
	return validationError("priority must be one of: high, medium, low")
}

func validateCategory(category string) error {
	if category == "" {
		return nil
	}
	for _, known := range models.TaskCategories {
		if category == known {
			return nil
		}
	}
	return validationError("category must be one of: " + strings.Join(models.TaskCategories, ", "))
}

func validateRecurrence(recurrence *RecurrenceParams) error {
	switch recurrence.Pattern {
	case models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly:
	default:
		return validationError("recurrence pattern must be one of: daily, weekly, monthly")
	}
	if recurrence.Interval < 0 {
		return validationError("recurrence interval must be a positive integer")
	}
	if recurrence.DayOfWeek != nil {
		if recurrence.Pattern != models.RecurrenceWeekly {
			return validationError("day_of_week only applies to weekly recurrence")
		}
		if *recurrence.DayOfWeek < 0 || *recurrence.DayOfWeek > 6 {
			return validationError("day_of_week must be between 0 (Monday) and 6 (Sunday)")
		}
	}
	if recurrence.DayOfMonth != nil {
		if recurrence.Pattern != models.RecurrenceMonthly {
			return validationError("day_of_month only applies to monthly recurrence")
		}
		if *recurrence.DayOfMonth < 1 || *recurrence.DayOfMonth > 31 {
			return validationError("day_of_month must be between 1 and 31")
		}
	}
	return nil
}

func validateListParams(params *ListTasksParams) error {
	switch params.Status {
	case "", "all", "pending", "completed":
	default:
		return validationError("status must be one of: all, pending, completed")
	}
	if params.Priority != "" {
		if err := validatePriority(params.Priority); err != nil {
			return err
		}
	}
	if err := validateCategory(params.Category); err != nil {
		return err
	}
	if params.SortBy == "" {
		params.SortBy = "created_at"
	}
	switch params.SortBy {
	case "created_at", "due_date", "priority", "title":
	default:
		return validationError("sort_by must be one of: created_at, due_date, priority, title")
	}
	if params.SortOrder == "" {
		params.SortOrder = "desc"
	}
	switch params.SortOrder {
	case "asc", "desc":
	default:
		return validationError("sort_order must be asc or desc")
	}
	return nil
}

// --- in-memory filtering and sorting ---

func filterTasks(tasks []models.Task, params ListTasksParams) []models.Task {
	filtered := tasks[:0]
	search := strings.ToLower(params.Search)
	for _, task := range tasks {
		if search != "" &&
			!strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		if params.DueDateFrom != nil && (task.DueDate == nil || task.DueDate.Before(*params.DueDateFrom)) {
			continue
		}
		if params.DueDateTo != nil && (task.DueDate == nil || task.DueDate.After(*params.DueDateTo)) {
			continue
		}
		filtered = append(filtered, task)
	}
	return filtered
}

var priorityRank = map[string]int{
	models.PriorityHigh:   1,
	models.PriorityMedium: 2,
	models.PriorityLow:    3,
}

func sortTasks(tasks []models.Task, sortBy string, sortOrder string) {
	asc := sortOrder == "asc"
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		switch sortBy {
		case "due_date":
			// Tasks without a due date sort last regardless of direction.
			if a.DueDate == nil || b.DueDate == nil {
				return b.DueDate == nil && a.DueDate != nil
			}
			if asc {
				return a.DueDate.Before(*b.DueDate)
			}
			return a.DueDate.After(*b.DueDate)
		case "priority":
			if asc {
				return priorityRank[a.Priority] < priorityRank[b.Priority]
			}
			return priorityRank[a.Priority] > priorityRank[b.Priority]
		case "title":
			at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if asc {
				return at < bt
			}
			return at > bt
		default: // created_at
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}
