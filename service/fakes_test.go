package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"todo-chat/internal/agent"
	"todo-chat/internal/messaging"
	"todo-chat/models"
	"todo-chat/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeTaskRepo is an in-memory TaskRepository with the same semantics as the
// gorm implementation.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]models.Task

	createErr func(task *models.Task) error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]models.Task)}
}

func (f *fakeTaskRepo) CreateTask(task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(task); err != nil {
			return err
		}
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskRepo) GetTaskByID(taskID string) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return models.Task{}, gorm.ErrRecordNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) ListTasks(ownerID string, query repository.TaskQuery) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []models.Task
	for _, task := range f.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if query.Status == "pending" && task.Completed {
			continue
		}
		if query.Status == "completed" && !task.Completed {
			continue
		}
		if query.Priority != "" && task.Priority != query.Priority {
			continue
		}
		if query.Category != "" && task.Category != query.Category {
			continue
		}
		if query.RecurringOnly && !task.IsRecurring {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (f *fakeTaskRepo) UpdateTaskFields(taskID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil
	}
	applyTaskFields(&task, fields)
	f.tasks[taskID] = task
	return nil
}

func (f *fakeTaskRepo) MarkTaskCompleted(taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.Completed {
		return false, nil
	}
	task.Completed = true
	f.tasks[taskID] = task
	return true, nil
}

func (f *fakeTaskRepo) DeleteTask(taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeTaskRepo) UpdateLineage(ownerID string, rootID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, task := range f.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if task.ID != rootID && (task.ParentRecurrenceID == nil || *task.ParentRecurrenceID != rootID) {
			continue
		}
		applyTaskFields(&task, fields)
		f.tasks[id] = task
	}
	return nil
}

func (f *fakeTaskRepo) FindOpenLineageTask(ownerID string, rootID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.OwnerID != ownerID || task.Completed {
			continue
		}
		if task.ID == rootID || (task.ParentRecurrenceID != nil && *task.ParentRecurrenceID == rootID) {
			found := task
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeTaskRepo) GetSweepCandidates() ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	openLineages := make(map[string]bool)
	for _, task := range f.tasks {
		if !task.Completed {
			openLineages[task.LineageRootID()] = true
		}
	}

	var candidates []models.Task
	for _, task := range f.tasks {
		if !task.Completed || !task.IsRecurring || !task.RecurrenceActive {
			continue
		}
		if openLineages[task.LineageRootID()] {
			continue
		}
		candidates = append(candidates, task)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates, nil
}

func applyTaskFields(task *models.Task, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			task.Title = value.(string)
		case "description":
			task.Description = value.(string)
		case "priority":
			task.Priority = value.(string)
		case "category":
			task.Category = value.(string)
		case "completed":
			task.Completed = value.(bool)
		case "due_date":
			due := value.(time.Time)
			task.DueDate = &due
		case "is_recurring":
			task.IsRecurring = value.(bool)
		case "recurrence_pattern":
			task.RecurrencePattern = value.(string)
		case "recurrence_interval":
			task.RecurrenceInterval = value.(int)
		case "recurrence_end_date":
			task.RecurrenceEndDate = value.(*time.Time)
		case "recurrence_day_of_week":
			task.RecurrenceDayOfWeek = value.(*int)
		case "recurrence_day_of_month":
			task.RecurrenceDayOfMonth = value.(*int)
		case "recurrence_active":
			task.RecurrenceActive = value.(bool)
		case "updated_at":
			task.UpdatedAt = value.(time.Time)
		}
	}
}

// fakeConversationRepo is an in-memory ConversationRepository.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	messages      []models.Message

	createMessageErr error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]models.Conversation)}
}

func (f *fakeConversationRepo) CreateConversation(conversation *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conversation.ID] = *conversation
	return nil
}

func (f *fakeConversationRepo) GetConversationByID(conversationID string) (models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return models.Conversation{}, gorm.ErrRecordNotFound
	}
	return conversation, nil
}

func (f *fakeConversationRepo) TouchConversation(conversationID string) error {
	return nil
}

func (f *fakeConversationRepo) CreateMessage(message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createMessageErr != nil {
		return f.createMessageErr
	}
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeConversationRepo) GetRecentMessages(conversationID string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Message
	for _, message := range f.messages {
		if message.ConversationID == conversationID {
			all = append(all, message)
		}
	}
	// Insertion order is chronological in the fake.
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeConversationRepo) CountMessages(conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, message := range f.messages {
		if message.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (f *fakeConversationRepo) messagesIn(conversationID string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Message
	for _, message := range f.messages {
		if message.ConversationID == conversationID {
			all = append(all, message)
		}
	}
	return all
}

// capturingPublisher records published events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []messaging.TaskEvent
}

func (p *capturingPublisher) PublishTaskEvent(event messaging.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// scriptedAgent returns canned replies and records what it was asked.
type scriptedAgent struct {
	reply *agent.Reply
	err   error

	gotHistory    []agent.Message
	gotNewMessage string
	gotTools      []agent.Tool
}

func (a *scriptedAgent) Complete(ctx context.Context, history []agent.Message, newMessage string, tools []agent.Tool) (*agent.Reply, error) {
	a.gotHistory = history
	a.gotNewMessage = newMessage
	a.gotTools = tools
	if a.err != nil {
		return nil, a.err
	}
	if a.reply != nil {
		return a.reply, nil
	}
	return &agent.Reply{Content: "ok"}, nil
}

// fakeLease flips between held and free.
type fakeLease struct {
	contended bool
	acquired  int
	released  int
}

func (l *fakeLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	if l.contended {
		return nil, false, nil
	}
	l.acquired++
	return func() { l.released++ }, true, nil
}

// --- constructors wired with fakes ---

func testTime() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func newTestEngine(repo repository.TaskRepository) (*RecurrenceEngine, *capturingPublisher) {
	publisher := &capturingPublisher{}
	return &RecurrenceEngine{
		taskRepo:  repo,
		publisher: publisher,
		logger:    zap.NewNop(),
	}, publisher
}

func newTestTaskService(repo repository.TaskRepository) (*TaskServiceImpl, *capturingPublisher) {
	engine, publisher := newTestEngine(repo)
	return &TaskServiceImpl{
		taskRepo:  repo,
		engine:    engine,
		publisher: publisher,
		logger:    zap.NewNop(),
		now:       testTime,
	}, publisher
}

func newTestChatService(conversationRepo repository.ConversationRepository, taskService TaskService, testAgent agent.Agent) *ChatServiceImpl {
	return &ChatServiceImpl{
		conversationRepo: conversationRepo,
		taskService:      taskService,
		agent:            testAgent,
		logger:           zap.NewNop(),
		contextLimit:     20,
		agentTimeout:     time.Second,
		now:              testTime,
	}
}
