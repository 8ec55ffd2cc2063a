package repository

import (
	"todo-chat/models"

	"gorm.io/gorm"
)

// TaskQuery is the portion of list filtering pushed down to the store.
// Search, due-date ranges and sorting are applied by the service layer.
type TaskQuery struct {
	Status        string // "", "pending" or "completed"
	Priority      string
	Category      string
	RecurringOnly bool
}

type TaskRepository interface {
	CreateTask(task *models.Task) error
	GetTaskByID(taskID string) (models.Task, error)
	ListTasks(ownerID string, query TaskQuery) ([]models.Task, error)
	UpdateTaskFields(taskID string, fields map[string]any) error
	// MarkTaskCompleted flips the completed flag in a single guarded update.
	// Returns false when the task was already completed, so concurrent
	// completions collapse to exactly one incomplete->complete transition.
	MarkTaskCompleted(taskID string) (bool, error)
	DeleteTask(taskID string) error
	// UpdateLineage applies fields to every task in the lineage rooted at
	// rootID, scoped to the owner.
	UpdateLineage(ownerID string, rootID string, fields map[string]any) error
	// FindOpenLineageTask returns the incomplete task in the lineage rooted at
	// rootID, or nil when every instance is completed.
	FindOpenLineageTask(ownerID string, rootID string) (*models.Task, error)
	// GetSweepCandidates returns completed, recurring, active tasks whose
	// lineage has no open instance, newest first.
	GetSweepCandidates() ([]models.Task, error)
}

type TaskRepositoryImpl struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) CreateTask(task *models.Task) error {
	return r.db.Create(task).Error
}

func (r *TaskRepositoryImpl) GetTaskByID(taskID string) (models.Task, error) {
	var task models.Task
	result := r.db.Where("id = ?", taskID).First(&task)
	if result.Error != nil {
		return models.Task{}, result.Error
	}
	return task, nil
}

func (r *TaskRepositoryImpl) ListTasks(ownerID string, query TaskQuery) ([]models.Task, error) {
	tx := r.db.Where("owner_id = ?", ownerID)

	switch query.Status {
	case "pending":
		tx = tx.Where("completed = ?", false)
	case "completed":
		tx = tx.Where("completed = ?", true)
	}
	if query.Priority != "" {
		tx = tx.Where("priority = ?", query.Priority)
	}
	if query.Category != "" {
		tx = tx.Where("category = ?", query.Category)
	}
	if query.RecurringOnly {
		tx = tx.Where("is_recurring = ?", true)
	}

	var tasks []models.Task
	if result := tx.Find(&tasks); result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) UpdateTaskFields(taskID string, fields map[string]any) error {
	result := r.db.Model(&models.Task{}).Where("id = ?", taskID).Updates(fields)
	return result.Error
}

func (r *TaskRepositoryImpl) MarkTaskCompleted(taskID string) (bool, error) {
	result := r.db.Model(&models.Task{}).
		Where("id = ? AND completed = ?", taskID, false).
		Update("completed", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *TaskRepositoryImpl) DeleteTask(taskID string) error {
	result := r.db.Where("id = ?", taskID).Delete(&models.Task{})
	return result.Error
}

func (r *TaskRepositoryImpl) UpdateLineage(ownerID string, rootID string, fields map[string]any) error {
	result := r.db.Model(&models.Task{}).
		Where("owner_id = ?", ownerID).
		Where("id = ? OR parent_recurrence_id = ?", rootID, rootID).
		Updates(fields)
	return result.Error
}

func (r *TaskRepositoryImpl) FindOpenLineageTask(ownerID string, rootID string) (*models.Task, error) {
	var task models.Task
	result := r.db.
		Where("owner_id = ? AND completed = ?", ownerID, false).
		Where("id = ? OR parent_recurrence_id = ?", rootID, rootID).
		First(&task)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &task, nil
}

func (r *TaskRepositoryImpl) GetSweepCandidates() ([]models.Task, error) {
	var tasks []models.Task
	result := r.db.
		Where("completed = ? AND is_recurring = ? AND recurrence_active = ?", true, true, true).
		Where(`NOT EXISTS (
			SELECT 1 FROM tasks AS open
			WHERE open.completed = false
			  AND (open.id = COALESCE(tasks.parent_recurrence_id, tasks.id)
			       OR open.parent_recurrence_id = COALESCE(tasks.parent_recurrence_id, tasks.id))
		)`).
		Order("created_at DESC").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}
