package service

import (
	"context"
	"time"

	"todo-chat/internal/messaging"
	"todo-chat/models"
	"todo-chat/repository"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RecurrenceEngine computes next due dates for recurring tasks and writes at
// most one open successor per lineage.
type RecurrenceEngine struct {
	taskRepo  repository.TaskRepository
	publisher messaging.Publisher
	logger    *zap.Logger
}

type RecurrenceEngineParams struct {
	fx.In

	TaskRepo  repository.TaskRepository
	Publisher messaging.Publisher
	Logger    *zap.Logger
}

func NewRecurrenceEngine(params RecurrenceEngineParams) *RecurrenceEngine {
	return &RecurrenceEngine{
		taskRepo:  params.TaskRepo,
		publisher: params.Publisher,
		logger:    params.Logger,
	}
}

// NextDueDate computes the due date of the next instance of a recurring task.
// When the task carries no due date, now is used as the base instead, so a
// completed undated daily task still lands interval days out.
func NextDueDate(task *models.Task, now time.Time) time.Time {
	base := now
	if task.DueDate != nil {
		base = *task.DueDate
	}

	interval := task.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	switch task.RecurrencePattern {
	case models.RecurrenceWeekly:
		// Immediate next occurrence of the target weekday strictly after the
		// base, then skip ahead the remaining interval weeks.
		target := mondayIndexed(base.Weekday())
		if task.RecurrenceDayOfWeek != nil {
			target = *task.RecurrenceDayOfWeek
		}
		days := (target - mondayIndexed(base.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return base.AddDate(0, 0, days+(interval-1)*7)

	case models.RecurrenceMonthly:
		targetDay := base.Day()
		if task.RecurrenceDayOfMonth != nil {
			targetDay = *task.RecurrenceDayOfMonth
		}
		year, month := base.Year(), int(base.Month())+interval
		for month > 12 {
			month -= 12
			year++
		}
		// Clamp to the last day of shorter months. The clamp is per
		// computation: the configured day of month is preserved on the task,
		// so a 31st schedule recovers after February.
		day := targetDay
		if last := daysInMonth(year, time.Month(month)); day > last {
			day = last
		}
		return time.Date(year, time.Month(month), day,
			base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())

	default: // daily
		return base.AddDate(0, 0, interval)
	}
}

// mondayIndexed converts time.Weekday (Sunday=0) to the stored convention
// (Monday=0 .. Sunday=6).
func mondayIndexed(weekday time.Weekday) int {
	return (int(weekday) + 6) % 7
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// GenerateSuccessor writes the next instance for a completed recurring task.
// It returns nil when the lineage must not generate (not recurring, paused, or
// past its end date). When the lineage already has an open task -- a
// concurrent completion or sweep got there first -- that task is returned and
// nothing is written.
func (e *RecurrenceEngine) GenerateSuccessor(ctx context.Context, task models.Task, now time.Time) (*models.Task, error) {
	if !task.IsRecurring || !task.RecurrenceActive || task.RecurrencePattern == "" {
		return nil, nil
	}

	nextDue := NextDueDate(&task, now)
	if task.RecurrenceEndDate != nil && !nextDue.Before(*task.RecurrenceEndDate) {
		e.logger.Info("recurrence end date reached, no successor",
			zap.String("task_id", task.ID),
			zap.Time("next_due", nextDue),
		)
		return nil, nil
	}

	rootID := task.LineageRootID()

	open, err := e.taskRepo.FindOpenLineageTask(task.OwnerID, rootID)
	if err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}
	if open != nil {
		e.logger.Debug("lineage already has an open task, skipping successor",
			zap.String("task_id", task.ID),
			zap.String("open_task_id", open.ID),
		)
		return open, nil
	}

	successor := &models.Task{
		ID:          uuid.NewString(),
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   false,
		Priority:    task.Priority,
		Category:    task.Category,
		DueDate:     &nextDue,

		IsRecurring:          true,
		RecurrencePattern:    task.RecurrencePattern,
		RecurrenceInterval:   task.RecurrenceInterval,
		RecurrenceEndDate:    task.RecurrenceEndDate,
		RecurrenceDayOfWeek:  task.RecurrenceDayOfWeek,
		RecurrenceDayOfMonth: task.RecurrenceDayOfMonth,
		RecurrenceActive:     true,
		ParentRecurrenceID:   &rootID,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.taskRepo.CreateTask(successor); err != nil {
		return nil, dependencyError("the task store is currently unavailable", err)
	}

	e.logger.Info("generated recurrence successor",
		zap.String("completed_task_id", task.ID),
		zap.String("successor_id", successor.ID),
		zap.String("lineage_id", rootID),
		zap.Time("due_date", nextDue),
	)

	if err := e.publisher.PublishTaskEvent(messaging.TaskEvent{
		Event:     messaging.EventSuccessorCreated,
		OwnerID:   successor.OwnerID,
		TaskID:    successor.ID,
		LineageID: rootID,
		At:        now,
	}); err != nil {
		e.logger.Warn("failed to publish successor event", zap.String("task_id", successor.ID), zap.Error(err))
	}

	return successor, nil
}
