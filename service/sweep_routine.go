package service

import (
	"context"
	"time"

	"todo-chat/internal/scheduler"
	"todo-chat/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SweepLockKey = "todo:recurrence_sweep_lock"
	sweepLockTTL = 2 * time.Minute
)

// SweepRoutine is the failsafe for recurrence generation missed by the
// synchronous completion path (for example a crash between marking a task
// complete and writing its successor). The lease keeps instances from
// scanning in parallel; duplicate-write safety comes from the engine's
// idempotency check, not from the lock.
type SweepRoutine struct {
	taskRepo repository.TaskRepository
	engine   *RecurrenceEngine
	lock     LeaseLock
	logger   *zap.Logger
	now      func() time.Time
}

type SweepRoutineParams struct {
	fx.In

	TaskRepo    repository.TaskRepository
	Engine      *RecurrenceEngine
	RedisClient *redis.Client
	Logger      *zap.Logger
}

func NewSweepRoutine(params SweepRoutineParams) scheduler.ScheduleRoutine {
	return &SweepRoutine{
		taskRepo: params.TaskRepo,
		engine:   params.Engine,
		lock:     NewRedisLease(params.RedisClient, SweepLockKey, sweepLockTTL, params.Logger),
		logger:   params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *SweepRoutine) Name() string {
	return "recurrence_sweep"
}

func (r *SweepRoutine) Cancel() {
}

func (r *SweepRoutine) Run() error {
	ctx, span := otel.Tracer("todo-chat/service").Start(context.Background(), "recurrence.sweep")
	defer span.End()

	release, acquired, err := r.lock.TryAcquire(ctx)
	if err != nil {
		r.logger.Error("failed to acquire sweep lease", zap.Error(err))
		return err
	}
	if !acquired {
		// Another instance is sweeping; skipping is the normal case.
		r.logger.Debug("sweep lease held elsewhere, skipping cycle")
		return nil
	}
	defer release()

	candidates, err := r.taskRepo.GetSweepCandidates()
	if err != nil {
		r.logger.Error("failed to query sweep candidates", zap.Error(err))
		return err
	}

	// Candidates arrive newest first; only the latest completed instance of
	// each lineage should drive generation.
	seenLineages := make(map[string]bool)
	generated := 0
	for _, task := range candidates {
		rootID := task.LineageRootID()
		if seenLineages[rootID] {
			continue
		}
		seenLineages[rootID] = true

		successor, err := r.engine.GenerateSuccessor(ctx, task, r.now())
		if err != nil {
			// One bad row must not halt the cycle.
			r.logger.Error("sweep failed to generate successor",
				zap.String("task_id", task.ID),
				zap.String("lineage_id", rootID),
				zap.Error(err),
			)
			continue
		}
		if successor != nil {
			generated++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.candidates", len(candidates)),
		attribute.Int("sweep.generated", generated),
	)
	r.logger.Info("recurrence sweep complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("lineages", len(seenLineages)),
		zap.Int("generated", generated),
	)
	return nil
}
