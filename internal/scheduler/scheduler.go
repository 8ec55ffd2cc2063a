package scheduler

import (
	"context"
	"sync"
	"time"

	"todo-chat/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ScheduleRoutine is a job run periodically by the scheduler.
type ScheduleRoutine interface {
	Run() error
	Name() string
	Cancel()
}

type SchedulerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.AppConfig
	Logger    *zap.Logger
	Routines  []ScheduleRoutine `group:"routines"`
}

type Scheduler struct {
	logger   *zap.Logger
	interval time.Duration
	shutdown chan struct{}
	routines map[string]ScheduleRoutine
}

func NewScheduler(params SchedulerParams) *Scheduler {
	routines := make(map[string]ScheduleRoutine)
	for _, routine := range params.Routines {
		routines[routine.Name()] = routine
	}

	scheduler := &Scheduler{
		logger:   params.Logger,
		interval: time.Duration(params.Config.SweepIntervalMinutes) * time.Minute,
		routines: routines,
		shutdown: make(chan struct{}),
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(scheduler.shutdown)
			for _, routine := range scheduler.routines {
				routine.Cancel()
			}
			return nil
		},
	})

	return scheduler
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Keep ticks from piling up behind a slow cycle.
	var processing sync.Mutex

	for {
		if processing.TryLock() {
			go func() {
				defer processing.Unlock()
				for _, routine := range s.routines {
					s.logger.Debug("running routine", zap.String("name", routine.Name()))
					if err := routine.Run(); err != nil {
						s.logger.Error("routine failed", zap.String("name", routine.Name()), zap.Error(err))
					} else {
						s.logger.Debug("routine completed", zap.String("name", routine.Name()))
					}
				}
			}()
		} else {
			s.logger.Warn("previous cycle still in progress, skipping this tick")
		}

		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			continue
		}
	}
}
