package service

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewRecurrenceEngine),
	fx.Provide(NewTaskService),
	fx.Provide(NewChatService),
	fx.Provide(fx.Annotated{
		Group:  "routines",
		Target: NewSweepRoutine,
	}),
)
