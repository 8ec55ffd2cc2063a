package main

import (
	"todo-chat/config"
	"todo-chat/internal/agent"
	"todo-chat/internal/api"
	"todo-chat/internal/database"
	"todo-chat/internal/logger"
	"todo-chat/internal/messaging"
	"todo-chat/internal/scheduler"
	"todo-chat/internal/telemetry"
	"todo-chat/repository"
	"todo-chat/service"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,        // inject config
			logger.NewLogger,         // inject logger
			database.NewDBConnection, // inject db connection
			database.NewRedisClient,  // inject redis client
			messaging.NewRabbitMQ,    // inject rabbitmq service
			messaging.NewPublisher,   // inject task event publisher
			agent.NewOpenAIAgent,     // inject external agent client
		),
		repository.Module,
		service.Module,
		api.Module,
		fx.Invoke(
			telemetry.NewTelemetry, // install tracer provider eagerly
			messaging.InitializeMQ,
			scheduler.NewScheduler,
		),
	)
	app.Run()
}
