package api

import (
	"context"
	"net/http"

	"todo-chat/config"
	"todo-chat/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServerParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	ChatService service.ChatService
	Logger      *zap.Logger
	Config      *config.AppConfig
}

// NewAPIServer creates the HTTP server for the chat endpoint.
func NewAPIServer(params ServerParams) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth(params.Logger))
	mux.HandleFunc("POST /{ownerId}/chat", handleChat(params.ChatService, params.Logger))

	server := &http.Server{
		Addr:    params.Config.ListenAddr,
		Handler: mux,
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				params.Logger.Info("API server listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					params.Logger.Fatal("failed to start API server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})

	return server
}

var Module = fx.Module("api",
	fx.Invoke(
		NewAPIServer,
	),
)
