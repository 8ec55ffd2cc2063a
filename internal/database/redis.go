package database

import (
	"context"
	"strings"

	"todo-chat/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type RedisParams struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
}

func NewRedisClient(p RedisParams) (*redis.Client, error) {
	var client *redis.Client
	if p.Config.RedisSentinelHosts != "" {
		sentinelHosts := strings.Split(p.Config.RedisSentinelHosts, ",")
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    p.Config.RedisMasterName,
			SentinelAddrs: sentinelHosts,
			DB:            0,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: p.Config.RedisAddr,
			DB:   0,
		})
	}

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		p.Logger.Error("failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	p.Logger.Info("connected to Redis")

	return client, nil
}
