package cache

import (
	"context"

	"prep_arena/internal/platform/config"
	"prep_arena/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

var cacheLog = logger.NewNamedLogger("cache")

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx := context.Background()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		cacheLog.Fatalf("Could not connect to Redis: %v", err)
	}
	cacheLog.Info("Successfully connected to Redis")
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		cacheLog.Info("Redis connection closed")
	}
}
