package database

import (
	"sync"
	"time"

	"knowledge-nest-backend/pkg/logger"
)

// databasePool holds the process-wide database connection. On serverless
// platforms the same instance is reused across warm invocations.
type databasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	lastUsed time.Time
}

var (
	globalPool *databasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the shared database connection, creating it on first
// use or when the configuration changed.
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || shouldRecreateConnection(globalPool, config) {
		logger.L().Infow("creating database connection", "memory", config.PostgresDSN == "")

		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}

		instance, err := NewDatabase(config)
		if err != nil {
			return nil, err
		}
		globalPool = &databasePool{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
	} else {
		globalPool.lastUsed = time.Now()
	}

	return globalPool.instance, nil
}

func shouldRecreateConnection(pool *databasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}
	if pool.config.PostgresDSN != newConfig.PostgresDSN ||
		pool.config.UseMemoryDB != newConfig.UseMemoryDB {
		return true
	}
	// Recycle stale connections proactively
	if time.Since(pool.lastUsed) > 10*time.Minute {
		return pool.instance.HealthCheck() != nil
	}
	return false
}
