//go:build integration

// Package containers starts Postgres, Kafka and Redis once per test binary
// and hands the same instances to every suite in the package.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var shared = sync.OnceValue(func() *Manager { return &Manager{} })

func GetManager() *Manager {
	return shared()
}

// lazy starts the container on first use while holding the manager lock, so
// concurrent suites never race to start two of the same kind.
func lazy[C any](m *Manager, slot **C, start func(*testing.T) *C, t *testing.T) *C {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	return lazy(m, &m.postgres, NewPostgresContainer, t)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	return lazy(m, &m.kafka, NewKafkaContainer, t)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	return lazy(m, &m.redis, NewRedisContainer, t)
}
