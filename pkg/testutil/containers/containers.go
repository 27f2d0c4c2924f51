//go:build integration

// Package containers starts the Postgres, Redis and Kafka dependencies the
// integration suites run against. Each container is started once per test
// binary and shared by every suite in it.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers, starting each lazily.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var manager = sync.OnceValue(func() *Manager { return &Manager{} })

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	return manager()
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return shared(m, &m.postgres, func() *PostgresContainer { return NewPostgresContainer(t) })
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return shared(m, &m.kafka, func() *KafkaContainer { return NewKafkaContainer(t) })
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return shared(m, &m.redis, func() *RedisContainer { return NewRedisContainer(t) })
}

func shared[T any](m *Manager, slot **T, start func() *T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start()
	}
	return *slot
}
