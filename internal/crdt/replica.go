package crdt

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReplicaClock выдает метки времени для локальных записей одной реплики.
//
// Метки берутся из системных часов в UTC, но никогда не идут назад в пределах
// реплики: если системные часы отстали, следующая метка = предыдущая + 1ns.
// Это не логические часы Лампорта - упорядочивание между репликами остается
// приблизительным (wall clock), детерминизм дает только replica id в тай-брейке.
type ReplicaClock struct {
	last      time.Time        // последняя выданная метка
	now       func() time.Time // источник времени
	replicaID string           // уникальный идентификатор реплики
	mu        sync.Mutex       // мьютекс для потокобезопасности
}

// NewReplicaClock создает часы для новой реплики со случайным идентификатором (UUID).
func NewReplicaClock() *ReplicaClock {
	return NewReplicaClockWithID(uuid.New().String())
}

// NewReplicaClockWithID создает часы с заданным идентификатором реплики.
// Используется при восстановлении реплики из хранилища и в тестах.
func NewReplicaClockWithID(replicaID string) *ReplicaClock {
	return &ReplicaClock{
		replicaID: replicaID,
		now:       time.Now,
	}
}

// WithTimeSource подменяет источник времени (для тестов).
func (c *ReplicaClock) WithTimeSource(now func() time.Time) *ReplicaClock {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
	return c
}

// Now возвращает новую метку времени для локальной записи.
// Каждая следующая метка строго больше предыдущей.
func (c *ReplicaClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := normalizeTime(c.now())
	if !ts.After(c.last) {
		ts = c.last.Add(time.Nanosecond)
	}
	c.last = ts

	return ts
}

// Last возвращает последнюю выданную метку без изменения состояния.
func (c *ReplicaClock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}

// SetLast восстанавливает последнюю выданную метку (например, после перезапуска).
func (c *ReplicaClock) SetLast(ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = normalizeTime(ts)
}

// ReplicaID возвращает идентификатор реплики.
func (c *ReplicaClock) ReplicaID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.replicaID
}

// normalizeTime приводит время к UTC и отбрасывает монотонные показания,
// чтобы сравнение и сериализация были точными.
func normalizeTime(t time.Time) time.Time {
	return t.UTC()
}
