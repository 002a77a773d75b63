package page

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("page session not found")

// Session is the lifetime of one loaded page: its status region and whatever
// handle the page built on load.
type Session[T any] struct {
	ID     string
	Status *StatusRegion
	Value  T

	lastSeen time.Time
}

// Registry keeps page sessions in memory until they go unused for ttl.
type Registry[T any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session[T]
}

func NewRegistry[T any](ttl time.Duration) *Registry[T] {
	return &Registry[T]{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session[T]),
	}
}

func (r *Registry[T]) Create(value T) *Session[T] {
	s, _ := r.CreateWith(func(*StatusRegion) (T, error) { return value, nil })
	return s
}

// CreateWith registers a session whose value is built around the session's status region.
// Nothing is registered if build fails.
func (r *Registry[T]) CreateWith(build func(status *StatusRegion) (T, error)) (*Session[T], error) {
	status := &StatusRegion{}
	value, err := build(status)
	if err != nil {
		return nil, err
	}
	s := &Session[T]{
		ID:       uuid.NewString(),
		Status:   status,
		Value:    value,
		lastSeen: r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry[T]) Get(id string) (*Session[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = r.now()
	return s, nil
}

func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the ttl and returns how many were dropped.
func (r *Registry[T]) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry[T]) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
