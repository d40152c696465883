// Package loader хранит состояние загрузки ресурса: загрузка, ошибка, данные.
package loader

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc загружает данные ресурса
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot неизменяемый снимок состояния ресурса
type Snapshot[T any] struct {
	Loading  bool
	Err      error
	Data     T
	HasData  bool
	LoadedAt time.Time
}

// Resource загружает данные через fetch и хранит последний результат.
// Одновременные загрузки объединяются в одну.
type Resource[T any] struct {
	fetch FetchFunc[T]
	group singleflight.Group

	mu   sync.RWMutex
	snap Snapshot[T]
}

// New создает ресурс
func New[T any](fetch FetchFunc[T]) *Resource[T] {
	return &Resource[T]{fetch: fetch}
}

// Snapshot возвращает текущее состояние
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Load возвращает уже загруженные данные или загружает их
func (r *Resource[T]) Load(ctx context.Context) (T, error) {
	snap := r.Snapshot()
	if snap.HasData && snap.Err == nil {
		return snap.Data, nil
	}
	return r.Reload(ctx)
}

// Reload загружает данные заново. Прежние данные остаются в снимке, пока идет загрузка.
func (r *Resource[T]) Reload(ctx context.Context) (T, error) {
	// Общая загрузка не прерывается отменой контекста одного из ожидающих
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan("load", func() (interface{}, error) {
		r.mu.Lock()
		r.snap.Loading = true
		r.mu.Unlock()

		data, err := r.fetch(shared)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.snap.Loading = false
		r.snap.Err = err
		if err == nil {
			r.snap.Data = data
			r.snap.HasData = true
			r.snap.LoadedAt = time.Now()
		}
		return data, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
