package service

import (
	"context"
	"sync"
)

// LocalCallbackLock is the single-instance callback lock used when no Redis
// is configured.
type LocalCallbackLock struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLocalCallbackLock() *LocalCallbackLock {
	return &LocalCallbackLock{inFlight: make(map[string]struct{})}
}

func (l *LocalCallbackLock) Acquire(_ context.Context, reference string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inFlight[reference]; busy {
		return nil, false, nil
	}
	l.inFlight[reference] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inFlight, reference)
			l.mu.Unlock()
		})
	}, true, nil
}
