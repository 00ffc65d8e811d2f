// Package space provides the storage manager that opens and memoizes
// Replica handles by space principal, the way the teacher's StateStore
// holds a single pooled Postgres handle per process — generalized here to
// one handle per space, opened lazily on first use.
package space

import (
	"fmt"
	"sync"

	"github.com/evalgo/reactive-runtime/internal/replica"
	"github.com/sirupsen/logrus"
)

// Opener constructs a Replica for a given space principal on first use.
type Opener func(space string) (replica.Replica, error)

// Manager opens replicas by space and caches them for the process
// lifetime.
type Manager struct {
	mu       sync.Mutex
	opener   Opener
	replicas map[string]replica.Replica
	log      *logrus.Entry
	notifier Notifier
}

// New creates a Manager that uses opener to construct a Replica the first
// time a given space is requested.
func New(opener Opener, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		opener:   opener,
		replicas: map[string]replica.Replica{},
		log:      log,
	}
}

// Open returns the Replica for space, opening and caching it if this is
// the first request for that space.
func (m *Manager) Open(space string) (replica.Replica, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.replicas[space]; ok {
		return r, nil
	}

	r, err := m.opener(space)
	if err != nil {
		return nil, fmt.Errorf("open replica for space %q: %w", space, err)
	}
	m.replicas[space] = r
	m.log.WithField("space", space).Debug("opened replica")
	return r, nil
}

// CloseAll closes every replica this Manager has opened. The first error
// is returned; no error stops the remaining closes.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for space, r := range m.replicas {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close replica for space %q: %w", space, err)
		}
	}
	return firstErr
}
