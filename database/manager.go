package database

import (
	"context"
	"sync"
)

// Manager initializes a Database at most once and publishes it to callers.
// The composition root owns the Manager and passes it to whatever serves
// commands; nothing in this package keeps a package-level pool.
type Manager struct {
	opts Options

	once  sync.Once
	ready chan struct{}
	db    *Database
	err   error
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:  opts,
		ready: make(chan struct{}),
	}
}

// Initialize opens the database on the first call. Later calls, including
// concurrent ones, block until that first attempt finishes and return its
// result; a failed attempt is not retried.
func (m *Manager) Initialize(ctx context.Context) (*Database, error) {
	m.once.Do(func() {
		defer close(m.ready)
		m.db, m.err = Open(ctx, m.opts)
	})
	<-m.ready
	return m.db, m.err
}

// Start runs Initialize on a new goroutine and returns immediately. onError
// is called from that goroutine if initialization fails.
func (m *Manager) Start(ctx context.Context, onError func(error)) {
	go func() {
		if _, err := m.Initialize(ctx); err != nil && onError != nil {
			onError(err)
		}
	}()
}

// Ready is closed once initialization has finished, successfully or not.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Err returns the initialization error, or nil if initialization succeeded
// or has not finished.
func (m *Manager) Err() error {
	select {
	case <-m.ready:
		return m.err
	default:
		return nil
	}
}

// Database returns the initialized database. Calling it before a successful
// Initialize is a programming error and panics.
func (m *Manager) Database() *Database {
	select {
	case <-m.ready:
	default:
		panic("database: Database called before initialization completed")
	}
	if m.err != nil {
		panic("database: Database called after initialization failed: " + m.err.Error())
	}
	return m.db
}

// Close closes the database if it was opened.
func (m *Manager) Close() error {
	select {
	case <-m.ready:
	default:
		return nil
	}
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
