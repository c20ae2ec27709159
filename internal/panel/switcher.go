// Package panel adapts the bootstrap presentation boundary to a local
// HTTP API that the user interface polls.
package panel

import (
	"sync"
	"time"

	"github.com/leap-se/bitmask-client/internal/bootstrap"
	"go.uber.org/zap"
)

// Snapshot is the visible state of the application.
type Snapshot struct {
	Panel     bootstrap.Panel
	Props     bootstrap.Properties
	Err       error
	UpdatedAt time.Time
}

// Switcher records which panel is shown and the last error. It implements
// bootstrap.Presenter and is safe for concurrent use.
type Switcher struct {
	mu     sync.RWMutex
	cur    Snapshot
	subs   map[chan Snapshot]struct{}
	logger *zap.Logger
}

// NewSwitcher creates a Switcher with no panel shown.
func NewSwitcher(logger *zap.Logger) *Switcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Switcher{subs: make(map[chan Snapshot]struct{}), logger: logger}
}

// Show implements bootstrap.Presenter.
func (s *Switcher) Show(panel bootstrap.Panel, props bootstrap.Properties) {
	s.mu.Lock()
	s.cur.Panel = panel
	s.cur.Props = props
	s.cur.UpdatedAt = time.Now().UTC()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("panel shown", zap.String("panel", string(panel)))
}

// ShowError implements bootstrap.Presenter. The current panel is kept.
func (s *Switcher) ShowError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.cur.Err = err
	s.cur.UpdatedAt = time.Now().UTC()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Warn("error shown", zap.Error(err))
}

// HideError clears the last error.
func (s *Switcher) HideError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Err = nil
	s.cur.UpdatedAt = time.Now().UTC()
	s.publishLocked()
}

// Snapshot returns the current visible state.
func (s *Switcher) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. A slow reader only sees the most recent one. Call cancel to stop.
func (s *Switcher) Subscribe() (updates <-chan Snapshot, cancel func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// publishLocked must be called with s.mu held for writing.
func (s *Switcher) publishLocked() {
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.cur
	}
}
