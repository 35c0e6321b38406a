// Package loader broadcasts application-wide loading progress to any number of
// subscribers. A Loader is created at startup and closed at shutdown; nothing
// about it is package-global
package loader

import (
	"log/slog"
	"sync"
)

// State is a snapshot of loading progress
type State struct {
	Active   bool
	Progress float64 // 0-100
	Message  string
	Err      error
}

// Loader is a process-wide broadcast of loading state
type Loader struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
	closed bool
	logger *slog.Logger
}

// New creates a loader in the idle state
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		subs:   make(map[int]chan State),
		logger: logger,
	}
}

// Start marks loading as active with progress reset to zero
func (l *Loader) Start(message string) {
	l.publish(State{Active: true, Message: message})
}

// SetProgress updates progress, clamped to 0-100. An empty message keeps the previous one
func (l *Loader) SetProgress(percent float64, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	next.Active = true
	next.Progress = percent
	if message != "" {
		next.Message = message
	}
	next.Err = nil
	l.publishLocked(next)
}

// Finish marks loading as complete
func (l *Loader) Finish() {
	l.publish(State{Progress: 100})
}

// Fail ends loading with an error
func (l *Loader) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishLocked(State{Message: l.state.Message, Err: err})
}

// State returns the current state
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe returns a channel that receives every state change and a cancel
// function that releases it. The channel holds only the latest undelivered state
func (l *Loader) Subscribe() (<-chan State, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan State, 1)
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	ch <- l.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

// Close releases every subscriber. Further updates are ignored
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
}

func (l *Loader) publish(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishLocked(s)
}

func (l *Loader) publishLocked(s State) {
	if l.closed {
		return
	}
	l.state = s
	for _, ch := range l.subs {
		// Drop the stale value so slow subscribers always see the latest state
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
	l.logger.Debug("loader state", "active", s.Active, "progress", s.Progress, "message", s.Message)
}
