package cmd

import (
	"sync"
	"time"
)

// reloader runs its hooks once a burst of config file events settles. Editors
// tend to write a file in several steps, each one a separate event.
type reloader struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	hooks []func()

	// runs do not overlap
	runMu sync.Mutex
}

func newReloader(delay time.Duration) *reloader {
	return &reloader{delay: delay}
}

func (r *reloader) Add(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, hook)
}

// Trigger schedules the hooks, postponing an already scheduled run.
func (r *reloader) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.delay, r.Run)
}

// Run calls the hooks now.
func (r *reloader) Run() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	hooks := make([]func(), len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}
