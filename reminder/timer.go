package reminder

import (
	"context"
	"sync"
	"time"
)

// Timer is an in process Scheduler. It keeps one timer and calls fire when the reminder is due.
// Scheduling a new reminder stops the previous one.
type Timer struct {
	mux   sync.Mutex
	timer *time.Timer
	now   func() time.Time
	fire  func(Reminder)
}

// NewTimer creates a Timer calling fire when a reminder is due.
func NewTimer(fire func(Reminder)) *Timer {
	return &Timer{now: time.Now, fire: fire}
}

// Schedule replaces the pending reminder. A reminder in the past fires immediately.
func (t *Timer) Schedule(_ context.Context, r Reminder) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(r.At.Sub(t.now()), func() {
		t.fire(r)
	})
	return nil
}

// Stop stops the pending reminder.
func (t *Timer) Stop() {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
