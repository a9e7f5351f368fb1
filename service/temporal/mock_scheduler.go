package temporal

import (
	"context"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	created   bool
	interval  time.Duration
	olderThan time.Duration
	createErr error
	deleteErr error
}

// NewMockScheduler creates a new mock scheduler for testing.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// CreateSweepSchedule records the schedule parameters.
func (m *MockScheduler) CreateSweepSchedule(_ context.Context, interval, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = true
	m.interval = interval
	m.olderThan = olderThan
	return nil
}

// DeleteSweepSchedule clears the recorded schedule.
func (m *MockScheduler) DeleteSweepSchedule(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.created = false
	return nil
}

// ScheduleExists reports whether the sweep schedule is currently created.
func (m *MockScheduler) ScheduleExists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// ScheduleParams returns the recorded interval and eviction window.
func (m *MockScheduler) ScheduleParams() (time.Duration, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval, m.olderThan
}

// SetCreateError configures the mock to fail CreateSweepSchedule.
func (m *MockScheduler) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// SetDeleteError configures the mock to fail DeleteSweepSchedule.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}
