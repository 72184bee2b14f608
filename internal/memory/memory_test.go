package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testMonitor() *Monitor {
	return NewMonitor(Config{
		MemoryLimitBytes:  1000,
		ResumeWaterMark:   0.5,
		CriticalWaterMark: 0.9,
		CheckInterval:     time.Hour,
	})
}

func TestMonitorObserve(t *testing.T) {
	m := testMonitor()

	tests := []struct {
		name       string
		alloc      uint64
		wantPaused bool
	}{
		{"below resume", 100, false},
		{"between marks stays running", 700, false},
		{"critical pauses", 950, true},
		{"between marks stays paused", 700, true},
		{"below resume resumes", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.observe(tt.alloc)
			if got := m.IsPaused(); got != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", got, tt.wantPaused)
			}
		})
	}

	if got := m.Usage(); got != 0.4 {
		t.Errorf("Usage() = %v, want 0.4", got)
	}
}

func TestMonitorWait_NotPaused(t *testing.T) {
	m := testMonitor()
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestMonitorWait_ResumesOnRecovery(t *testing.T) {
	m := testMonitor()
	m.observe(950)

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.observe(100)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after recovery")
	}
}

func TestMonitorWait_ContextCancelled(t *testing.T) {
	m := testMonitor()
	m.observe(950)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestMonitorWait_StopReleases(t *testing.T) {
	m := testMonitor()
	m.observe(950)
	m.Stop()
	m.Stop()

	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() after Stop = %v, want nil", err)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	m.Start()
	m.Stop()

	if m.IsPaused() {
		t.Error("nil monitor should not be paused")
	}
	if m.Usage() != 0 {
		t.Error("nil monitor usage should be 0")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("nil monitor Wait() = %v", err)
	}
}

func TestMonitorStartStop(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1 << 40,
		ResumeWaterMark:   0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.Start()
	time.Sleep(40 * time.Millisecond)
	m.Stop()

	if m.IsPaused() {
		t.Error("monitor with a huge limit should not pause")
	}
}
