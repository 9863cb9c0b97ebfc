package session

import (
	"context"
	"time"
)

// Action is deferred session work, such as the post-scan reset.
type Action func()

// Scheduler runs actions after a delay.
type Scheduler interface {
	Schedule(delay time.Duration, action Action)
}

// TimerScheduler runs actions on runtime timers.
type TimerScheduler struct{}

// Schedule runs action after delay on its own goroutine.
func (TimerScheduler) Schedule(delay time.Duration, action Action) {
	if action == nil {
		return
	}
	if delay <= 0 {
		go action()
		return
	}
	time.AfterFunc(delay, action)
}

// Observer receives completed scans. Implementations must not block for long;
// they run on the submission goroutine.
type Observer interface {
	ScanCompleted(ctx context.Context, scan Scan)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, scan Scan)

// ScanCompleted calls f.
func (f ObserverFunc) ScanCompleted(ctx context.Context, scan Scan) { f(ctx, scan) }
