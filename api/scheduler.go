/*
scheduler.go - Periodic notification scheduler

PURPOSE:
  Periodically runs the notification checks (weekly reminder, long-day
  anomalies, zero-hour weeks) across every user, the same sweep the
  POST /api/notifications/run endpoint triggers manually.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Every check is idempotent: the dedup key on each notification
    means repeated sweeps never duplicate an alert
  - Errors on one user do not stop the sweep for the rest

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewNotificationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunNotifications endpoint (manual sweep)
  - lieu/detector.go: The checks themselves
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// NotificationScheduler runs the periodic notification sweep.
type NotificationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNotificationScheduler creates a new scheduler.
func NewNotificationScheduler(handler *Handler) *NotificationScheduler {
	return &NotificationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ns *NotificationScheduler) Start() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !ns.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ns.ticker = time.NewTicker(ns.CheckInterval)
	ns.wg.Add(1)

	go ns.run()

	log.Printf("[Scheduler] Started with check interval: %v", ns.CheckInterval)
}

// Stop stops the scheduler.
func (ns *NotificationScheduler) Stop() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.ticker != nil {
		ns.ticker.Stop()
		close(ns.stop)
		ns.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ns *NotificationScheduler) run() {
	defer ns.wg.Done()

	// Run immediately on start
	ns.sweep()

	for {
		select {
		case <-ns.ticker.C:
			ns.sweep()
		case <-ns.stop:
			return
		}
	}
}

func (ns *NotificationScheduler) sweep() {
	ctx := context.Background()
	now := ns.Handler.Now()

	log.Printf("[Scheduler] Running notification checks at %v", now)

	users, err := ns.Handler.Users.ListUsers(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing users: %v", err)
		return
	}

	created := 0
	for _, u := range users {
		n, err := ns.Handler.Service.GenerateNotifications(ctx, u.ID, now)
		if err != nil {
			log.Printf("[Scheduler] Error checking user %s: %v", u.ID, err)
			continue
		}
		created += n
	}

	if created > 0 {
		log.Printf("[Scheduler] Completed: %d users checked, %d notifications created", len(users), created)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ns *NotificationScheduler) RunNow() {
	ns.sweep()
}
