// Package cleanup deletes snapshots past their retention window on a fixed
// schedule, keeping stored diagnostics short-lived.
package cleanup

import (
	"context"
	"sync"
	"time"

	"snapshot-server/database"

	"github.com/apex/log"
)

// Cleaner periodically deletes snapshots older than the retention window.
type Cleaner struct {
	logs      *database.LogsService
	retention time.Duration
	interval  time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCleaner creates a Cleaner deleting snapshots older than retention,
// checked every interval.
func NewCleaner(logs *database.LogsService, retention, interval time.Duration) *Cleaner {
	return &Cleaner{
		logs:      logs,
		retention: retention,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the cleanup loop. An immediate pass runs at startup so a
// restarted process does not wait a full interval to enforce retention.
func (c *Cleaner) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.runOnce()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.runOnce()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for it to finish.
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

func (c *Cleaner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-c.retention)
	deleted, err := c.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Errorf("Error during scheduled log cleanup: %v", err)
		return
	}
	if deleted > 0 {
		log.Infof("Cleaned up %d old server log(s) older than %v", deleted, c.retention)
	}
}
