// Package shutdown coordinates a graceful stop of the workshop server.
// Components register hooks that run concurrently when a termination signal
// arrives, bounded by a grace period. The serve command registers one that
// cancels its task group; resources such as the database close as it unwinds.
package shutdown

import (
	"sync"
)

var (
	isShutdown bool
	mu         sync.RWMutex
)

// CheckShutdown reports whether a shutdown is in progress
func CheckShutdown() bool {
	mu.RLock()
	defer mu.RUnlock()
	return isShutdown
}

func setShutdown() {
	mu.Lock()
	isShutdown = true
	mu.Unlock()
}

// reset clears hooks and state; tests only.
func reset() {
	mu.Lock()
	isShutdown = false
	mu.Unlock()

	registry.lock.Lock()
	registry.hooks = nil
	registry.lock.Unlock()
}
