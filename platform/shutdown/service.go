package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rohanthewiz/logger"
)

const gracePeriod = 15 * time.Second

// HookFunc releases one resource; it should return within grace.
type HookFunc func(grace time.Duration) error

type hook struct {
	name string
	fn   HookFunc
}

type shutdownHooks struct {
	hooks []hook
	lock  sync.Mutex
}

var registry shutdownHooks

// RegisterHook adds fn to the hooks fired on shutdown.
func RegisterHook(name string, fn HookFunc) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	registry.hooks = append(registry.hooks, hook{name: name, fn: fn})
	logger.Debug("Registered shutdown hook", "name", name, "count", len(registry.hooks))
}

// InitShutdownService waits for SIGINT or SIGTERM in the background, fires all
// hooks and closes done once they completed or the grace period ran out.
func InitShutdownService(done chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)

		sig := <-sigChan
		signal.Stop(sigChan)
		logger.Info("Received shutdown signal", "signal", sig.String())

		Shutdown(gracePeriod)
	}()
}

// Shutdown marks the process as shutting down and fires every registered hook
// concurrently, waiting at most grace. It reports whether all hooks finished in time.
func Shutdown(grace time.Duration) bool {
	setShutdown()

	registry.lock.Lock()
	hooks := append([]hook(nil), registry.hooks...)
	registry.lock.Unlock()

	logger.Info("Running shutdown hooks", "count", len(hooks), "grace", grace.String())

	var wg sync.WaitGroup
	for _, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.fn(grace); err != nil {
				logger.LogErr(err, "shutdown hook failed", "name", h.name)
				return
			}
			logger.Debug("Shutdown hook completed", "name", h.name)
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		logger.Info("All shutdown hooks completed")
		return true
	case <-time.After(grace):
		logger.Warn("Shutdown hooks timed out", "grace", grace.String())
		return false
	}
}
