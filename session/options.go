package session

import "time"

// Option configures the Manager.
type Option func(*managerConfig)

type managerConfig struct {
	idleTimeout     time.Duration
	sweepInterval   time.Duration
	queueCapacity   int
	callTimeout     time.Duration
	imageOutput     bool
	scratchRoot     string
	startupTimeout  time.Duration
	recreateOnCrash bool
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		idleTimeout:   15 * time.Minute,
		sweepInterval: time.Minute,
		queueCapacity: 16,
		imageOutput:   true,
	}
}

// WithIdleTimeout sets how long a session may sit unused before the
// background sweep evicts it. Zero disables eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.idleTimeout = d
	}
}

// WithSweepInterval sets how often the eviction sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithQueueCapacity bounds how many calls may wait per session before
// submissions are rejected as busy.
func WithQueueCapacity(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.queueCapacity = n
		}
	}
}

// WithCallTimeout bounds each call's wait for a result when the caller's
// context carries no deadline of its own. Zero means wait indefinitely.
func WithCallTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.callTimeout = d
	}
}

// WithImageOutput toggles the in-interpreter image helper and plot capture.
func WithImageOutput(enabled bool) Option {
	return func(c *managerConfig) {
		c.imageOutput = enabled
	}
}

// WithScratchRoot sets the directory under which per-session scratch
// directories are created. Empty means the system temp dir.
func WithScratchRoot(dir string) Option {
	return func(c *managerConfig) {
		c.scratchRoot = dir
	}
}

// WithStartupTimeout bounds the wait for a new interpreter's ready
// handshake.
func WithStartupTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.startupTimeout = d
	}
}

// WithRecreateOnCrash makes a session replace its interpreter after a crash
// instead of refusing further work until recreated.
func WithRecreateOnCrash(enabled bool) Option {
	return func(c *managerConfig) {
		c.recreateOnCrash = enabled
	}
}
