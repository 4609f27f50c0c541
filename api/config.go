// Package api provides the HTTP surface for thread appends, recent-context
// reads, and durable memory access.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// DefaultRecentLimit applies when a recent-context read names no limit.
	DefaultRecentLimit int

	// DefaultSearchLimit applies when a search names no limit.
	DefaultSearchLimit int
}

func (c *Config) applyDefaults() {
	if c.DefaultRecentLimit == 0 {
		c.DefaultRecentLimit = 50
	}
	if c.DefaultSearchLimit == 0 {
		c.DefaultSearchLimit = 10
	}
}
