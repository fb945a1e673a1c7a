package utils

import "sync"

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// UserAgents hands out user agent strings in round-robin order.
type UserAgents struct {
	mu     sync.Mutex
	agents []string
	index  int
}

// NewUserAgents returns a rotator over agents, or over a built-in desktop set when none are given.
func NewUserAgents(agents ...string) *UserAgents {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &UserAgents{agents: agents}
}

// Next returns the next user agent, wrapping around at the end of the list.
func (u *UserAgents) Next() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	agent := u.agents[u.index]
	u.index = (u.index + 1) % len(u.agents)
	return agent
}
