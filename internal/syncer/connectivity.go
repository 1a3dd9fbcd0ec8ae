package syncer

import "sync"

// Connectivity is the explicit online/offline input to the sync worker.
// Callers report transitions; the worker listens on Changes for restores.
type Connectivity struct {
	mu       sync.RWMutex
	online   bool
	restored chan struct{}
}

func NewConnectivity(online bool) *Connectivity {
	return &Connectivity{
		online:   online,
		restored: make(chan struct{}, 1),
	}
}

func (c *Connectivity) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Restored marks the device online. An offline to online transition wakes
// the sync loop; repeated calls while already online do not.
func (c *Connectivity) Restored() bool {
	c.mu.Lock()
	wasOnline := c.online
	c.online = true
	c.mu.Unlock()

	if wasOnline {
		return false
	}
	select {
	case c.restored <- struct{}{}:
	default:
	}
	return true
}

func (c *Connectivity) Lost() {
	c.mu.Lock()
	c.online = false
	c.mu.Unlock()
}

// Set reports the current state, as from a periodic connectivity check.
func (c *Connectivity) Set(online bool) bool {
	if online {
		return c.Restored()
	}
	c.Lost()
	return false
}

// Changes delivers one signal per offline to online transition. Signals that
// arrive while a previous one is unconsumed are coalesced.
func (c *Connectivity) Changes() <-chan struct{} {
	return c.restored
}
