package screen

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultCooldown is the number of one-second ticks before a code can be resent
const DefaultCooldown = 30

// CooldownState is a snapshot of the resend countdown
type CooldownState struct {
	Active    bool `json:"active"`
	Remaining int  `json:"remaining"`
}

// Cooldown counts down one tick per second while active. When it reaches
// zero it deactivates and the counter resets to the full length.
type Cooldown struct {
	clock clockwork.Clock
	total int

	mu        sync.Mutex
	active    bool
	remaining int
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewCooldown creates an inactive cooldown of total ticks
func NewCooldown(clock clockwork.Clock, total int) *Cooldown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if total <= 0 {
		total = DefaultCooldown
	}
	return &Cooldown{clock: clock, total: total, remaining: total}
}

// Start (re)arms the countdown at full length and runs the ticker if needed
func (c *Cooldown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.remaining = c.total
	if c.done != nil {
		return
	}

	done := make(chan struct{})
	c.done = done
	ticker := c.clock.NewTicker(time.Second)
	c.wg.Add(1)
	go c.run(ticker, done)
}

func (c *Cooldown) run(ticker clockwork.Ticker, done chan struct{}) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			if c.done != done {
				c.mu.Unlock()
				return
			}
			c.tickLocked()
			finished := !c.active
			if finished {
				c.done = nil
			}
			c.mu.Unlock()
			if finished {
				return
			}
		}
	}
}

// Tick advances the countdown by one step
func (c *Cooldown) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked()
}

func (c *Cooldown) tickLocked() {
	if !c.active {
		return
	}
	c.remaining--
	if c.remaining <= 0 {
		c.active = false
		c.remaining = c.total
	}
}

// Stop halts the ticker and waits for it to exit. The countdown state is kept.
func (c *Cooldown) Stop() {
	c.mu.Lock()
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Snapshot returns the current countdown state
func (c *Cooldown) Snapshot() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CooldownState{Active: c.active, Remaining: c.remaining}
}
