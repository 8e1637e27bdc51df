package client

import (
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
)

// SetDeathWatcher turns the death watcher on or off. Turning it off forgets
// every player seen dead, so no resurrection is reported for them later.
func (c *Client) SetDeathWatcher(enabled bool) {
	if enabled {
		if c.deathTick == nil {
			c.deathTick = c.AddTick("deathWatcher", c.watchDeaths, c.config.DeathWatchInterval)
		}
		return
	}
	if c.deathTick != nil {
		c.RemoveTick(c.deathTick)
		c.deathTick = nil
	}
	clear(c.dead)
}

func (c *Client) DeathWatcherEnabled() bool {
	return c.deathTick != nil
}

// watchDeaths diffs the players' death state against the last poll.
func (c *Client) watchDeaths() error {
	seen := make(map[models.PlayerID]struct{})
	for _, p := range c.runtime.Players() {
		seen[p.ID] = struct{}{}
		_, wasDead := c.dead[p.ID]
		switch {
		case p.Dead && !wasDead:
			c.dead[p.ID] = struct{}{}
			_ = c.Dispatch(lifecycle.PlayerDied{Player: p})
		case !p.Dead && wasDead:
			delete(c.dead, p.ID)
			_ = c.Dispatch(lifecycle.PlayerResurrected{Player: p})
		}
	}
	for id := range c.dead {
		if _, ok := seen[id]; !ok {
			delete(c.dead, id)
		}
	}
	return nil
}
