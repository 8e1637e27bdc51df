package demo

import (
	"github.com/zeusync/resourcekit/internal/client"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/server"
)

// RegisterServer adds the server-side demo modules. Economy goes first so
// Inventory finds it when it initializes.
func RegisterServer(s *server.Server) error {
	if err := module.Add(s.Modules(), NewEconomy); err != nil {
		return err
	}
	if err := module.Add(s.Modules(), NewInventory(s, nil)); err != nil {
		return err
	}
	return module.Add(s.Modules(), NewPresence(s))
}

// RegisterClient adds the client-side demo modules.
func RegisterClient(c *client.Client) error {
	return module.Add(c.Modules(), NewHUD(c))
}
