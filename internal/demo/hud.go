package demo

import (
	"time"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

const (
	ActionHUDShow    = "hud:show"
	ActionHUDHide    = "hud:hide"
	ActionHUDClose   = "hud:close"
	ActionHUDUpdate  = "hud:update"
	ActionHUDPlayers = "hud:players"
)

// HUDRefreshInterval is how often the player count is re-checked.
const HUDRefreshInterval = 5 * time.Second

// LocalUI is the client surface the HUD draws through.
type LocalUI interface {
	SendUI(msg nui.Message)
	LocalPlayer() models.PlayerID
	Players() []models.Player
}

type HUDState struct {
	Dead bool `json:"dead"`
}

type HUDPlayers struct {
	Count int `json:"count"`
}

// HUD shows the local player's overlay and keeps it in sync with deaths and
// the player count.
type HUD struct {
	module.Base

	ui      LocalUI
	visible bool
	players int
	refresh *scheduler.Tick
}

func NewHUD(ui LocalUI) module.Factory[*HUD] {
	return func(host module.Host) (*HUD, error) {
		return &HUD{Base: module.NewBase[HUD](host), ui: ui, players: -1}, nil
	}
}

func (h *HUD) OnModuleInitialized() error {
	h.visible = true
	h.ui.SendUI(nui.New(ActionHUDShow, nil))
	h.refresh = h.Script().AddTick("hud.players", h.refreshPlayers, HUDRefreshInterval)
	return nil
}

func (h *HUD) OnResourceStop(lifecycle.ResourceStop) error {
	h.Script().RemoveTick(h.refresh)
	h.refresh = nil
	return nil
}

func (h *HUD) OnPlayerDied(ev lifecycle.PlayerDied) error {
	if ev.Player.ID == h.ui.LocalPlayer() {
		h.ui.SendUI(nui.New(ActionHUDUpdate, HUDState{Dead: true}))
	}
	return nil
}

func (h *HUD) OnPlayerResurrected(ev lifecycle.PlayerResurrected) error {
	if ev.Player.ID == h.ui.LocalPlayer() {
		h.ui.SendUI(nui.New(ActionHUDUpdate, HUDState{Dead: false}))
	}
	return nil
}

func (h *HUD) OnUIRequest(ev lifecycle.UIRequest) error {
	if ev.Message.Action == ActionHUDClose && h.visible {
		h.visible = false
		h.ui.SendUI(nui.New(ActionHUDHide, nil))
	}
	return nil
}

func (h *HUD) Visible() bool {
	return h.visible
}

func (h *HUD) refreshPlayers() error {
	n := len(h.ui.Players())
	if n == h.players {
		return nil
	}
	h.players = n
	h.ui.SendUI(nui.New(ActionHUDPlayers, HUDPlayers{Count: n}))
	return nil
}
