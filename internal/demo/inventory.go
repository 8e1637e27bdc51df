package demo

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
)

var ErrUnknownItem = errors.New("unknown item")

// UI actions handled and sent by the shop.
const (
	ActionShopBuy    = "shop:buy"
	ActionShopResult = "shop:result"
)

// PlayerUI pushes UI messages to one player.
type PlayerUI interface {
	SendUI(player models.PlayerID, msg nui.Message)
}

// Catalog maps item names to prices.
type Catalog map[string]int64

func DefaultCatalog() Catalog {
	return Catalog{
		"bread": 5,
		"water": 2,
		"phone": 250,
	}
}

type ShopRequest struct {
	Item string `json:"item"`
}

type ShopResult struct {
	Item    string `json:"item"`
	OK      bool   `json:"ok"`
	Balance int64  `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// Inventory sells catalog items against the Economy balance. It depends on
// Economy being registered before it.
type Inventory struct {
	module.Base

	ui      PlayerUI
	catalog Catalog
	economy *Economy

	mu    sync.Mutex
	items map[models.PlayerID]map[string]int
}

func NewInventory(ui PlayerUI, catalog Catalog) module.Factory[*Inventory] {
	return func(host module.Host) (*Inventory, error) {
		if len(catalog) == 0 {
			catalog = DefaultCatalog()
		}
		return &Inventory{
			Base:    module.NewBase[Inventory](host),
			ui:      ui,
			catalog: catalog,
			items:   make(map[models.PlayerID]map[string]int),
		}, nil
	}
}

func (i *Inventory) OnModuleInitialized() error {
	economy, err := module.Get[*Economy](i.Host().Modules())
	if err != nil {
		return err
	}
	i.economy = economy
	return nil
}

func (i *Inventory) OnPlayerDropped(ev lifecycle.PlayerDropped) error {
	i.mu.Lock()
	delete(i.items, ev.Player.ID)
	i.mu.Unlock()
	return nil
}

func (i *Inventory) OnUIRequest(ev lifecycle.UIRequest) error {
	if ev.Message.Action != ActionShopBuy {
		return nil
	}
	var req ShopRequest
	if err := ev.Message.Bind(&req); err != nil {
		return err
	}

	result := ShopResult{Item: req.Item, OK: true}
	balance, err := i.Buy(ev.Player, req.Item)
	if err != nil {
		result.OK = false
		result.Error = err.Error()
	}
	result.Balance = balance
	if i.ui != nil {
		i.ui.SendUI(ev.Player, nui.New(ActionShopResult, result))
	}
	return nil
}

// Buy charges the item price and adds one item. It returns the balance after
// the attempt.
func (i *Inventory) Buy(player models.PlayerID, item string) (int64, error) {
	if i.economy == nil {
		return 0, fmt.Errorf("%w: %s", module.ErrModuleNotFound, module.TypeName[Economy]())
	}
	price, ok := i.catalog[item]
	if !ok {
		b, _ := i.economy.Balance(player)
		return b, fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	balance, err := i.economy.Withdraw(player, price)
	if err != nil {
		return balance, err
	}

	i.mu.Lock()
	bag, ok := i.items[player]
	if !ok {
		bag = make(map[string]int)
		i.items[player] = bag
	}
	bag[item]++
	i.mu.Unlock()

	i.Log("Item bought", log.String("player", player.String()), log.String("item", item), log.Int64("balance", balance))
	return balance, nil
}

// Items returns the sorted item names held by player and their counts.
func (i *Inventory) Items(player models.PlayerID) ([]string, map[string]int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	bag := i.items[player]
	names := make([]string, 0, len(bag))
	counts := make(map[string]int, len(bag))
	for name, n := range bag {
		names = append(names, name)
		counts[name] = n
	}
	sort.Strings(names)
	return names, counts
}
