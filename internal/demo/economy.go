// Package demo holds sample modules wired into the resource binaries.
package demo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
)

var (
	ErrNoAccount         = errors.New("player has no account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// StartingBalance is credited to every joining player.
const StartingBalance int64 = 500

// Economy keeps a balance per connected player and exports it to other
// resources as "balance" and "deposit".
type Economy struct {
	module.Base

	mu       sync.Mutex
	accounts map[models.PlayerID]int64
}

func NewEconomy(host module.Host) (*Economy, error) {
	return &Economy{
		Base:     module.NewBase[Economy](host),
		accounts: make(map[models.PlayerID]int64),
	}, nil
}

func (e *Economy) OnModuleInitialized() error {
	if err := e.Script().SetExport("balance", e.exportBalance); err != nil {
		return err
	}
	return e.Script().SetExport("deposit", e.exportDeposit)
}

func (e *Economy) OnPlayerJoining(ev lifecycle.PlayerJoining) error {
	e.mu.Lock()
	e.accounts[ev.Player.ID] = StartingBalance
	e.mu.Unlock()
	e.Log("Account opened", log.String("player", ev.Player.Name), log.Int64("balance", StartingBalance))
	return nil
}

func (e *Economy) OnPlayerDropped(ev lifecycle.PlayerDropped) error {
	e.mu.Lock()
	delete(e.accounts, ev.Player.ID)
	e.mu.Unlock()
	return nil
}

func (e *Economy) Balance(id models.PlayerID) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.accounts[id]
	return b, ok
}

// Deposit credits amount and returns the new balance.
func (e *Economy) Deposit(id models.PlayerID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.accounts[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoAccount, id)
	}
	b += amount
	e.accounts[id] = b
	return b, nil
}

// Withdraw debits amount and returns the new balance. The balance never goes
// below zero.
func (e *Economy) Withdraw(id models.PlayerID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.accounts[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoAccount, id)
	}
	if b < amount {
		return b, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, b, amount)
	}
	b -= amount
	e.accounts[id] = b
	return b, nil
}

func (e *Economy) exportBalance(args ...any) (any, error) {
	id, err := playerArg(args, 0)
	if err != nil {
		return nil, err
	}
	b, ok := e.Balance(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAccount, id)
	}
	return b, nil
}

func (e *Economy) exportDeposit(args ...any) (any, error) {
	id, err := playerArg(args, 0)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, errors.New("missing amount")
	}
	amount, ok := args[1].(int64)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected %T", args[1])
	}
	return e.Deposit(id, amount)
}

func playerArg(args []any, i int) (models.PlayerID, error) {
	if len(args) <= i {
		return models.NoPlayer, errors.New("missing player")
	}
	switch v := args[i].(type) {
	case models.PlayerID:
		return v, nil
	case int:
		return models.PlayerID(v), nil
	case string:
		return models.ParsePlayerID(v)
	}
	return models.NoPlayer, fmt.Errorf("player: unexpected %T", args[i])
}
