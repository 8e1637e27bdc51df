package demo

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/resourcekit/internal/client"
	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/engine/sim"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
	"github.com/zeusync/resourcekit/internal/server"
)

type stack struct {
	server      *server.Server
	serverRT    *sim.Server
	client      *client.Client
	clientRT    *sim.Client
	clientClock *scheduler.ManualClock
	logs        *observer.ObservedLogs
	uiDelivered int
}

func newStack(t *testing.T) *stack {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.NewWithCore(core)
	ctx := context.Background()

	loop := protocol.NewLoopback()
	serverRT := sim.NewServer(sim.ServerOptions{
		Resource:  "demo",
		Scheduler: scheduler.New(scheduler.WithClock(scheduler.NewManualClock(time.Unix(0, 0))), scheduler.WithLogger(logger)),
		Transport: loop,
		Logger:    logger,
	})
	require.NoError(t, serverRT.Listen(ctx))
	srv, err := server.New(serverRT, server.DefaultConfig(), logger)
	require.NoError(t, err)
	require.NoError(t, RegisterServer(srv))

	clock := scheduler.NewManualClock(time.Unix(0, 0))
	clientRT := sim.NewClient(sim.ClientOptions{
		Resource:  "demo",
		Scheduler: scheduler.New(scheduler.WithClock(clock), scheduler.WithLogger(logger)),
		Transport: loop.Dial(),
		Logger:    logger,
	})
	_, err = clientRT.Connect(ctx, protocol.Hello{Name: "alice", Identifiers: []string{"license:abc"}})
	require.NoError(t, err)
	cl, err := client.New(clientRT, client.DefaultConfig(), logger)
	require.NoError(t, err)
	require.NoError(t, RegisterClient(cl))

	return &stack{
		server:      srv,
		serverRT:    serverRT,
		client:      cl,
		clientRT:    clientRT,
		clientClock: clock,
		logs:        logs,
	}
}

// settle alternates both workers until every relayed message was handled.
func (s *stack) settle() {
	for i := 0; i < 3; i++ {
		s.serverRT.Scheduler().Step()
		s.clientRT.Scheduler().Step()
	}
}

// ui returns the UI messages delivered since the previous call.
func (s *stack) ui(t *testing.T) []nui.Message {
	t.Helper()
	all := s.clientRT.UIMessages()
	fresh := all[s.uiDelivered:]
	s.uiDelivered = len(all)
	out := make([]nui.Message, len(fresh))
	for i, payload := range fresh {
		msg, err := nui.Decode([]byte(payload))
		require.NoError(t, err)
		out[i] = msg
	}
	return out
}

func actions(msgs []nui.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Action
	}
	return out
}

func TestJoinShowsHUDAndWelcome(t *testing.T) {
	s := newStack(t)
	s.settle()

	msgs := s.ui(t)
	assert.Equal(t, []string{ActionHUDShow, ActionPresenceWelcome, ActionHUDPlayers}, actions(msgs))

	var welcome Welcome
	require.NoError(t, msgs[1].Bind(&welcome))
	assert.Equal(t, Welcome{Name: "alice", Online: 1}, welcome)

	var players HUDPlayers
	require.NoError(t, msgs[2].Bind(&players))
	assert.Equal(t, 1, players.Count)

	economy := module.MustGet[*Economy](s.server.Modules())
	balance, ok := economy.Balance(1)
	require.True(t, ok)
	assert.Equal(t, StartingBalance, balance)
	assert.Equal(t, 1, module.MustGet[*Presence](s.server.Modules()).Online())

	// Inventory found Economy when it initialized.
	assert.Zero(t, s.logs.FilterMessage("in OnModuleInitialized").Len())
}

func TestShopRoundTrip(t *testing.T) {
	s := newStack(t)
	s.settle()
	s.ui(t)

	buy := func(item string) ShopResult {
		require.NoError(t, s.clientRT.SubmitUI(nui.New(ActionShopBuy, ShopRequest{Item: item})))
		s.settle()
		msgs := s.ui(t)
		require.Len(t, msgs, 1)
		require.Equal(t, ActionShopResult, msgs[0].Action)
		var result ShopResult
		require.NoError(t, msgs[0].Bind(&result))
		return result
	}

	assert.Equal(t, ShopResult{Item: "phone", OK: true, Balance: 250}, buy("phone"))
	assert.Equal(t, ShopResult{Item: "phone", OK: true, Balance: 0}, buy("phone"))

	broke := buy("bread")
	assert.False(t, broke.OK)
	assert.Contains(t, broke.Error, ErrInsufficientFunds.Error())

	unknown := buy("yacht")
	assert.False(t, unknown.OK)
	assert.Contains(t, unknown.Error, ErrUnknownItem.Error())

	names, counts := module.MustGet[*Inventory](s.server.Modules()).Items(1)
	assert.Equal(t, []string{"phone"}, names)
	assert.Equal(t, 2, counts["phone"])
}

func TestEconomyExports(t *testing.T) {
	s := newStack(t)
	s.settle()

	exports := s.server.Export("demo")
	balance, err := engine.CallAs[int64](exports, "balance", models.PlayerID(1))
	require.NoError(t, err)
	assert.Equal(t, StartingBalance, balance)

	balance, err = engine.CallAs[int64](exports, "deposit", "1", int64(25))
	require.NoError(t, err)
	assert.Equal(t, StartingBalance+25, balance)

	_, err = exports.Call("balance", 7)
	assert.ErrorIs(t, err, ErrNoAccount)
	_, err = exports.Call("deposit", 1, int64(-5))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDisconnectClosesAccount(t *testing.T) {
	s := newStack(t)
	s.settle()

	require.NoError(t, s.clientRT.Close())
	s.settle()

	_, ok := module.MustGet[*Economy](s.server.Modules()).Balance(1)
	assert.False(t, ok)
	assert.Zero(t, module.MustGet[*Presence](s.server.Modules()).Online())
}

func TestHUD(t *testing.T) {
	s := newStack(t)
	s.settle()
	s.ui(t)
	hud := module.MustGet[*HUD](s.client.Modules())
	require.True(t, hud.Visible())

	s.client.SetDeathWatcher(true)
	s.clientRT.SetDead(1, true)
	s.clientRT.Scheduler().Step()
	msgs := s.ui(t)
	require.Len(t, msgs, 1)
	var state HUDState
	require.NoError(t, msgs[0].Bind(&state))
	assert.True(t, state.Dead)

	s.clientRT.AddPlayer(models.Player{ID: 2, Name: "bob"})
	s.clientClock.Advance(HUDRefreshInterval)
	s.clientRT.Scheduler().Step()
	msgs = s.ui(t)
	require.Len(t, msgs, 1)
	var players HUDPlayers
	require.NoError(t, msgs[0].Bind(&players))
	assert.Equal(t, 2, players.Count)

	require.NoError(t, s.clientRT.SubmitUI(nui.New(ActionHUDClose, nil)))
	require.NoError(t, s.clientRT.SubmitUI(nui.New(ActionHUDClose, nil)))
	assert.Equal(t, []string{ActionHUDHide}, actions(s.ui(t)))
	assert.False(t, hud.Visible())

	require.NoError(t, s.clientRT.StopResource())
	assert.Equal(t, 1, s.logs.FilterMessage("Removed Tick hud.players!").Len())
}

type recordingWorld struct {
	*server.Server
	sent []string
}

func (w *recordingWorld) SendUI(player models.PlayerID, msg nui.Message) {
	w.sent = append(w.sent, player.String()+":"+msg.Action)
}

func (w *recordingWorld) BroadcastUI(msg nui.Message) {
	w.sent = append(w.sent, "all:"+msg.Action)
}

func TestPresence(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.NewWithCore(core)
	rt := sim.NewServer(sim.ServerOptions{Resource: "demo", Logger: logger})
	srv, err := server.New(rt, server.DefaultConfig(), logger)
	require.NoError(t, err)

	world := &recordingWorld{Server: srv}
	require.NoError(t, module.Add(srv.Modules(), NewPresence(world)))
	p := module.MustGet[*Presence](srv.Modules())

	alice := rt.Connect(models.Player{Name: "alice", Identifiers: []string{"license:abc"}})
	bob := rt.Connect(models.Player{Name: "bob", Position: mgl64.Vec3{3, 4, 0}})
	rt.Connect(models.Player{Name: "carol", Position: mgl64.Vec3{100, 0, 0}})

	connecting := logs.FilterMessage("Player connecting").All()
	require.Len(t, connecting, 3)
	assert.Equal(t, "demo.Presence", connecting[0].LoggerName)
	assert.Equal(t, "license:abc", connecting[0].ContextMap()["license"])

	require.NoError(t, rt.ClientEvent(alice.ID, engine.ClientInitializedEvent("demo"), nil))
	assert.Equal(t, []string{alice.ID.String() + ":" + ActionPresenceWelcome}, world.sent)
	assert.Equal(t, 1, p.Online())

	nearby := p.Nearby(alice.ID, 10)
	require.Len(t, nearby, 1)
	assert.Equal(t, "bob", nearby[0].Name)
	assert.Nil(t, p.Nearby(999, 10))

	rt.EnterScope(bob.ID, alice.ID)
	assert.Equal(t, []models.PlayerID{bob.ID}, p.InScope(alice.ID))
	rt.LeaveScope(bob.ID, alice.ID)
	assert.Empty(t, p.InScope(alice.ID))

	rt.EnterScope(alice.ID, bob.ID)
	rt.Drop(bob.ID, "timeout")
	rt.Drop(alice.ID, "quit")
	assert.Equal(t, "all:"+ActionPresenceLeft, world.sent[len(world.sent)-1])
	assert.Len(t, world.sent, 2)
	assert.Zero(t, p.Online())
}

func TestInventoryWithoutEconomy(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.NewWithCore(core)
	rt := sim.NewServer(sim.ServerOptions{Resource: "demo", Logger: logger})
	srv, err := server.New(rt, server.DefaultConfig(), logger)
	require.NoError(t, err)

	require.NoError(t, module.Add(srv.Modules(), NewInventory(nil, Catalog{"bread": 5})))
	rt.Scheduler().Step()
	assert.Equal(t, 1, logs.FilterMessage("in OnModuleInitialized").Len())

	_, err = module.MustGet[*Inventory](srv.Modules()).Buy(1, "bread")
	assert.ErrorIs(t, err, module.ErrModuleNotFound)
}
