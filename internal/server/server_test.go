package server

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/engine/sim"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

type lobby struct {
	module.Base
	events []string
}

func newLobby(h module.Host) (*lobby, error) {
	return &lobby{Base: module.NewBase[lobby](h)}, nil
}

func (l *lobby) OnPlayerConnecting(ev lifecycle.PlayerConnecting) error {
	l.events = append(l.events, "connecting:"+ev.Player.Name)
	return nil
}

func (l *lobby) OnPlayerJoining(ev lifecycle.PlayerJoining) error {
	l.events = append(l.events, "joining:"+ev.Player.Name)
	return nil
}

func (l *lobby) OnPlayerClientInitialized(ev lifecycle.PlayerClientInitialized) error {
	l.events = append(l.events, "ready:"+ev.Player.Name)
	return nil
}

func (l *lobby) OnPlayerDropped(ev lifecycle.PlayerDropped) error {
	l.events = append(l.events, "dropped:"+ev.Player.Name+":"+ev.Reason)
	return nil
}

func (l *lobby) OnUIRequest(ev lifecycle.UIRequest) error {
	l.events = append(l.events, "ui:"+ev.Player.String()+":"+ev.Message.Action)
	return nil
}

func (l *lobby) OnEntityCreated(ev lifecycle.EntityCreated) error {
	l.events = append(l.events, "entity:"+ev.Entity.String())
	return nil
}

func (l *lobby) OnPlayerLeftScope(ev lifecycle.PlayerLeftScope) error {
	l.events = append(l.events, "left:"+ev.Player.Name+":"+ev.For.String())
	return nil
}

type fixture struct {
	server  *Server
	runtime *sim.Server
	loop    *protocol.LoopbackServer
	clock   *scheduler.ManualClock
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.NewWithCore(core)
	clock := scheduler.NewManualClock(time.Unix(0, 0))
	loop := protocol.NewLoopback()
	rt := sim.NewServer(sim.ServerOptions{
		Resource:  "demo",
		Scheduler: scheduler.New(scheduler.WithClock(clock), scheduler.WithLogger(logger)),
		Transport: loop,
		Logger:    logger,
	})
	require.NoError(t, rt.Listen(context.Background()))

	s, err := New(rt, config, logger)
	require.NoError(t, err)
	return &fixture{server: s, runtime: rt, loop: loop, clock: clock, logs: logs}
}

func (f *fixture) step(d time.Duration) {
	f.clock.Advance(d)
	f.runtime.Scheduler().Step()
}

func (f *fixture) dial(t *testing.T, name string, pushed *[]protocol.Envelope) (*protocol.LoopbackClient, protocol.Peer) {
	t.Helper()
	c := f.loop.Dial()
	peer, err := c.Connect(context.Background(), protocol.Hello{Name: name}, func(env protocol.Envelope) {
		*pushed = append(*pushed, env)
	})
	require.NoError(t, err)
	f.step(0)
	return c, peer
}

func TestDefaults(t *testing.T) {
	config := DefaultConfig()
	assert.True(t, config.GarbageCollector)
	assert.Equal(t, 60*time.Second, config.GCInterval)

	_, err := New(nil, config, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPlayerLifecycle(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, module.Add(f.server.Modules(), newLobby))
	l := module.MustGet[*lobby](f.server.Modules())

	var pushed []protocol.Envelope
	client, peer := f.dial(t, "alice", &pushed)

	env, err := protocol.NewEnvelope(engine.ClientInitializedEvent("demo"), nil)
	require.NoError(t, err)
	require.NoError(t, client.Send(env))
	f.step(0)

	require.NoError(t, client.Close())
	f.step(0)

	assert.Equal(t, []string{
		"connecting:alice",
		"joining:alice",
		"ready:alice",
		"dropped:alice:client closed",
	}, l.events)
	assert.Equal(t, protocol.PeerID(1), peer.ID)
}

func TestUIRequestFromClient(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, module.Add(f.server.Modules(), newLobby))
	l := module.MustGet[*lobby](f.server.Modules())

	var pushed []protocol.Envelope
	client, _ := f.dial(t, "alice", &pushed)

	env, err := protocol.NewEnvelope(engine.UIRequestEvent("demo"), nui.New("shop:buy", map[string]int{"item": 3}))
	require.NoError(t, err)
	require.NoError(t, client.Send(env))

	bad, err := protocol.NewEnvelope(engine.UIRequestEvent("demo"), map[string]int{"item": 3})
	require.NoError(t, err)
	require.NoError(t, client.Send(bad))
	f.step(0)

	assert.Contains(t, l.events, "ui:1:shop:buy")
	assert.Equal(t, 1, f.logs.FilterMessage("in onUIRequest").Len())
}

func TestUnknownSourceIsLogged(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, f.runtime.ClientEvent(99, engine.ClientInitializedEvent("demo"), nil))

	entries := f.logs.FilterMessage("in onPlayerClientInitialized").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "demo", entries[0].LoggerName)
}

func TestSendAndBroadcastUI(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	var alicePushed, bobPushed []protocol.Envelope
	_, alice := f.dial(t, "alice", &alicePushed)
	f.dial(t, "bob", &bobPushed)

	f.server.SendUI(models.PlayerID(alice.ID), nui.New("hud:update", map[string]int{"hp": 80}))
	require.Len(t, alicePushed, 1)
	assert.Empty(t, bobPushed)
	assert.Equal(t, engine.UIPushEvent("demo"), alicePushed[0].Event)
	assert.JSONEq(t, `{"action":"hud:update","data":{"hp":80}}`, string(alicePushed[0].Payload))

	f.server.BroadcastUI(nui.New("round:start", nil))
	assert.Len(t, alicePushed, 2)
	assert.Len(t, bobPushed, 1)
	assert.JSONEq(t, `{"action":"round:start"}`, string(bobPushed[0].Payload))

	assert.NotPanics(t, func() { f.server.SendUI(42, nui.New("hud:update", nil)) })
	f.server.SendUI(models.PlayerID(alice.ID), nui.Message{})
	assert.Equal(t, 2, f.logs.FilterMessage("in SendUI").Len())
	assert.Len(t, alicePushed, 2)
}

func TestWorldQueries(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, module.Add(f.server.Modules(), newLobby))
	l := module.MustGet[*lobby](f.server.Modules())

	a := f.runtime.Connect(models.Player{Name: "a", Position: mgl64.Vec3{0, 0, 0}})
	b := f.runtime.Connect(models.Player{Name: "b", Position: mgl64.Vec3{10, 0, 0}})
	e := f.runtime.SpawnEntity(models.EntityObject, 7, mgl64.Vec3{}, a.ID)
	f.runtime.LeaveScope(b.ID, a.ID)

	assert.Len(t, f.server.Players(), 2)
	near := f.server.PlayersNear(mgl64.Vec3{1, 0, 0}, 2)
	require.Len(t, near, 1)
	assert.Equal(t, a.ID, near[0].ID)
	got, ok := f.server.Player(b.ID)
	require.True(t, ok)
	assert.Equal(t, "b", got.Name)
	assert.Equal(t, []models.Entity{e}, f.server.Entities())

	assert.Contains(t, l.events, "entity:"+e.String())
	assert.Contains(t, l.events, "left:b:"+a.ID.String())
}

func TestGarbageCollectorHint(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	assert.True(t, f.server.GarbageCollectorEnabled())

	f.step(59 * time.Second)
	assert.Zero(t, f.runtime.GCRuns())
	f.step(time.Second)
	assert.Equal(t, int64(1), f.runtime.GCRuns())

	f.server.Close()
	assert.False(t, f.server.GarbageCollectorEnabled())
	f.step(time.Hour)
	assert.Equal(t, int64(1), f.runtime.GCRuns())
}

func TestCloseStopsForwarding(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, module.Add(f.server.Modules(), newLobby))
	l := module.MustGet[*lobby](f.server.Modules())

	f.server.Close()
	f.runtime.Connect(models.Player{Name: "late"})
	assert.Empty(t, l.events)
}
