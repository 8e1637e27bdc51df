package sim

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

func newPair(t *testing.T) (*Server, *Client) {
	t.Helper()
	logger := log.New(log.LevelSilent)
	clock := scheduler.NewManualClock(time.Unix(0, 0))
	loop := protocol.NewLoopback()

	srv := NewServer(ServerOptions{
		Resource:  "demo",
		Scheduler: scheduler.New(scheduler.WithClock(clock), scheduler.WithLogger(logger)),
		Transport: loop,
		Logger:    logger,
	})
	require.NoError(t, srv.Listen(context.Background()))

	cl := NewClient(ClientOptions{
		Resource:  "demo",
		Scheduler: scheduler.New(scheduler.WithClock(clock), scheduler.WithLogger(logger)),
		Transport: loop.Dial(),
		Logger:    logger,
	})
	return srv, cl
}

func record(t *testing.T, events bus.EventBus, name string) *[]bus.Event {
	t.Helper()
	var got []bus.Event
	_, err := events.Subscribe(name, func(e bus.Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	return &got
}

func TestNetworkConnectAndEvents(t *testing.T) {
	srv, cl := newPair(t)
	connecting := record(t, srv.Events(), engine.EventPlayerConnecting)
	joining := record(t, srv.Events(), engine.EventPlayerJoining)
	ready := record(t, srv.Events(), engine.ClientInitializedEvent("demo"))
	pushed := record(t, cl.Events(), engine.UIPushEvent("demo"))

	me, err := cl.Connect(context.Background(), protocol.Hello{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.PlayerID(1), me.ID)
	assert.Equal(t, me.ID, cl.LocalPlayer())

	// Transport input is only handled on the worker.
	assert.Empty(t, *connecting)
	srv.Scheduler().Step()
	require.Len(t, *connecting, 1)
	require.Len(t, *joining, 1)
	assert.Equal(t, "alice", (*connecting)[0].Data().(lifecycle.PlayerConnecting).Player.Name)

	require.NoError(t, cl.TriggerServerEvent(engine.ClientInitializedEvent("demo"), nil))
	srv.Scheduler().Step()
	require.Len(t, *ready, 1)
	assert.Equal(t, "1", (*ready)[0].Source())

	require.NoError(t, srv.TriggerClientEvent(engine.UIPushEvent("demo"), me.ID, nui.New("hud:update", map[string]int{"hp": 80})))
	cl.Scheduler().Step()
	require.Len(t, *pushed, 1)
	raw := (*pushed)[0].Data().(json.RawMessage)
	msg, err := nui.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "hud:update", msg.Action)

	dropped := record(t, srv.Events(), engine.EventPlayerDropped)
	require.NoError(t, cl.Close())
	srv.Scheduler().Step()
	require.Len(t, *dropped, 1)
	assert.Empty(t, srv.Players())
}

func TestServerWorldHelpers(t *testing.T) {
	srv := NewServer(ServerOptions{Resource: "demo", Logger: log.New(log.LevelSilent)})
	created := record(t, srv.Events(), engine.EventEntityCreated)
	removed := record(t, srv.Events(), engine.EventEntityRemoved)
	entered := record(t, srv.Events(), engine.EventPlayerEnteredScope)

	p := srv.Connect(models.Player{Name: "npc"})
	assert.Greater(t, uint32(p.ID), uint32(localPlayerBase))
	require.True(t, srv.SetPosition(p.ID, mgl64.Vec3{1, 2, 3}))

	e := srv.SpawnEntity(models.EntityVehicle, 42, mgl64.Vec3{}, p.ID)
	require.Len(t, *created, 1)
	assert.Equal(t, []models.Entity{e}, srv.Entities())
	assert.True(t, srv.RemoveEntity(e.Handle))
	assert.False(t, srv.RemoveEntity(e.Handle))
	require.Len(t, *removed, 1)

	assert.True(t, srv.EnterScope(p.ID, 7))
	assert.False(t, srv.EnterScope(999, 7))
	require.Len(t, *entered, 1)
	assert.Equal(t, models.PlayerID(7), (*entered)[0].Data().(lifecycle.PlayerEnteredScope).For)

	assert.ErrorIs(t, srv.TriggerAllClientsEvent("x", nil), protocol.ErrNotConnected)

	before := srv.GCRuns()
	srv.CollectGarbage()
	assert.Equal(t, before+1, srv.GCRuns())
}

func TestClientPedOverrides(t *testing.T) {
	cl := NewClient(ClientOptions{Resource: "demo", Logger: log.New(log.LevelSilent)})
	_, err := cl.Connect(context.Background(), protocol.Hello{Name: "solo"})
	require.NoError(t, err)

	_, err = cl.Events().Subscribe(engine.EventPopulationPedCreating, func(e bus.Event) error {
		ev := e.Data().(lifecycle.PopulationPedCreating)
		if ev.Model == 13 {
			ev.Overrides.Cancel = true
			return nil
		}
		pos := mgl64.Vec3{9, 9, 9}
		ev.Overrides.Model = 7
		ev.Overrides.Position = &pos
		return nil
	})
	require.NoError(t, err)

	_, ok := cl.SpawnPed(13, mgl64.Vec3{})
	assert.False(t, ok)

	ped, ok := cl.SpawnPed(1, mgl64.Vec3{})
	require.True(t, ok)
	assert.Equal(t, uint32(7), ped.Model)
	assert.Equal(t, mgl64.Vec3{9, 9, 9}, ped.Position)
	assert.Equal(t, models.PlayerID(1), ped.Owner)
}

func TestClientUILayer(t *testing.T) {
	cl := NewClient(ClientOptions{Resource: "demo", Logger: log.New(log.LevelSilent)})
	requests := record(t, cl.Events(), engine.UIRequestEvent("demo"))

	require.NoError(t, cl.SendNUIMessage(`{"action":"a"}`))
	cl.SetUIAvailable(false)
	assert.ErrorIs(t, cl.SendNUIMessage(`{"action":"b"}`), engine.ErrUIUnavailable)
	assert.Equal(t, []string{`{"action":"a"}`}, cl.UIMessages())

	require.NoError(t, cl.SubmitUI(nui.New("shop:buy", nil)))
	assert.ErrorIs(t, cl.SubmitUI(nui.Message{}), nui.ErrEmptyAction)
	require.Len(t, *requests, 1)

	assert.ErrorIs(t, cl.TriggerServerEvent("x", nil), protocol.ErrNotConnected)
}
