package injector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/resourcekit/internal/config"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol/quic"
	"github.com/zeusync/resourcekit/internal/core/protocol/websocket"
	"github.com/zeusync/resourcekit/internal/demo"
)

func writeConfig(t *testing.T, doc string) ConfigPath {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resource.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return ConfigPath(path)
}

func TestInitializeServer(t *testing.T) {
	app, err := InitializeServer(writeConfig(t, "resource: bank\nlog:\n  level: silent\n"))
	require.NoError(t, err)

	assert.Equal(t, "bank", app.Host.Name())
	assert.Equal(t, "bank", app.Runtime.Resource())
	assert.True(t, app.Host.GarbageCollectorEnabled())
	assert.True(t, module.Has[*demo.Economy](app.Host.Modules()))
	assert.Equal(t, []string{"Economy", "Inventory", "Presence"}, app.Host.Modules().Names())
}

func TestInitializeClient(t *testing.T) {
	app, err := InitializeClient(writeConfig(t, "resource: bank\nlog:\n  level: silent\ntransport:\n  kind: quic\n"))
	require.NoError(t, err)

	assert.Equal(t, "bank", app.Host.Name())
	assert.False(t, app.Host.DeathWatcherEnabled())
	assert.True(t, module.Has[*demo.HUD](app.Host.Modules()))
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	_, err := InitializeServer(writeConfig(t, "transport:\n  kind: smoke-signals\n"))
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = InitializeClient(ConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestTransportSelection(t *testing.T) {
	logger := log.New(log.LevelSilent)
	cfg := config.Default()

	st, err := ProvideServerTransport(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &websocket.Server{}, st)
	ct, err := ProvideClientTransport(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &websocket.Client{}, ct)

	cfg.Transport.Kind = config.TransportQUIC
	st, err = ProvideServerTransport(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &quic.Server{}, st)
	ct, err = ProvideClientTransport(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &quic.Client{}, ct)

	cfg.Transport.Kind = "carrier-pigeon"
	_, err = ProvideServerTransport(cfg, logger)
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = ProvideClientTransport(cfg, logger)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
