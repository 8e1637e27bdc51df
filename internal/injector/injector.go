//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
)

func InitializeServer(path ConfigPath) (*ServerApp, error) {
	wire.Build(ServerSet)
	return nil, nil
}

func InitializeClient(path ConfigPath) (*ClientApp, error) {
	wire.Build(ClientSet)
	return nil, nil
}
