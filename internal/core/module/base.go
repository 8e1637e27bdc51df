package module

import "github.com/zeusync/resourcekit/internal/core/observability/log"

// Base carries what every module needs: its name, its host and a Script
// logging under "<RESOURCE> > <MODULE>". Embed it to satisfy Module.
//
//	type Economy struct {
//		module.Base
//	}
//
//	func NewEconomy(host module.Host) (*Economy, error) {
//		return &Economy{Base: module.NewBase[Economy](host)}, nil
//	}
type Base struct {
	name   string
	host   Host
	script *Script
}

// NewBase builds the Base of module type T.
func NewBase[T any](host Host) Base {
	name := TypeName[T]()
	return Base{
		name:   name,
		host:   host,
		script: NewScript(host, host.Logger().Named(name)),
	}
}

func (b Base) Name() string {
	return b.name
}

func (b Base) Host() Host {
	return b.host
}

func (b Base) Script() *Script {
	return b.script
}

func (b Base) Logger() log.Log {
	return b.script.Logger()
}

func (b Base) Log(msg string, fields ...log.Field) {
	b.script.Log(msg, fields...)
}

func (b Base) LogError(err error, where string) {
	b.script.LogError(err, where)
}
