package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-tcpserver/config"
)

// Params fx 注入参数
type Params struct {
	fx.In

	Source   Source
	Config   *config.Config      `optional:"true"`
	Gatherer prometheus.Gatherer `optional:"true"`
}

// NewFromParams 从注入参数构建自省服务，未提供配置时使用默认地址
func NewFromParams(p Params) *Server {
	cfg := Config{Source: p.Source, Gatherer: p.Gatherer}
	if p.Config != nil {
		cfg.Addr = p.Config.Introspect.Addr
	}
	return New(cfg)
}

// enabled 配置中是否启用自省
func enabled(cfg *config.Config) bool {
	return cfg != nil && cfg.Introspect.Enable
}

type hookParams struct {
	fx.In

	LC     fx.Lifecycle
	Server *Server
	Config *config.Config `optional:"true"`
}

// registerHooks 启用时把 HTTP 服务挂到应用生命周期上
func registerHooks(p hookParams) {
	if !enabled(p.Config) {
		return
	}
	srv := p.Server
	p.LC.Append(fx.StartStopHook(
		func(ctx context.Context) error { return srv.Start(ctx) },
		func(ctx context.Context) error { return srv.Stop(ctx) },
	))
}

// Module 返回 introspect fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerHooks),
	)
}
