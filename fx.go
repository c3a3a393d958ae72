package tcpserver

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/internal/core/introspect"
	"github.com/dep2p/go-tcpserver/internal/core/metrics"
)

// serverParams Server 依赖参数
type serverParams struct {
	fx.In

	Config   *config.Config   `optional:"true"`
	Recorder metrics.Recorder `optional:"true"`
}

// Module 返回提供 *Server 的 Fx 模块
//
// 服务器的 Listen/Start 挂在 OnStart，Stop 挂在 OnStop，
// OnStop 等待服务器进入 CLOSED 或上下文结束。
// opts 在注入的配置之后应用。
// 配置启用自省时同时运行本地自省 HTTP 服务。
func Module(opts ...Option) fx.Option {
	return fx.Module("tcpserver",
		metrics.Module,
		fx.Provide(newServerFromParams(opts)),
		fx.Provide(func(s *Server) introspect.Source { return s }),
		fx.Invoke(registerLifecycle),
		introspect.Module(),
	)
}

// NewApp 创建运行服务器的 Fx 应用
//
// 通过 fx.Supply(cfg) 提供 *config.Config，通过 fx.Invoke 订阅事件。
func NewApp(fxOpts []fx.Option, opts ...Option) *fx.App {
	modules := append([]fx.Option{}, fxOpts...)
	modules = append(modules,
		Module(opts...),
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
	return fx.New(modules...)
}

func newServerFromParams(extra []Option) func(p serverParams) (*Server, error) {
	return func(p serverParams) (*Server, error) {
		var opts []Option
		if p.Config != nil {
			opts = append(opts, WithConfig(p.Config))
		}
		if p.Recorder != nil {
			opts = append(opts, WithMetrics(p.Recorder))
		}
		opts = append(opts, extra...)
		return New(opts...)
	}
}

// registerLifecycle 注册服务器生命周期钩子
func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := s.Listen(ListenOptions{Host: s.cfg.Host, Port: s.cfg.Port}); err != nil {
				return err
			}
			s.Start()
			logger.Info("服务器已启动", "address", s.Address())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := s.Stop(); err != nil {
				return err
			}
			select {
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
