package tcpserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/internal/core/loop"
	"github.com/dep2p/go-tcpserver/internal/core/metrics"
	"github.com/dep2p/go-tcpserver/pkg/interfaces"
)

// Option 服务器配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	cfg *config.Config

	engineFactory interfaces.EngineFactory
	clock         clock.Clock

	recorder   metrics.Recorder
	registerer prometheus.Registerer
}

func newOptions() *options {
	return &options{
		cfg:           config.NewConfig(),
		engineFactory: loop.NewEngine,
		clock:         clock.New(),
	}
}

// newRecorder 根据选项创建指标上报器
func (o *options) newRecorder() (metrics.Recorder, error) {
	if o.recorder != nil {
		return o.recorder, nil
	}
	if !o.cfg.Metrics.Enable {
		return metrics.Nop{}, nil
	}

	opts := []metrics.Option{metrics.WithNamespace(o.cfg.Metrics.Namespace)}
	if o.registerer != nil {
		opts = append(opts, metrics.WithRegisterer(o.registerer))
	}
	return metrics.NewCollector(opts...)
}

// WithConfig 使用完整配置
//
// 配置被复制，之后修改原配置不影响服务器。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cfg = cfg.Clone()
		return nil
	}
}

// WithWorkers 设置工作池大小
//
// 0 表示使用 CPU 核数。
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("%w: %d", config.ErrInvalidWorkers, n)
		}
		o.cfg.Workers = n
		return nil
	}
}

// WithKeepAlive 设置新连接的 keepalive
func WithKeepAlive(enable bool, initialDelay time.Duration) Option {
	return func(o *options) error {
		if initialDelay < 0 {
			return errors.New("keepalive initial delay must not be negative")
		}
		o.cfg.KeepAlive.Enable = enable
		o.cfg.KeepAlive.InitialDelay = config.Duration(initialDelay)
		return nil
	}
}

// WithCloseRetryInterval 设置不可关闭连接的重试间隔
func WithCloseRetryInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("%w: %s", config.ErrInvalidRetryInterval, d)
		}
		o.cfg.CloseRetryInterval = config.Duration(d)
		return nil
	}
}

// WithEngineFactory 使用自定义引擎
func WithEngineFactory(f interfaces.EngineFactory) Option {
	return func(o *options) error {
		if f == nil {
			return errors.New("engine factory is nil")
		}
		o.engineFactory = f
		return nil
	}
}

// WithClock 使用自定义时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		o.clock = c
		return nil
	}
}

// WithMetrics 使用自定义指标上报器
func WithMetrics(r MetricsRecorder) Option {
	return func(o *options) error {
		o.recorder = r
		return nil
	}
}

// WithRegisterer 在指定注册器上注册 Prometheus 指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithoutMetrics 禁用指标
func WithoutMetrics() Option {
	return func(o *options) error {
		o.cfg.Metrics.Enable = false
		o.recorder = nil
		return nil
	}
}
