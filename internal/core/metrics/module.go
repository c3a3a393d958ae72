package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-tcpserver/config"
)

// Params Recorder 依赖参数
type Params struct {
	fx.In

	Config     *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// GathererParams Gatherer 依赖参数
type GathererParams struct {
	fx.In

	Recorder   Recorder
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(NewRecorderFromParams),
	fx.Provide(NewGathererFromParams),
)

// NewRecorderFromParams 从参数创建 Recorder
//
// 配置禁用指标时返回 Nop。
func NewRecorderFromParams(p Params) (Recorder, error) {
	cfg := config.DefaultMetricsConfig()
	if p.Config != nil {
		cfg = p.Config.Metrics
	}
	if !cfg.Enable {
		return Nop{}, nil
	}

	opts := []Option{WithNamespace(cfg.Namespace)}
	if p.Registerer != nil {
		opts = append(opts, WithRegisterer(p.Registerer))
	}
	return NewCollector(opts...)
}

// NewGathererFromParams 返回与 Recorder 对应的指标来源
//
// 注入的注册器同时实现 Gatherer 时直接使用；否则使用采集器的私有注册表。
// 指标禁用时返回 nil。
func NewGathererFromParams(p GathererParams) prometheus.Gatherer {
	if g, ok := p.Registerer.(prometheus.Gatherer); ok {
		return g
	}
	if c, ok := p.Recorder.(*Collector); ok && c.Registry() != nil {
		return c.Registry()
	}
	return nil
}
