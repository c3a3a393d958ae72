package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "tcpserver"

// Options 采集器选项
type Options struct {
	// Namespace 命名空间
	Namespace string
	// ConstLabels 常量标签
	ConstLabels prometheus.Labels
	// Registerer 注册器，默认使用私有注册表
	Registerer prometheus.Registerer
}

// Option 采集器选项函数
type Option func(*Options)

// WithNamespace 设置命名空间
func WithNamespace(ns string) Option {
	return func(o *Options) {
		o.Namespace = ns
	}
}

// WithConstLabels 设置常量标签
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *Options) {
		o.ConstLabels = labels
	}
}

// WithRegisterer 设置注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// Collector Prometheus 指标采集器
type Collector struct {
	active      prometheus.Gauge
	accepted    prometheus.Counter
	rejected    prometheus.Counter
	bytesRead   prometheus.Counter
	bytesWriten prometheus.Counter
	errors      *prometheus.CounterVec
	retries     prometheus.Counter

	registry *prometheus.Registry
}

var _ Recorder = (*Collector)(nil)

// NewCollector 创建采集器
//
// 未指定注册器时创建私有注册表，可通过 Registry 获取。
// 同一注册器上重复注册同名指标会返回错误。
func NewCollector(opts ...Option) (c *Collector, err error) {
	o := Options{Namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	c = &Collector{}
	if o.Registerer == nil {
		c.registry = prometheus.NewRegistry()
		o.Registerer = c.registry
	}

	// promauto 在注册冲突时 panic
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("register metrics: %v", r)
		}
	}()

	factory := promauto.With(o.Registerer)
	c.active = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   o.Namespace,
		Name:        "connections_active",
		Help:        "Number of registered connections",
		ConstLabels: o.ConstLabels,
	})
	c.accepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "connections_accepted_total",
		Help:        "Total number of admitted connections",
		ConstLabels: o.ConstLabels,
	})
	c.rejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "connections_rejected_total",
		Help:        "Total number of connections rejected after close began",
		ConstLabels: o.ConstLabels,
	})
	c.bytesRead = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "bytes_read_total",
		Help:        "Total number of bytes read from connections",
		ConstLabels: o.ConstLabels,
	})
	c.bytesWriten = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "bytes_written_total",
		Help:        "Total number of bytes written to connections",
		ConstLabels: o.ConstLabels,
	})
	c.errors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "errors_total",
		Help:        "Total number of engine errors",
		ConstLabels: o.ConstLabels,
	}, []string{"source"})
	c.retries = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   o.Namespace,
		Name:        "close_retries_total",
		Help:        "Total number of close retries for not closeable connections",
		ConstLabels: o.ConstLabels,
	})

	return c, nil
}

// Registry 返回私有注册表，使用外部注册器时为 nil
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ConnAccepted() {
	c.accepted.Inc()
	c.active.Inc()
}

func (c *Collector) ConnRejected() {
	c.rejected.Inc()
}

func (c *Collector) ConnClosed() {
	c.active.Dec()
}

func (c *Collector) BytesRead(n int) {
	if n > 0 {
		c.bytesRead.Add(float64(n))
	}
}

func (c *Collector) BytesWritten(n int) {
	if n > 0 {
		c.bytesWriten.Add(float64(n))
	}
}

func (c *Collector) Error(source string) {
	c.errors.WithLabelValues(source).Inc()
}

func (c *Collector) CloseRetry() {
	c.retries.Inc()
}
