package tcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/internal/core/introspect"
	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/types"
	"github.com/dep2p/go-tcpserver/tests/mocks"
)

func loopbackConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Host = "127.0.0.1"
	cfg.Workers = 2
	return cfg
}

// TestModule_Lifecycle 测试 Fx 生命周期驱动服务器
func TestModule_Lifecycle(t *testing.T) {
	e := mocks.NewEngine()
	var s *Server

	app := fxtest.New(t,
		fx.Supply(loopbackConfig()),
		Module(WithEngineFactory(e.Factory())),
		fx.Populate(&s),
	)
	require.NotNil(t, s)
	assert.Equal(t, StateNotStarted, s.State())

	app.RequireStart()
	assert.Equal(t, StateListening, s.State())
	require.NotNil(t, s.Address())
	assert.Equal(t, "127.0.0.1", s.Address().IP)

	app.RequireStop()
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, e.Released())
}

// TestModule_Registerer 测试注入的 Prometheus 注册器
func TestModule_Registerer(t *testing.T) {
	e := mocks.NewEngine()
	reg := prometheus.NewRegistry()
	var s *Server

	app := fxtest.New(t,
		fx.Supply(loopbackConfig()),
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module(WithEngineFactory(e.Factory())),
		fx.Populate(&s),
	)
	app.RequireStart()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "指标应该注册到注入的注册器")

	app.RequireStop()
}

// TestModule_ListenFailure 测试监听失败中止启动
func TestModule_ListenFailure(t *testing.T) {
	e := mocks.NewEngine()
	e.ListenFunc = func(func(interfaces.ConnHandle)) error {
		return errors.New("listen refused")
	}
	var s *Server

	app := fx.New(
		fx.NopLogger,
		fx.Supply(loopbackConfig()),
		Module(WithEngineFactory(e.Factory())),
		fx.Populate(&s),
	)
	require.NoError(t, app.Err())

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen refused")
	assert.Equal(t, StateClosed, s.State())
}

// TestNewApp 测试便捷构造
func TestNewApp(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过真实引擎测试")
	}
	var s *Server
	app := NewApp([]fx.Option{
		fx.Supply(loopbackConfig()),
		fx.Populate(&s),
	}, WithoutMetrics())
	require.NoError(t, app.Err())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.Equal(t, StateListening, s.State())
	assert.NotZero(t, s.Address().Port)

	require.NoError(t, app.Stop(ctx))
	assert.Equal(t, StateClosed, s.State())
}

// TestModule_Introspect 测试启用自省服务
func TestModule_Introspect(t *testing.T) {
	e := mocks.NewEngine()
	cfg := loopbackConfig()
	cfg.Introspect.Enable = true
	cfg.Introspect.Addr = "127.0.0.1:0"

	var s *Server
	var is *introspect.Server
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(WithEngineFactory(e.Factory())),
		fx.Populate(&s, &is),
	)
	app.RequireStart()

	resp, err := http.Get("http://" + is.Addr() + "/debug/introspect")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report types.ServerReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "LISTENING", report.State)
	assert.Equal(t, "127.0.0.1:40000", report.Address)

	metricsResp, err := http.Get("http://" + is.Addr() + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	app.RequireStop()
}
