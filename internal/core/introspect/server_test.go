package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcpserver/pkg/types"
)

// fakeSource 固定快照
type fakeSource struct {
	report types.ServerReport
}

func (f *fakeSource) Report() types.ServerReport {
	return f.report
}

func listeningSource() *fakeSource {
	return &fakeSource{report: types.ServerReport{
		State:            "LISTENING",
		Address:          "127.0.0.1:7000",
		ConnectionsCount: 1,
		Connections: []types.ConnReport{
			{ID: "c1", State: "OPEN", Remote: "127.0.0.1:50000", KeepAlive: true},
		},
	}}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// TestHandler_Introspect 测试完整诊断报告
func TestHandler_Introspect(t *testing.T) {
	s := New(Config{Source: listeningSource()})
	rec := get(t, s.Handler(), "/debug/introspect")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report types.ServerReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "LISTENING", report.State)
	assert.Equal(t, 1, report.ConnectionsCount)
}

// TestHandler_Connections 测试连接列表
func TestHandler_Connections(t *testing.T) {
	s := New(Config{Source: listeningSource()})
	rec := get(t, s.Handler(), "/debug/introspect/connections")

	require.Equal(t, http.StatusOK, rec.Code)
	var conns []types.ConnReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conns))
	require.Len(t, conns, 1)
	assert.Equal(t, "c1", conns[0].ID)
	assert.True(t, conns[0].KeepAlive)
}

// TestHandler_Health 测试健康检查
func TestHandler_Health(t *testing.T) {
	src := listeningSource()
	s := New(Config{Source: src})

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status": "ok"`)

	src.report.State = "CLOSING"
	rec = get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")

	rec = get(t, New(Config{}).Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestHandler_NoSource 测试缺少数据来源
func TestHandler_NoSource(t *testing.T) {
	h := New(Config{}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/debug/introspect").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/debug/introspect/connections").Code)
}

// TestHandler_Metrics 测试指标端点
func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "introspect_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	rec := get(t, New(Config{Source: listeningSource(), Gatherer: reg}).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "introspect_test_total 3")

	// 没有 Gatherer 时不提供
	rec = get(t, New(Config{Source: listeningSource()}).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestHandler_MethodNotAllowed 测试非 GET 请求
func TestHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debug/introspect", nil)
	New(Config{Source: listeningSource()}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestServer_StartStop 测试启动与停止
func TestServer_StartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Source: listeningSource()})
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "重复启动为空操作")
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "LISTENING")

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

// TestNew_DefaultAddr 测试默认地址
func TestNew_DefaultAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:6060", New(Config{}).Addr())
}
