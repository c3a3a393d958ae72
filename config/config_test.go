package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "", cfg.Host)
	assert.Equal(t, 0, cfg.Port)
	assert.True(t, cfg.KeepAlive.Enable)
	assert.Equal(t, DefaultCloseRetryInterval, cfg.CloseRetryInterval.Std())
	assert.Equal(t, "tcpserver", cfg.Metrics.Namespace)
	assert.False(t, cfg.Introspect.Enable)
	assert.Equal(t, DefaultIntrospectAddr, cfg.Introspect.Addr)

	t.Log("✅ NewConfig 测试通过")
}

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"MaxPort", func(c *Config) { c.Port = 65535 }, nil},
		{"NegativePort", func(c *Config) { c.Port = -1 }, ErrInvalidPort},
		{"PortTooLarge", func(c *Config) { c.Port = 65536 }, ErrInvalidPort},
		{"NegativeWorkers", func(c *Config) { c.Workers = -2 }, ErrInvalidWorkers},
		{"NegativeRetry", func(c *Config) { c.CloseRetryInterval = Duration(-time.Second) }, ErrInvalidRetryInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("NegativeKeepAliveDelay", func(t *testing.T) {
		cfg := NewConfig()
		cfg.KeepAlive.InitialDelay = Duration(-time.Second)
		assert.Error(t, cfg.Validate())
	})

	t.Run("InvalidNamespace", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Metrics.Namespace = "tcp-server"
		assert.Error(t, cfg.Validate())

		cfg.Metrics.Enable = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("IntrospectAddr", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Introspect.Addr = "no-port"
		assert.NoError(t, cfg.Validate(), "未启用时不校验地址")

		cfg.Introspect.Enable = true
		assert.Error(t, cfg.Validate())

		cfg.Introspect.Addr = "127.0.0.1:0"
		assert.NoError(t, cfg.Validate())
	})
}

// TestFromJSON 测试 JSON 加载
func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"host": "127.0.0.1",
		"port": 8080,
		"keep_alive": {"enable": false, "initial_delay": "30s"},
		"close_retry_interval": 5000000
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.KeepAlive.Enable)
	assert.Equal(t, 30*time.Second, cfg.KeepAlive.InitialDelay.Std())
	assert.Equal(t, 5*time.Millisecond, cfg.CloseRetryInterval.Std())
	// 未出现的字段保留默认值
	assert.True(t, cfg.Metrics.Enable)

	_, err = FromJSON([]byte(`{"close_retry_interval": "soon"}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"close_retry_interval": true}`))
	assert.Error(t, err)

	t.Log("✅ FromJSON 测试通过")
}

// TestToJSON 测试序列化后再加载保持一致
func TestToJSON(t *testing.T) {
	cfg := NewConfig()
	cfg.Port = 9000
	cfg.KeepAlive.InitialDelay = Duration(time.Minute)

	data, err := ToJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"initial_delay": "1m0s"`)

	loaded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// TestLoadFile 测试文件加载
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"port": 7000}`), 0o600))
	cfg, err := LoadFile(valid)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"port": 70000}`), 0o600))
	_, err = LoadFile(invalid)
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

// TestValidateAndFix 测试配置自动修复
func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Workers = -1
	cfg.CloseRetryInterval = 0
	cfg.KeepAlive.InitialDelay = Duration(-time.Second)
	cfg.Metrics.Namespace = ""
	cfg.Introspect.Addr = ""

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, fixed.Workers)
	assert.Equal(t, DefaultCloseRetryInterval, fixed.CloseRetryInterval.Std())
	assert.Equal(t, Duration(0), fixed.KeepAlive.InitialDelay)
	assert.Equal(t, "tcpserver", fixed.Metrics.Namespace)
	assert.Equal(t, DefaultIntrospectAddr, fixed.Introspect.Addr)

	cfg.Port = 1 << 20
	_, err = ValidateAndFix(cfg)
	assert.ErrorIs(t, err, ErrInvalidPort)

	fixed, err = ValidateAndFix(nil)
	require.NoError(t, err)
	assert.NotNil(t, fixed)

	t.Log("✅ ValidateAndFix 测试通过")
}

// TestValidateAll 测试 nil 配置
func TestValidateAll(t *testing.T) {
	assert.Error(t, ValidateAll(nil))
	assert.NoError(t, ValidateAll(NewConfig()))
	assert.Panics(t, func() { MustValidate(nil) })
}

// TestClone 测试复制配置
func TestClone(t *testing.T) {
	cfg := NewConfig()
	cloned := cfg.Clone()
	cloned.Port = 1234
	assert.Equal(t, 0, cfg.Port)

	var nilCfg *Config
	assert.Nil(t, nilCfg.Clone())
}

// TestDuration 测试时长辅助方法
func TestDuration(t *testing.T) {
	var d Duration
	assert.Equal(t, time.Second, d.OrDefault(time.Second))
	d = Duration(time.Millisecond)
	assert.Equal(t, time.Millisecond, d.OrDefault(time.Second))
	assert.Equal(t, "1ms", d.String())
}
