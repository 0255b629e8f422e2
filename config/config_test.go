package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	oldConfig := GlobalConfig
	defer func() { GlobalConfig = oldConfig }()

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	// 内置默认配置
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.NotEmpty(t, cfg.Admin.Password)

	// 派生字段
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 30*time.Second, cfg.Export.Timeout)

	// 全局实例已更新
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfig_ExternalOverride(t *testing.T) {
	oldConfig := GlobalConfig
	defer func() { GlobalConfig = oldConfig }()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: \":9090\"\n  mode: \"release\"\nadmin:\n  username: \"boss\"\n  password: \"secret\"\nexport:\n  timeout_seconds: 60\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// 外部配置覆盖默认值
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "boss", cfg.Admin.Username)
	assert.Equal(t, "secret", cfg.Admin.Password)
	assert.Equal(t, 60*time.Second, cfg.Export.Timeout)

	// 未覆盖的字段保留默认值
	assert.NotEmpty(t, cfg.Database.Host)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	oldConfig := GlobalConfig
	defer func() { GlobalConfig = oldConfig }()

	t.Setenv("FAMILYBUDGET_ADMIN_PASSWORD", "from-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Password)
}

func TestSafeErrorMessage(t *testing.T) {
	oldConfig := GlobalConfig
	defer func() { GlobalConfig = oldConfig }()

	err := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")

	// debug 模式返回原始错误
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, err.Error(), SafeErrorMessage(err, "操作失败"))

	// release 模式隐藏细节
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	assert.Equal(t, "操作失败", SafeErrorMessage(err, "操作失败"))

	// 配置未初始化按开发环境处理
	GlobalConfig = nil
	assert.Equal(t, err.Error(), SafeErrorMessage(err, "操作失败"))

	// nil 错误返回 fallback
	assert.Equal(t, "操作失败", SafeErrorMessage(nil, "操作失败"))
}
