package config

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1602/roco/pkg/logger"
)

// Settings 全局配置结构
type Settings struct {
	Log    logger.Config `yaml:"log"`
	SSH    SSHConfig     `yaml:"ssh"`
	Remote RemoteConfig  `yaml:"remote"`
	Shell  ShellConfig   `yaml:"shell"`
}

// SSHConfig ssh 传输配置
type SSHConfig struct {
	Binary  string   `yaml:"binary"`
	Options []string `yaml:"options"` // 例如 ["-o", "BatchMode=yes"]
}

// RemoteConfig 远程执行配置
type RemoteConfig struct {
	GraceTimeout time.Duration `yaml:"grace_timeout"` // 尽力模式宽限时间，例如 5s
}

// ShellConfig 本地 shell 配置
type ShellConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// DefaultSettings 返回默认配置
func DefaultSettings() *Settings {
	log := logger.DefaultConfig()
	log.Level = "warn" // 面向用户的输出由控制台报告器负责
	return &Settings{
		Log:    *log,
		SSH:    SSHConfig{Binary: "ssh"},
		Remote: RemoteConfig{GraceTimeout: 5 * time.Second},
	}
}

var (
	globalSettings *Settings
	mu             sync.RWMutex
)

// LoadSettings 加载配置文件，未设置的字段保留默认值。
// optional 为 true 时文件不存在返回默认配置。
func LoadSettings(path string, optional bool) (*Settings, error) {
	cfg := DefaultSettings()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetSettings 获取全局配置
func GetSettings() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	if globalSettings == nil {
		return DefaultSettings()
	}
	return globalSettings
}

// SetSettings 设置全局配置
func SetSettings(cfg *Settings) {
	mu.Lock()
	defer mu.Unlock()
	globalSettings = cfg
}
