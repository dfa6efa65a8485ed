// Package config 管理 CLI 客户端配置
// 使用 viper 读取 YAML 配置文件，支持环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 DOCCHAT_SERVER_URL
const EnvPrefix = "DOCCHAT"

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Log    LogConfig    `mapstructure:"log"`
	Notify NotifyConfig `mapstructure:"notify"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL     string        `mapstructure:"url"`     // API 根地址
	Timeout time.Duration `mapstructure:"timeout"` // 单次请求超时
}

// RetryConfig 幂等读请求的重试配置
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // debug/info/warn/error
	File  string `mapstructure:"file"`  // 日志文件路径，空表示不写文件
}

// NotifyConfig 提示信息配置
type NotifyConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // 提示自动消失时间
}

// Loader 持有 viper 实例与配置目录
type Loader struct {
	v    *viper.Viper
	dir  string
	path string
}

// DefaultDir 默认配置目录 ~/.docchat
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户目录失败: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// Load 加载配置，目录不存在时创建，配置文件不存在时写入默认值
func Load(dir string) (*Loader, *Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, fmt.Errorf("创建配置目录失败: %w", err)
	}

	// 当前目录存在 .env 时先加载，已有的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, dir)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
		// 默认配置由不绑定环境变量的实例写出，环境变量覆盖值不落盘
		dv := viper.New()
		setDefaults(dv, dir)
		if err := dv.SafeWriteConfigAs(path); err != nil {
			var exists viper.ConfigFileAlreadyExistsError
			if !errors.As(err, &exists) {
				return nil, nil, fmt.Errorf("写入默认配置失败: %w", err)
			}
		}
	}

	l := &Loader{v: v, dir: dir, path: path}
	cfg, err := l.Config()
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}

// setDefaults 设置配置项默认值
func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("server.url", "http://localhost:8000/api")
	v.SetDefault("server.timeout", "30s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "300ms")
	v.SetDefault("retry.max_delay", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "docchat.log"))

	v.SetDefault("notify.ttl", "5s")

	v.SetDefault(tokenKey, "")
}

// Config 解析当前配置
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

// Dir 配置目录
func (l *Loader) Dir() string {
	return l.dir
}

// Path 配置文件路径
func (l *Loader) Path() string {
	return l.path
}

// SetServerURL 设置并保存服务器地址
func (l *Loader) SetServerURL(url string) error {
	url = strings.TrimRight(url, "/")
	l.v.Set("server.url", url)
	return persist(l.path, "server.url", url)
}

// persist 只把一个键写回配置文件
// 使用独立的 viper 实例读写文件，环境变量和 .env 的覆盖值不会被写入
func persist(path, key string, value interface{}) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
	}
	fv.Set(key, value)
	if err := fv.WriteConfig(); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// TokenStore 返回以配置文件为后端的 token 存储
func (l *Loader) TokenStore() *ViperTokenStore {
	return &ViperTokenStore{v: l.v, path: l.path}
}
