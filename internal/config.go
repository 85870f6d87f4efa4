package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 預設配置值
const (
	DefaultPort         = 6001
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second

	// 心跳：54 秒 Ping 避開常見的 60 秒代理超時，讀取期限留 6 秒余量
	DefaultPingInterval = 54 * time.Second
	DefaultPongWait     = 60 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Duration 支援 "54s" 這類字串格式的 yaml 期間欄位
type Duration time.Duration

// UnmarshalYAML 實作 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("解析期間 %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig HTTP 服務器配置
type ServerConfig struct {
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// HeartbeatConfig WebSocket 心跳配置
type HeartbeatConfig struct {
	PingInterval Duration `yaml:"ping_interval"`
	PongWait     Duration `yaml:"pong_wait"`
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

// Config 服務器配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultConfig 回傳全預設值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig 讀取 yaml 配置檔案並展開 ${VAR} 環境變數
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("讀取配置檔案: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("解析配置 yaml: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithDefaults 讀取配置並補上預設值
func LoadConfigWithDefaults(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults 為零值欄位補上預設值
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Heartbeat.PingInterval == 0 {
		c.Heartbeat.PingInterval = Duration(DefaultPingInterval)
	}
	if c.Heartbeat.PongWait == 0 {
		c.Heartbeat.PongWait = Duration(DefaultPongWait)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 必須在 1-65535 之間，收到 %d", c.Server.Port)
	}
	if c.Heartbeat.PingInterval <= 0 {
		return fmt.Errorf("heartbeat.ping_interval 必須為正值")
	}
	if c.Heartbeat.PongWait <= c.Heartbeat.PingInterval {
		return fmt.Errorf("heartbeat.pong_wait 必須大於 ping_interval")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 無效: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format 無效: %s", c.Log.Format)
	}
	return nil
}
