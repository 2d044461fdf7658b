// Package config 负责加载应用配置
// 配置来源依次为: 内置默认值、配置文件(config.yaml)、NOVELSYNC_ 前缀的环境变量
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// 支持的远程存储提供商
const (
	ProviderGoogleDrive = "gdrive"
	ProviderAliyun      = "aliyun"
	ProviderTencent     = "tencent"
	ProviderQiniu       = "qiniu"
	ProviderS3          = "s3"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      logger.Config  `mapstructure:"log"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 本地数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
}

// RemoteConfig 远程存储配置
type RemoteConfig struct {
	Provider     string       `mapstructure:"provider"`
	BundleName   string       `mapstructure:"bundle_name"`
	EntityPrefix string       `mapstructure:"entity_prefix"`
	Drive        DriveConfig  `mapstructure:"drive"`
	Object       ObjectConfig `mapstructure:"object"`
}

// DriveConfig Google Drive 相关配置
type DriveConfig struct {
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	RedirectURL       string        `mapstructure:"redirect_url"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	UploadBaseURL     string        `mapstructure:"upload_base_url"`
	RevokeURL         string        `mapstructure:"revoke_url"`
	Space             string        `mapstructure:"space"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	ConsentTimeout    time.Duration `mapstructure:"consent_timeout"`
}

// ObjectConfig 对象存储(阿里云/腾讯云/七牛/S3)配置
type ObjectConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
	// LeaseDays 对象存储没有OAuth，登录后发放的本地凭据有效天数
	LeaseDays int `mapstructure:"lease_days"`
}

// SyncConfig 同步行为配置
type SyncConfig struct {
	Debounce         time.Duration `mapstructure:"debounce"`
	PeriodicInterval time.Duration `mapstructure:"periodic_interval"`
	DailyLimit       int           `mapstructure:"daily_limit"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ProbeAddr        string        `mapstructure:"probe_addr"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	Language         string        `mapstructure:"language"`
}

// setDefaults 写入默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 0)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/novelsync.db")
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 3600)

	def := logger.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.output", def.Output)
	v.SetDefault("log.file_path", def.FilePath)
	v.SetDefault("log.max_size", def.MaxSize)
	v.SetDefault("log.max_age", def.MaxAge)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.compress", def.Compress)

	v.SetDefault("remote.provider", ProviderGoogleDrive)
	v.SetDefault("remote.bundle_name", "novelsync-bundle.json")
	v.SetDefault("remote.entity_prefix", "novel-")
	v.SetDefault("remote.drive.redirect_url", "http://127.0.0.1:8080/oauth/callback")
	v.SetDefault("remote.drive.api_base_url", "https://www.googleapis.com/drive/v3/")
	v.SetDefault("remote.drive.upload_base_url", "https://www.googleapis.com/upload/drive/v3/")
	v.SetDefault("remote.drive.revoke_url", "https://oauth2.googleapis.com/revoke")
	v.SetDefault("remote.drive.space", "drive")
	v.SetDefault("remote.drive.requests_per_second", 5)
	v.SetDefault("remote.drive.burst", 5)
	v.SetDefault("remote.drive.consent_timeout", 5*time.Minute)
	v.SetDefault("remote.object.prefix", "novelsync/")
	v.SetDefault("remote.object.lease_days", 30)

	v.SetDefault("sync.debounce", 100*time.Millisecond)
	v.SetDefault("sync.periodic_interval", 60*time.Minute)
	v.SetDefault("sync.daily_limit", 1000)
	v.SetDefault("sync.request_timeout", 30*time.Second)
	v.SetDefault("sync.operation_timeout", 2*time.Minute)
	v.SetDefault("sync.probe_addr", "www.googleapis.com:443")
	v.SetDefault("sync.probe_interval", 15*time.Second)
	v.SetDefault("sync.language", "zh-CN")
}

// Load 加载配置
// 参数:
//   - path: 配置文件路径，为空时在当前目录和 ./config 下查找 config.yaml
//
// 返回:
//   - *Config: 配置
//   - error: 读取或校验失败
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("NOVELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// 未找到配置文件时使用默认值
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Remote.Provider {
	case ProviderGoogleDrive, ProviderAliyun, ProviderTencent, ProviderQiniu, ProviderS3:
	default:
		return fmt.Errorf("unsupported remote provider: %s", c.Remote.Provider)
	}
	if c.Remote.BundleName == "" {
		return errors.New("remote.bundle_name must not be empty")
	}
	if c.Sync.Debounce <= 0 || c.Sync.PeriodicInterval <= 0 {
		return errors.New("sync.debounce and sync.periodic_interval must be positive")
	}
	if c.Sync.RequestTimeout <= 0 || c.Sync.OperationTimeout <= 0 {
		return errors.New("sync.request_timeout and sync.operation_timeout must be positive")
	}
	if c.Sync.DailyLimit <= 0 {
		return errors.New("sync.daily_limit must be positive")
	}
	if c.Server.EnableHTTPS && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file are required when https is enabled")
	}
	return nil
}
