package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sshcollectorpro/clisession/pkg/logger"
)

// EnvPrefix 环境变量前缀，例如 CLISESSION_SESSION_READ_TIMEOUT=30s
const EnvPrefix = "CLISESSION"

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Session     SessionConfig     `mapstructure:"session"`
	Log         logger.Config     `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Profiles    ProfilesConfig    `mapstructure:"profiles"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
	// 模拟设备监听端口，0 表示随机
	SimulateSSHPort    int `mapstructure:"simulate_ssh_port"`
	SimulateTelnetPort int `mapstructure:"simulate_telnet_port"`
}

// SessionConfig 会话默认参数，请求未指定时使用
type SessionConfig struct {
	DefaultProtocol  string        `mapstructure:"default_protocol"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	FlushQuiet       time.Duration `mapstructure:"flush_quiet"`
	KeepAlive        time.Duration `mapstructure:"keep_alive"`
	LegacyAlgorithms bool          `mapstructure:"legacy_algorithms"`
	KeyFiles         []string      `mapstructure:"key_files"`
	// Encoding 设备输出编码：auto 按 UTF-8/GB18030/GBK/Big5 依次尝试
	Encoding string `mapstructure:"encoding"`
	// DigestLines debug 日志中输出摘要的首尾行数
	DigestLines int `mapstructure:"digest_lines"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ArchiveConfig 会话记录归档
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend local | minio
	Backend string             `mapstructure:"backend"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalArchiveConfig `mapstructure:"local"`
	Minio   MinioConfig        `mapstructure:"minio"`
}

// LocalArchiveConfig 本地存储配置
type LocalArchiveConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// ExecutorConfig 多设备并发执行
type ExecutorConfig struct {
	Concurrent int `mapstructure:"concurrent"`
	// ConcurrencyProfile 并发档位 S/M/L/XL，设置后覆盖 Concurrent
	ConcurrencyProfile  string         `mapstructure:"concurrency_profile"`
	ConcurrencyProfiles map[string]int `mapstructure:"concurrency_profiles"`
}

// ProfilesConfig 自定义设备家族目录
type ProfilesConfig struct {
	Catalogs []string `mapstructure:"catalogs"`
}

// CredentialsConfig keyring: 引用的密码解析
type CredentialsConfig struct {
	KeyringService string `mapstructure:"keyring_service"`
}

var globalConfig *Config

// Load 加载配置文件；path 为空时在 ./configs 等目录查找 config.yaml，找不到则只使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyConcurrencyProfile(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("server.simulate_enable", false)
	v.SetDefault("server.simulate_ssh_port", 0)
	v.SetDefault("server.simulate_telnet_port", 0)

	v.SetDefault("session.default_protocol", "ssh")
	v.SetDefault("session.connect_timeout", 5*time.Second)
	v.SetDefault("session.read_timeout", 10*time.Second)
	v.SetDefault("session.flush_quiet", 300*time.Millisecond)
	v.SetDefault("session.keep_alive", 30*time.Second)
	v.SetDefault("session.legacy_algorithms", true)
	v.SetDefault("session.key_files", []string{})
	v.SetDefault("session.encoding", "auto")
	v.SetDefault("session.digest_lines", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/clisession.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("database.sqlite.path", "./data/clisession.db")
	v.SetDefault("database.sqlite.max_idle_conns", 2)
	v.SetDefault("database.sqlite.max_open_conns", 1)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.prefix", "transcripts")
	v.SetDefault("archive.local.base_dir", "./data/archive")
	v.SetDefault("archive.local.mkdir_if_missing", true)
	v.SetDefault("archive.minio.port", 9000)
	v.SetDefault("archive.minio.bucket", "clisession")

	v.SetDefault("executor.concurrent", 8)
	v.SetDefault("executor.concurrency_profile", "")
	v.SetDefault("executor.concurrency_profiles", map[string]int{
		"S":  8,
		"M":  16,
		"L":  32,
		"XL": 64,
	})

	v.SetDefault("profiles.catalogs", []string{})
	v.SetDefault("credentials.keyring_service", "clisession")
}

// Get 获取最近一次加载的配置
func Get() *Config {
	return globalConfig
}

// applyConcurrencyProfile 档位存在时覆盖 Concurrent
func applyConcurrencyProfile(cfg *Config) {
	p := strings.ToUpper(strings.TrimSpace(cfg.Executor.ConcurrencyProfile))
	if p == "" {
		return
	}
	p = strings.TrimPrefix(p, "CONCURRENCY-")
	for k, n := range cfg.Executor.ConcurrencyProfiles {
		if strings.ToUpper(k) == p && n > 0 {
			cfg.Executor.Concurrent = n
			return
		}
	}
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
