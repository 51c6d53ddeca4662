package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// DefaultRetentionDays 是日志保留天数的默认值，
// 配置缺失或无法解析时回退到这个值。
const DefaultRetentionDays = 30

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Retention RetentionConfig `mapstructure:"retention"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// FrontendConfig 定义了日志展示前端的配置
type FrontendConfig struct {
	// URL 是查看器前端的地址，上传成功后返回的链接以它为前缀。
	// 它是必填项：缺失时所有API请求都会收到500。
	URL string `mapstructure:"url"`
}

// RetentionConfig 定义了日志保留与清理相关的配置
type RetentionConfig struct {
	// Days 按字符串读取，以便区分"未设置"和"非法值"
	Days string `mapstructure:"days"`
	// EmergencyDays 是存储写满时紧急清理使用的保留天数
	EmergencyDays int `mapstructure:"emergencyDays"`
	// EmergencyBudgetMs 是紧急清理的墙钟时间预算（毫秒）
	EmergencyBudgetMs int `mapstructure:"emergencyBudgetMs"`
	// MaxIndexRetries 是索引表读改写循环的最大重试次数
	MaxIndexRetries int `mapstructure:"maxIndexRetries"`
	// SweepIntervalMinutes 是后台定时清理的间隔（分钟）
	SweepIntervalMinutes int `mapstructure:"sweepIntervalMinutes"`
}

// BackupConfig 定义了远端备份上传接口的配置
type BackupConfig struct {
	// APIURL 为空时完全禁用备份转发路径
	APIURL string `mapstructure:"apiUrl"`
}

// DatabaseConfig 定义了KV存储后端相关的配置
type DatabaseConfig struct {
	// Backend 可选 "redis"、"sqlite" 或 "memory"
	Backend string       `mapstructure:"backend"`
	Redis   RedisConfig  `mapstructure:"redis"`
	Sqlite  SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite存储后端的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
	// MaxEntries 是存储条目数量上限，超过后写入返回容量错误；0表示不限制
	MaxEntries int64 `mapstructure:"maxEntries"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 优先级：进程环境变量 > .env文件 > config.yaml > 内置默认值
func LoadConfig() (*Config, error) {
	// .env 文件如果存在则先加载（不覆盖已有的环境变量）
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 内置默认值
	v.SetDefault("server.address", ":8080")
	v.SetDefault("retention.emergencyDays", 1)
	v.SetDefault("retention.emergencyBudgetMs", 5000)
	v.SetDefault("retention.maxIndexRetries", 3)
	v.SetDefault("retention.sweepIntervalMinutes", 360)
	v.SetDefault("database.backend", "redis")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.sqlite.path", "logstore.db")

	// 允许通过环境变量覆盖配置
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 历史部署使用的环境变量名与配置键不同，这里做显式绑定
	_ = v.BindEnv("frontend.url", "FRONTEND_URL")
	_ = v.BindEnv("retention.days", "LOG_RETENTION_DAYS")
	_ = v.BindEnv("backup.apiUrl", "BACKUP_API_URL")

	// 配置文件允许缺失，全部走环境变量也是合法的部署方式
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Frontend.URL != "" {
		normalized, err := NormalizeFrontendURL(cfg.Frontend.URL)
		if err != nil {
			return nil, err
		}
		cfg.Frontend.URL = normalized
	}

	Cfg = &cfg
	return Cfg, nil
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// NormalizeFrontendURL 规范化前端地址：缺省协议补https，
// 末尾斜杠折叠为恰好一个。
func NormalizeFrontendURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("未配置前端地址参数 FRONTEND_URL ，请设置运行时的变量 FRONTEND_URL。FRONTEND_URL is not configured. Please set runtime variable FRONTEND_URL.")
	}
	withProtocol := raw
	if !schemePattern.MatchString(raw) {
		withProtocol = "https://" + raw
	}
	return strings.TrimRight(withProtocol, "/") + "/", nil
}

// SanitizeRetentionDays 将原始配置值解析为合法的保留天数。
// 未设置或无法解析时返回默认的30天，下限为1天。
func SanitizeRetentionDays(raw string) int {
	if raw == "" {
		return DefaultRetentionDays
	}
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultRetentionDays
	}
	if days < 1 {
		return 1
	}
	return days
}

// RetentionDays 返回清理后的保留天数
func (c *Config) RetentionDays() int {
	return SanitizeRetentionDays(c.Retention.Days)
}

// EmergencyBudget 返回紧急清理的时间预算
func (c *Config) EmergencyBudget() time.Duration {
	if c.Retention.EmergencyBudgetMs <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(c.Retention.EmergencyBudgetMs) * time.Millisecond
}

// EmergencyDays 返回紧急清理使用的保留天数，下限为1天
func (c *Config) EmergencyDays() int {
	if c.Retention.EmergencyDays < 1 {
		return 1
	}
	return c.Retention.EmergencyDays
}

// SweepInterval 返回后台定时清理的间隔
func (c *Config) SweepInterval() time.Duration {
	if c.Retention.SweepIntervalMinutes <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.Retention.SweepIntervalMinutes) * time.Minute
}
