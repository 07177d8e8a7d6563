package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Support   SupportConfig   `mapstructure:"support"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	Mode           string   `mapstructure:"mode"`
	PublicURL      string   `mapstructure:"public_url"` // webhook is registered at {public_url}/webhook when set
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MachineId      int      `mapstructure:"machine_id"` // distinct per instance sharing a database
}

// DatabaseConfig selects and configures the conversation store
type DatabaseConfig struct {
	Driver     string      `mapstructure:"driver"` // mysql or sqlite
	SQLitePath string      `mapstructure:"sqlite_path"`
	MySQL      MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration for the admin API
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// TelegramConfig holds the messaging platform settings
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	SupportGroupId int64         `mapstructure:"support_group_id"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SupportConfig holds the relay, follow-up and job settings
type SupportConfig struct {
	AdminIds                 []int64           `mapstructure:"admin_ids"`
	FollowUpAfterHours       int               `mapstructure:"followup_after_hours"`
	FollowUpReportHour       int               `mapstructure:"followup_report_hour"`
	ArchiveAfterDays         int               `mapstructure:"archive_after_days"`
	ArchiveSweepMinutes      int               `mapstructure:"archive_sweep_minutes"`
	DigestIntervalMinutes    int               `mapstructure:"digest_interval_minutes"`
	DigestUnreadAfterMinutes int               `mapstructure:"digest_unread_after_minutes"`
	TypingIndicator          bool              `mapstructure:"typing_indicator"`
	WelcomeMessage           string            `mapstructure:"welcome_message"`
	BroadcastProgressEvery   int               `mapstructure:"broadcast_progress_every"`
	Templates                map[string]string `mapstructure:"templates"`
}

// FollowUpAfter returns the follow-up threshold as a duration
func (c *SupportConfig) FollowUpAfter() time.Duration {
	return time.Duration(c.FollowUpAfterHours) * time.Hour
}

// IsAdmin reports whether id is in the admin allow-list
func (c *SupportConfig) IsAdmin(id int64) bool {
	for _, a := range c.AdminIds {
		if a == id {
			return true
		}
	}
	return false
}

// WebSocketConfig holds admin live feed configuration
type WebSocketConfig struct {
	MaxConnNum       int64         `mapstructure:"max_conn_num"`
	MaxConnsPerAdmin int           `mapstructure:"max_conns_per_admin"` // older connections are evicted
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PushChannelSize  int           `mapstructure:"push_channel_size"`
	PushWorkerNum    int           `mapstructure:"push_worker_num"`
}

// Global config instance
var GlobalConfig *Config

const defaultWelcome = "Hey! 👋\n\nSchreib mir einfach deine Frage – ich melde mich so schnell wie möglich.\n\nSprachnachrichten, Bilder, alles kein Problem."

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SUPPORTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AutomaticEnv only applies to keys read through Get
	if token := v.GetString("telegram.bot_token"); token != "" {
		cfg.Telegram.BotToken = token
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// ApplyDefaults fills zero values with defaults
func ApplyDefaults(cfg *Config) {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MachineId == 0 {
		cfg.Server.MachineId = 1
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "support.db"
	}
	if cfg.Database.MySQL.Charset == "" {
		cfg.Database.MySQL.Charset = "utf8mb4"
	}
	if cfg.Database.MySQL.MaxOpenConns == 0 {
		cfg.Database.MySQL.MaxOpenConns = 20
	}
	if cfg.Database.MySQL.MaxIdleConns == 0 {
		cfg.Database.MySQL.MaxIdleConns = 5
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "supportdesk:"
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 168 // 7 days
	}
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = "https://api.telegram.org"
	}
	if cfg.Telegram.RequestTimeout == 0 {
		cfg.Telegram.RequestTimeout = 30 * time.Second
	}
	if cfg.Support.FollowUpAfterHours == 0 {
		cfg.Support.FollowUpAfterHours = 24
	}
	if cfg.Support.FollowUpReportHour == 0 {
		cfg.Support.FollowUpReportHour = 9
	}
	if cfg.Support.ArchiveAfterDays == 0 {
		cfg.Support.ArchiveAfterDays = 14
	}
	if cfg.Support.ArchiveSweepMinutes == 0 {
		cfg.Support.ArchiveSweepMinutes = 60
	}
	if cfg.Support.DigestIntervalMinutes == 0 {
		cfg.Support.DigestIntervalMinutes = 30
	}
	if cfg.Support.DigestUnreadAfterMinutes == 0 {
		cfg.Support.DigestUnreadAfterMinutes = 30
	}
	if cfg.Support.WelcomeMessage == "" {
		cfg.Support.WelcomeMessage = defaultWelcome
	}
	if cfg.Support.BroadcastProgressEvery == 0 {
		cfg.Support.BroadcastProgressEvery = 5
	}
	if cfg.Support.Templates == nil {
		cfg.Support.Templates = map[string]string{
			"hi":         "Hey! 👋 Wie kann ich dir helfen?",
			"danke":      "Gerne! Bei Fragen melde dich einfach 😊",
			"moment":     "Einen Moment, ich schau mir das an! 🔍",
			"screenshot": "Kannst du mir einen Screenshot schicken? 📸",
			"erledigt":   "Super, freut mich! ✅ Bei Fragen melde dich.",
		}
	}
	if cfg.WebSocket.MaxConnNum == 0 {
		cfg.WebSocket.MaxConnNum = 100
	}
	if cfg.WebSocket.MaxConnsPerAdmin == 0 {
		cfg.WebSocket.MaxConnsPerAdmin = 3
	}
	if cfg.WebSocket.MaxMessageSize == 0 {
		cfg.WebSocket.MaxMessageSize = 4096
	}
	if cfg.WebSocket.PongWait == 0 {
		cfg.WebSocket.PongWait = 30 * time.Second
	}
	if cfg.WebSocket.PingPeriod == 0 {
		cfg.WebSocket.PingPeriod = 27 * time.Second
	}
	if cfg.WebSocket.PushChannelSize == 0 {
		cfg.WebSocket.PushChannelSize = 1024
	}
	if cfg.WebSocket.PushWorkerNum == 0 {
		cfg.WebSocket.PushWorkerNum = 2
	}
}

// Validate checks settings that have no sensible default
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.SupportGroupId == 0 {
		return fmt.Errorf("telegram.support_group_id is required")
	}
	if len(c.Support.AdminIds) == 0 {
		return fmt.Errorf("support.admin_ids must not be empty")
	}
	if c.Server.MachineId < 0 || c.Server.MachineId > 0xFFFF {
		return fmt.Errorf("server.machine_id must be within 0-65535, got %d", c.Server.MachineId)
	}
	if c.Support.FollowUpReportHour < 0 || c.Support.FollowUpReportHour > 23 {
		return fmt.Errorf("support.followup_report_hour must be within 0-23, got %d", c.Support.FollowUpReportHour)
	}
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	return nil
}
