package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	YouTube  YouTubeConfig  `mapstructure:"youtube"`
	Email    EmailConfig    `mapstructure:"email"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Plans    PlansConfig    `mapstructure:"plans"`
	Models   []ModelConfig  `mapstructure:"models"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// InternalToken 内部服务调用凭证（计划变更回调等）
	InternalToken string `mapstructure:"internal_token"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type OAuthConfig struct {
	Google GoogleOAuthConfig `mapstructure:"google"`
	// TokenKey 凭证加密密钥（32 字节的 hex 编码）
	TokenKey string `mapstructure:"token_key"`
}

type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type YouTubeConfig struct {
	// BaseURL 为空时使用官方 API 地址
	BaseURL string `mapstructure:"base_url"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type DispatchConfig struct {
	BatchSize       int    `mapstructure:"batch_size"`       // 每轮派发最多取多少条待发回复
	IntervalMinutes int    `mapstructure:"interval_minutes"` // 定时派发间隔
	MaxAttempts     int    `mapstructure:"max_attempts"`     // 单条回复最大尝试次数
	NotifyChannel   string `mapstructure:"notify_channel"`   // 入队唤醒队列名
	LockTTLSeconds  int    `mapstructure:"lock_ttl_seconds"` // 派发互斥锁 TTL
	RetentionDays   int    `mapstructure:"retention_days"`   // 终态记录保留天数
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type PlansConfig struct {
	Levels map[string]PlanLevel `mapstructure:"levels"`
}

type PlanLevel struct {
	MonthlyReplyLimit int     `mapstructure:"monthly_reply_limit"` // <=0 表示不限
	DailyPostCap      int     `mapstructure:"daily_post_cap"`      // <=0 表示不限
	Price             float64 `mapstructure:"price"`
}

type ModelConfig struct {
	Name          string `mapstructure:"name"`
	DisplayName   string `mapstructure:"display_name"`
	RequiredLevel string `mapstructure:"required_level"`
	APIKey        string `mapstructure:"api_key"`
	APIProvider   string `mapstructure:"api_provider"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	Description   string `mapstructure:"description"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
