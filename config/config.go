package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	OSS          OSSConfig          `mapstructure:"oss"`
	Email        EmailConfig        `mapstructure:"email"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Insights     InsightsConfig     `mapstructure:"insights"`
	Reports      ReportsConfig      `mapstructure:"reports"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	FrontendURL string `mapstructure:"frontend_url"`
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

type EmailConfig struct {
	SMTPHost   string `mapstructure:"smtp_host"`
	SMTPPort   int    `mapstructure:"smtp_port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	AdminEmail string `mapstructure:"admin_email"`
}

type QueueConfig struct {
	JobQueue   string `mapstructure:"job_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type SubscriptionConfig struct {
	PeriodDays         int `mapstructure:"period_days"`          // 计费周期（天）
	PendingExpireHours int `mapstructure:"pending_expire_hours"` // 待支付订单超时（小时）
	GraceDays          int `mapstructure:"grace_days"`           // past_due 宽限期（天）
}

type PaymentConfig struct {
	AdminKey string         `mapstructure:"admin_key"`
	Paystack PaystackConfig `mapstructure:"paystack"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Bank     BankConfig     `mapstructure:"bank"`
	USDT     USDTConfig     `mapstructure:"usdt"`
}

type PaystackConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	BaseURL     string `mapstructure:"base_url"`
	CallbackURL string `mapstructure:"callback_url"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type BankConfig struct {
	BankName      string `mapstructure:"bank_name"`
	AccountName   string `mapstructure:"account_name"`
	AccountNumber string `mapstructure:"account_number"`
}

type USDTConfig struct {
	WalletAddress string `mapstructure:"wallet_address"`
	Network       string `mapstructure:"network"`
	RateFromNGN   string `mapstructure:"rate_from_ngn"` // 1 NGN 对应的 USDT 数量，十进制字符串
}

type InsightsConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

type ReportsConfig struct {
	LocalDir   string `mapstructure:"local_dir"` // 未配置 OSS 时的本地存储目录
	ExpireDays int    `mapstructure:"expire_days"`
}

func Load(configPath string) (*Config, error) {
	// .env 中的密钥以环境变量形式覆盖 yaml
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.expire_hours", 168)
	v.SetDefault("queue.job_queue", "agri_jobs")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("subscription.period_days", 30)
	v.SetDefault("subscription.pending_expire_hours", 72)
	v.SetDefault("subscription.grace_days", 7)
	v.SetDefault("payment.paystack.base_url", "https://api.paystack.co")
	v.SetDefault("payment.bank.bank_name", "Zenith Bank")
	v.SetDefault("payment.bank.account_name", "AgriPulse Technologies Ltd")
	v.SetDefault("payment.bank.account_number", "1012345678")
	v.SetDefault("payment.usdt.network", "TRC20")
	v.SetDefault("payment.usdt.rate_from_ngn", "0.00067")
	v.SetDefault("insights.cache_ttl_seconds", 300)
	v.SetDefault("reports.local_dir", "./data/reports")
	v.SetDefault("reports.expire_days", 30)
}
