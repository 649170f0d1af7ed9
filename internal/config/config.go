package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string

	// DBDriver 支持 sqlite（默认）与 mysql；DBDSN 为对应驱动的连接串。
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// SessionBackend: redis 或 memory（单机调试用）
	SessionBackend string
	SessionTTL     time.Duration

	// 销售事件：Redis Stream outbox -> Relay -> Kafka -> 低库存告警消费者
	EventsEnabled     bool
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	SaleEventStream   string
	SaleEventGroup    string
	SaleEventConsumer string

	// 结账接口限流与防重复提交锁
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	CheckoutLockTTL    time.Duration

	// 注册 / 登录接口按 IP 限流
	AuthRateLimit  int
	AuthRateWindow time.Duration

	DashboardWindow time.Duration

	// 小票渲染
	ReceiptStoreName string
	ReceiptLocale    string
	BrowserBin       string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:              getEnv("DB_DSN", "store_manager.db?_busy_timeout=5000"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		SessionBackend:     strings.ToLower(getEnv("SESSION_BACKEND", "redis")),
		SessionTTL:         7 * 24 * time.Hour,
		EventsEnabled:      true,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "store-sales"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "store-stock-alerts"),
		SaleEventStream:    getEnv("SALE_EVENT_STREAM", "store:sale_events"),
		SaleEventGroup:     getEnv("SALE_EVENT_GROUP", "store-relay-group"),
		SaleEventConsumer:  getEnv("SALE_EVENT_CONSUMER", "store-relay-1"),
		CheckoutRateLimit:  20,
		CheckoutRateWindow: time.Second,
		CheckoutLockTTL:    30 * time.Second,
		AuthRateLimit:      10,
		AuthRateWindow:     time.Minute,
		DashboardWindow:    30 * 24 * time.Hour,
		ReceiptStoreName:   getEnv("RECEIPT_STORE_NAME", "StoreManager Pro"),
		ReceiptLocale:      getEnv("RECEIPT_LOCALE", "ar-EG"),
		BrowserBin:         getEnv("BROWSER_BIN", ""),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or mysql, got %q", cfg.DBDriver)
	}
	if cfg.SessionBackend != "redis" && cfg.SessionBackend != "memory" {
		return AppConfig{}, fmt.Errorf("SESSION_BACKEND must be redis or memory, got %q", cfg.SessionBackend)
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	ttlHour, err := getEnvInt("SESSION_TTL_HOUR", int(cfg.SessionTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SESSION_TTL_HOUR: %w", err)
	}
	if ttlHour <= 0 {
		return AppConfig{}, fmt.Errorf("SESSION_TTL_HOUR must be > 0")
	}
	cfg.SessionTTL = time.Duration(ttlHour) * time.Hour

	events, err := getEnvBool("EVENTS_ENABLED", cfg.EventsEnabled)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid EVENTS_ENABLED: %w", err)
	}
	cfg.EventsEnabled = events

	rateLimit, err := getEnvInt("CHECKOUT_RATE_LIMIT", cfg.CheckoutRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT must be > 0")
	}
	cfg.CheckoutRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CHECKOUT_RATE_WINDOW_SEC", int(cfg.CheckoutRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CheckoutRateWindow = time.Duration(rateWindowSec) * time.Second

	lockSec, err := getEnvInt("CHECKOUT_LOCK_TTL_SEC", int(cfg.CheckoutLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_LOCK_TTL_SEC: %w", err)
	}
	if lockSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_LOCK_TTL_SEC must be > 0")
	}
	cfg.CheckoutLockTTL = time.Duration(lockSec) * time.Second

	authLimit, err := getEnvInt("AUTH_RATE_LIMIT", cfg.AuthRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid AUTH_RATE_LIMIT: %w", err)
	}
	if authLimit <= 0 {
		return AppConfig{}, fmt.Errorf("AUTH_RATE_LIMIT must be > 0")
	}
	cfg.AuthRateLimit = authLimit

	authWindowSec, err := getEnvInt("AUTH_RATE_WINDOW_SEC", int(cfg.AuthRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid AUTH_RATE_WINDOW_SEC: %w", err)
	}
	if authWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("AUTH_RATE_WINDOW_SEC must be > 0")
	}
	cfg.AuthRateWindow = time.Duration(authWindowSec) * time.Second

	windowDays, err := getEnvInt("DASHBOARD_WINDOW_DAYS", int(cfg.DashboardWindow.Hours()/24))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid DASHBOARD_WINDOW_DAYS: %w", err)
	}
	if windowDays <= 0 {
		return AppConfig{}, fmt.Errorf("DASHBOARD_WINDOW_DAYS must be > 0")
	}
	cfg.DashboardWindow = time.Duration(windowDays) * 24 * time.Hour

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
		if cfg.SaleEventStream == "" {
			return AppConfig{}, fmt.Errorf("SALE_EVENT_STREAM must not be empty")
		}
		if cfg.SaleEventGroup == "" {
			return AppConfig{}, fmt.Errorf("SALE_EVENT_GROUP must not be empty")
		}
		if cfg.SaleEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("SALE_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

// NeedsRedis 会话、事件 outbox 任一依赖 Redis 时返回 true。
func (c AppConfig) NeedsRedis() bool {
	return c.SessionBackend == "redis" || c.EventsEnabled
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
