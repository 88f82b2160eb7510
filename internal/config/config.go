package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// 内置时区数据库，精简容器中 PLATFORM_TIMEZONE 也能解析
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// DefaultCaloriesPerKg 为 1kg 体重对应的消耗热量，可通过 CALORIES_PER_KG 覆盖。
const DefaultCaloriesPerKg = 7700

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	SessionSecret     string
	GinMode           string
	LogMode           string
	Timezone          *time.Location
	CaloriesPerKg     float64
	RedisAddr         string
	RedisPassword     string
	StreakCacheTTL    time.Duration
	AllowOrigins      []string
	SuperRootUserName string
	SuperRootPassword string
	InternalAPIToken  string

	// Warnings 记录被回退为默认值的非法配置项，由调用方决定如何输出。
	Warnings []string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 若工作目录存在 .env 文件，会先加载其中的变量（不覆盖已有环境变量）。
func Load() AppConfig {
	var warnings []string
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		warnings = append(warnings, fmt.Sprintf("load .env: %v", err))
	}

	port := envOrDefault("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	driver := strings.ToLower(envOrDefault("DATABASE_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		warnings = append(warnings, fmt.Sprintf("unsupported DATABASE_DRIVER %q, using sqlite", driver))
		driver = "sqlite"
	}

	zoneName := envOrDefault("PLATFORM_TIMEZONE", "UTC")
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid PLATFORM_TIMEZONE %q, using UTC", zoneName))
		zone = time.UTC
	}

	caloriesPerKg := float64(DefaultCaloriesPerKg)
	if raw := strings.TrimSpace(os.Getenv("CALORIES_PER_KG")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid CALORIES_PER_KG %q, using %d", raw, DefaultCaloriesPerKg))
		} else {
			caloriesPerKg = parsed
		}
	}

	cacheTTL := 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("STREAK_CACHE_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid STREAK_CACHE_TTL %q, using 24h", raw))
		} else {
			cacheTTL = parsed
		}
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabaseDriver:    driver,
		DatabasePath:      envOrDefault("DATABASE_PATH", "coursepulse.db"),
		DatabaseDSN:       strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		SessionSecret:     envOrDefault("SESSION_SECRET", "coursepulse-dev-secret"),
		GinMode:           envOrDefault("GIN_MODE", "release"),
		LogMode:           envOrDefault("LOG_MODE", "prod"),
		Timezone:          zone,
		CaloriesPerKg:     caloriesPerKg,
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:     strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		StreakCacheTTL:    cacheTTL,
		AllowOrigins:      splitList(os.Getenv("CORS_ALLOW_ORIGINS")),
		SuperRootUserName: strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
		InternalAPIToken:  strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN")),
		Warnings:          warnings,
	}
}

// DatabaseTarget 返回当前驱动对应的连接串：sqlite 为文件路径，postgres 为 DSN。
func (c AppConfig) DatabaseTarget() string {
	if c.DatabaseDriver == "postgres" {
		return c.DatabaseDSN
	}
	return c.DatabasePath
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
