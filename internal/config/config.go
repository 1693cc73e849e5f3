package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AnalyticsCacheTTL      time.Duration
	GradebookConcurrency   int
	GradebookStrictLoad    bool
	OfflineQuotaMB         int
	OfflineStepPercent     int
	OfflineTick            time.Duration
	UploadMaxSizeMB        int
	ExportIncludeBOM       bool
	NotificationSubject    string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDUPORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EduPort API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "eduport/attachments")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("gradebook.concurrency", 4)
	v.SetDefault("gradebook.strict_load", false)
	v.SetDefault("offline.quota_mb", 512)
	v.SetDefault("offline.step_percent", 10)
	v.SetDefault("offline.tick", "250ms")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("export.include_bom", true)
	v.SetDefault("notification.subject", "eduport.notifications")

	ttlString := v.GetString("analytics.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}

	tickString := v.GetString("offline.tick")
	if tickString == "" {
		tickString = "250ms"
	}

	tick, err := time.ParseDuration(tickString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid offline tick: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AnalyticsCacheTTL:      ttl,
		GradebookConcurrency:   v.GetInt("gradebook.concurrency"),
		GradebookStrictLoad:    v.GetBool("gradebook.strict_load"),
		OfflineQuotaMB:         v.GetInt("offline.quota_mb"),
		OfflineStepPercent:     v.GetInt("offline.step_percent"),
		OfflineTick:            tick,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		ExportIncludeBOM:       v.GetBool("export.include_bom"),
		NotificationSubject:    v.GetString("notification.subject"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.GradebookConcurrency <= 0 {
		cfg.GradebookConcurrency = 4
	}

	if cfg.OfflineStepPercent <= 0 || cfg.OfflineStepPercent > 100 {
		cfg.OfflineStepPercent = 10
	}

	if cfg.OfflineQuotaMB <= 0 {
		cfg.OfflineQuotaMB = 512
	}

	return cfg, nil
}
