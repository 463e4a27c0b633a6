// Пакет config — загрузка и валидация конфигурации lifelog
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// DefaultAllowedExtensions — расширения, разрешённые к загрузке по умолчанию.
// Совпадает с объединением всех наборов категорий blobstore.
var DefaultAllowedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg",
	".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv", ".webm",
	".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt",
	".zip", ".rar", ".7z", ".tar", ".gz",
}

// Config содержит все параметры конфигурации lifelog.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Файловое хранилище ---

	// StorageDir — корневая директория загруженных файлов
	StorageDir string
	// MaxFileSize — максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// AllowedExtensions — допустимые расширения (в нижнем регистре, с точкой)
	AllowedExtensions []string

	// --- Пагинация ---

	DefaultPageSize int
	MaxPageSize     int

	// --- Кэш статистики ---

	StatsCacheSize int
	StatsCacheTTL  time.Duration

	// --- Сверка файлов с реестром ---

	// ReconcileInterval — период сверки (0 — сверка отключена)
	ReconcileInterval time.Duration
	// ReconcileGrace — минимальный возраст файла-сироты перед удалением
	ReconcileGrace time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейная последовательность однотипных проверок
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LL_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("LL_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("LL_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LL_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LL_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LL_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("LL_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("LL_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("LL_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("LL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// LL_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("LL_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("LL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("LL_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("LL_DB_NAME", "lifelog")
	cfg.DBUser, err = getEnvRequired("LL_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("LL_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("LL_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("LL_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Файловое хранилище ---

	cfg.StorageDir = getEnvDefault("LL_STORAGE_DIR", "uploads")

	// LL_MAX_FILE_SIZE — по умолчанию 10 MiB, допускаются суффиксы KB/MB/GB
	cfg.MaxFileSize, err = getEnvByteSize("LL_MAX_FILE_SIZE", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("LL_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("LL_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.AllowedExtensions = DefaultAllowedExtensions
	if raw := os.Getenv("LL_ALLOWED_EXTENSIONS"); raw != "" {
		cfg.AllowedExtensions = parseExtensions(raw)
		if len(cfg.AllowedExtensions) == 0 {
			return nil, fmt.Errorf("LL_ALLOWED_EXTENSIONS: список расширений пуст")
		}
	}

	// --- Пагинация ---

	cfg.MaxPageSize, err = getEnvInt("LL_MAX_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("LL_MAX_PAGE_SIZE: %w", err)
	}
	if cfg.MaxPageSize < 1 {
		return nil, fmt.Errorf("LL_MAX_PAGE_SIZE: значение должно быть >= 1")
	}
	cfg.DefaultPageSize, err = getEnvInt("LL_DEFAULT_PAGE_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("LL_DEFAULT_PAGE_SIZE: %w", err)
	}
	if cfg.DefaultPageSize < 1 || cfg.DefaultPageSize > cfg.MaxPageSize {
		return nil, fmt.Errorf("LL_DEFAULT_PAGE_SIZE: значение должно быть от 1 до %d", cfg.MaxPageSize)
	}

	// --- Кэш статистики ---

	cfg.StatsCacheSize, err = getEnvInt("LL_STATS_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("LL_STATS_CACHE_SIZE: %w", err)
	}
	if cfg.StatsCacheSize < 1 {
		return nil, fmt.Errorf("LL_STATS_CACHE_SIZE: значение должно быть >= 1")
	}
	cfg.StatsCacheTTL, err = getEnvDuration("LL_STATS_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_STATS_CACHE_TTL: %w", err)
	}

	// --- Сверка ---

	cfg.ReconcileInterval, err = getEnvDuration("LL_RECONCILE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LL_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval < 0 {
		return nil, fmt.Errorf("LL_RECONCILE_INTERVAL: значение не может быть отрицательным")
	}
	cfg.ReconcileGrace, err = getEnvDuration("LL_RECONCILE_GRACE", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LL_RECONCILE_GRACE: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("LL_DEPHEALTH_GROUP", "lifelog")
	cfg.DephealthCheckInterval, err = getEnvDuration("LL_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LL_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL с указанной схемой
// (pgx5 для golang-migrate, postgres для topologymetrics).
func (c *Config) DatabaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvByteSize возвращает размер в байтах из переменной окружения.
func getEnvByteSize(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return parseByteSize(val)
}

// parseByteSize разбирает размер вида "1048576", "512KB", "10MB", "1GB".
// Суффиксы двоичные (1KB = 1024 байт), регистр не важен.
func parseByteSize(s string) (int64, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(raw, unit.suffix) {
			raw = strings.TrimSpace(strings.TrimSuffix(raw, unit.suffix))
			multiplier = unit.mult
			break
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный размер: %q (например: 1048576, 512KB, 10MB)", s)
	}
	return n * multiplier, nil
}

// parseExtensions разбирает список расширений через запятую.
// Нормализует к нижнему регистру и добавляет ведущую точку.
func parseExtensions(raw string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		result = append(result, ext)
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
