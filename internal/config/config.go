package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка и сопутствующих сервисов.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Render    RenderConfig    `yaml:"render"`
	Lighting  LightingConfig  `yaml:"lighting"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EngineConfig размеры мира и параметры редактора
type EngineConfig struct {
	VSID      int    `yaml:"vsid"`
	MaxVSID   int    `yaml:"max_vsid"`
	MaxZ      int    `yaml:"max_z"`
	MipLevels int    `yaml:"mip_levels"`
	FallCheck bool   `yaml:"fall_check"`
	CurColor  uint32 `yaml:"cur_color"`
	CurPow    int    `yaml:"cur_pow"`
	Seed      int64  `yaml:"seed"`
}

// RenderConfig параметры рейкастера
type RenderConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	AngInc      int     `yaml:"anginc"`
	MaxScanDist float64 `yaml:"max_scan_dist"`
	MipScanDist float64 `yaml:"mip_scan_dist"`
	Fog         bool    `yaml:"fog"`
	FogColor    uint32  `yaml:"fog_color"`
	SkyColor    uint32  `yaml:"sky_color"`
	SkyPath     string  `yaml:"sky_path"`
	KV6Col      uint32  `yaml:"kv6_col"`
	KV6Pow      float64 `yaml:"kv6_pow"`
}

// LightingConfig режим освещения и направление солнца
type LightingConfig struct {
	Mode    string     `yaml:"mode"`
	Sun     [3]float64 `yaml:"sun"`
	Ambient int        `yaml:"ambient"`
}

// StorageConfig хранилище колонок мира (badger)
type StorageConfig struct {
	Backend  string `yaml:"backend"` // badger | snapshot
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// CacheConfig кеш отрендеренных кадров
type CacheConfig struct {
	RedisURL   string `yaml:"redis_url"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"` // доля трассируемых запросов, 0 значит все
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) ApplyDefaults() {
	if c.Engine.VSID == 0 {
		c.Engine.VSID = 1024
	}
	if c.Engine.MaxVSID == 0 {
		c.Engine.MaxVSID = 2048
	}
	if c.Engine.MaxZ == 0 {
		c.Engine.MaxZ = 256
	}
	if c.Engine.MipLevels == 0 {
		c.Engine.MipLevels = 4
	}
	if c.Engine.CurColor == 0 {
		c.Engine.CurColor = 0x807060
	}
	if c.Render.Width == 0 {
		c.Render.Width = 640
	}
	if c.Render.Height == 0 {
		c.Render.Height = 480
	}
	if c.Render.AngInc == 0 {
		c.Render.AngInc = 1
	}
	if c.Render.MipScanDist == 0 {
		c.Render.MipScanDist = 128
	}
	if c.Render.SkyColor == 0 {
		c.Render.SkyColor = 0x8cb4e6
	}
	if c.Render.KV6Col == 0 {
		c.Render.KV6Col = 0x808080
	}
	if c.Render.KV6Pow == 0 {
		c.Render.KV6Pow = 1
	}
	if c.Lighting.Mode == "" {
		c.Lighting.Mode = "none"
	}
	if c.Lighting.Sun == [3]float64{} {
		c.Lighting.Sun = [3]float64{0.4, 0.3, -1}
	}
	if c.Lighting.Ambient == 0 {
		c.Lighting.Ambient = 48
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "badger"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/world"
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 30
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "VOXEL_EDITS"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "voxel-engine"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// GetRedisURL возвращает адрес Redis: config -> env -> пусто (кеш в памяти)
func (c *CacheConfig) GetRedisURL() string {
	return getStringWithEnvFallback(c.RedisURL, "VOXEL_REDIS_URL", "")
}

// GetURL возвращает адрес NATS: config -> env -> пусто (шина в памяти)
func (e *EventBusConfig) GetURL() string {
	return getStringWithEnvFallback(e.URL, "VOXEL_NATS_URL", "")
}

// GetEndpoint возвращает OTLP endpoint
func (t *TelemetryConfig) GetEndpoint() string {
	return getStringWithEnvFallback(t.Endpoint, "VOXEL_OTLP_ENDPOINT", "localhost:4318")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}
