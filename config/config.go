package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ByLCY/typesetter/model"
)

// DefaultStylesheetURL 是唯一的远程字体来源。
const DefaultStylesheetURL = "https://fonts.googleapis.com/css2?family=Noto+Sans+JP:wght@400;700&family=Noto+Serif+JP:wght@400;700&family=Zen+Maru+Gothic:wght@400;700&family=Bangers&family=Comic+Neue:wght@400;700&display=swap"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Fonts  FontsConfig  `mapstructure:"fonts"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Export ExportConfig `mapstructure:"export"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type FontsConfig struct {
	StylesheetURL string        `mapstructure:"stylesheet_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ChunkSize     int           `mapstructure:"chunk_size"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ExportConfig struct {
	Method                  string  `mapstructure:"method"`
	DefaultMaskShape        string  `mapstructure:"default_mask_shape"`
	DefaultMaskCornerRadius float64 `mapstructure:"default_mask_corner_radius"`
	DefaultMaskFeather      float64 `mapstructure:"default_mask_feather"`
	SingleName              string  `mapstructure:"single_name"`
	EntryName               string  `mapstructure:"entry_name"`
	ArchiveName             string  `mapstructure:"archive_name"`
}

// Options 将导出配置转换为引擎使用的 ExportOptions。
func (c ExportConfig) Options() model.ExportOptions {
	radius := c.DefaultMaskCornerRadius
	feather := c.DefaultMaskFeather
	return model.ExportOptions{
		DefaultMaskShape:        model.MaskShape(c.DefaultMaskShape),
		DefaultMaskCornerRadius: &radius,
		DefaultMaskFeather:      &feather,
		ExportMethod:            model.ExportMethod(c.Method),
	}
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 加载配置，失败时回退到默认配置
func New(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("fonts.stylesheet_url", DefaultStylesheetURL)
	v.SetDefault("fonts.timeout", 15*time.Second)
	v.SetDefault("fonts.chunk_size", 48*1024)
	v.SetDefault("fonts.user_agent", "typesetter")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 720*time.Hour)

	v.SetDefault("export.method", string(model.ExportCanvas))
	v.SetDefault("export.default_mask_shape", string(model.DefaultShape))
	v.SetDefault("export.default_mask_corner_radius", model.DefaultCornerRadius)
	v.SetDefault("export.default_mask_feather", model.DefaultFeather)
	v.SetDefault("export.single_name", "typeset_${stem}.png")
	v.SetDefault("export.entry_name", "typeset_manga/${stem}.png")
	v.SetDefault("export.archive_name", "manga_typeset_result.zip")
}

// Default 返回内置默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: ":8080",
			Mode: "debug",
		},
		Fonts: FontsConfig{
			StylesheetURL: DefaultStylesheetURL,
			Timeout:       15 * time.Second,
			ChunkSize:     48 * 1024,
			UserAgent:     "typesetter",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  720 * time.Hour,
		},
		Export: ExportConfig{
			Method:                  string(model.ExportCanvas),
			DefaultMaskShape:        string(model.DefaultShape),
			DefaultMaskCornerRadius: model.DefaultCornerRadius,
			DefaultMaskFeather:      model.DefaultFeather,
			SingleName:              "typeset_${stem}.png",
			EntryName:               "typeset_manga/${stem}.png",
			ArchiveName:             "manga_typeset_result.zip",
		},
	}
}
