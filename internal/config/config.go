package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Redis    RedisConfig    `mapstructure:"redis"`
	QuranAPI QuranAPIConfig `mapstructure:"quran_api"`
	App      AppConfig      `mapstructure:"app"`
	Search   SearchConfig   `mapstructure:"search"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	Debug         bool   `mapstructure:"debug"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

type RedisConfig struct {
	URI            string        `mapstructure:"uri"`
	PreferencesTTL time.Duration `mapstructure:"preferences_ttl"`
}

type QuranAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// AudioBaseURL resolves the relative clip paths returned by the API.
	AudioBaseURL string `mapstructure:"audio_base_url"`
	// BackupAudioURL is a mirror template taking the reciter id and the
	// six digit verse code, e.g. "https://mirror/%d/%s.mp3". Optional.
	BackupAudioURL string        `mapstructure:"backup_audio_url"`
	TranslationID  int           `mapstructure:"translation_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type AppConfig struct {
	DefaultLanguage       string `mapstructure:"default_language"`
	DefaultReciter        int    `mapstructure:"default_reciter"`
	AutoNavigateThreshold int    `mapstructure:"auto_navigate_threshold"`
}

type SearchConfig struct {
	PrimarySize    int           `mapstructure:"primary_size"`
	FallbackSize   int           `mapstructure:"fallback_size"`
	Suggestions    int           `mapstructure:"suggestions"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CoverageWeight float64       `mapstructure:"coverage_weight"`
	OrderWeight    float64       `mapstructure:"order_weight"`
}

type MatcherConfig struct {
	// Scorer is "levenshtein" or "jaro_winkler".
	Scorer     string  `mapstructure:"scorer"`
	SurahFloor float64 `mapstructure:"surah_floor"`
	AyahFloor  float64 `mapstructure:"ayah_floor"`
}

type PlaybackConfig struct {
	NearEnd time.Duration `mapstructure:"near_end"`
	// ClipFallback is the clip length assumed when the chat reports none.
	ClipFallback time.Duration `mapstructure:"clip_fallback"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr"`
	ServiceName string `mapstructure:"service_name"`
}

// Load loads configuration from a YAML file with environment variable overrides
func Load(filename string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(filename)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Environment variable configuration
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.update_timeout", 60)

	v.SetDefault("redis.uri", "")
	v.SetDefault("redis.preferences_ttl", "720h")

	v.SetDefault("quran_api.base_url", "https://api.quran.com/api/v4")
	v.SetDefault("quran_api.api_key", "")
	v.SetDefault("quran_api.audio_base_url", "https://verses.quran.com/")
	v.SetDefault("quran_api.backup_audio_url", "")
	v.SetDefault("quran_api.translation_id", 131)
	v.SetDefault("quran_api.timeout", "10s")

	v.SetDefault("app.default_language", "en")
	v.SetDefault("app.default_reciter", 7)
	v.SetDefault("app.auto_navigate_threshold", 70)

	v.SetDefault("search.primary_size", 20)
	v.SetDefault("search.fallback_size", 50)
	v.SetDefault("search.suggestions", 5)
	v.SetDefault("search.cache_ttl", "10m")
	v.SetDefault("search.coverage_weight", 0.7)
	v.SetDefault("search.order_weight", 0.3)

	v.SetDefault("matcher.scorer", "levenshtein")
	v.SetDefault("matcher.surah_floor", 0.70)
	v.SetDefault("matcher.ayah_floor", 0.60)

	v.SetDefault("playback.near_end", "250ms")
	v.SetDefault("playback.clip_fallback", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")
	v.SetDefault("metrics.service_name", "quran-navigator")
}

// Validate reports every missing or out of range setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram token is required"))
	}
	if c.Redis.URI == "" {
		errs = append(errs, errors.New("redis URI is required"))
	}
	if c.QuranAPI.BaseURL == "" {
		errs = append(errs, errors.New("quran API base URL is required"))
	}
	if c.QuranAPI.BackupAudioURL != "" && strings.Count(c.QuranAPI.BackupAudioURL, "%") != 2 {
		errs = append(errs, fmt.Errorf("backup audio URL %q must contain a reciter and a verse placeholder", c.QuranAPI.BackupAudioURL))
	}
	switch c.App.DefaultLanguage {
	case "en", "ar", "ru":
	default:
		errs = append(errs, fmt.Errorf("unsupported default language %q", c.App.DefaultLanguage))
	}
	if c.App.AutoNavigateThreshold < 0 || c.App.AutoNavigateThreshold > 100 {
		errs = append(errs, fmt.Errorf("auto navigate threshold %d outside 0..100", c.App.AutoNavigateThreshold))
	}
	if c.Search.PrimarySize <= 0 || c.Search.FallbackSize <= 0 {
		errs = append(errs, errors.New("search page sizes must be positive"))
	}
	if c.Search.CoverageWeight < 0 || c.Search.OrderWeight < 0 || c.Search.CoverageWeight+c.Search.OrderWeight == 0 {
		errs = append(errs, errors.New("search weights must be non-negative and not both zero"))
	}
	switch c.Matcher.Scorer {
	case "levenshtein", "jaro_winkler":
	default:
		errs = append(errs, fmt.Errorf("unknown matcher scorer %q", c.Matcher.Scorer))
	}
	if c.Matcher.SurahFloor <= 0 || c.Matcher.SurahFloor > 1 || c.Matcher.AyahFloor <= 0 || c.Matcher.AyahFloor > 1 {
		errs = append(errs, errors.New("matcher floors must be in (0, 1]"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics listen address is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
