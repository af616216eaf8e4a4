package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/polychat-ai/polychat/agents"
)

// Model configures one entry of the local model daemon.
type Model struct {
	Name        string  `mapstructure:"name" yaml:"name"`
	APIBase     string  `mapstructure:"api_base" yaml:"api_base"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Vision      bool    `mapstructure:"vision" yaml:"vision"`
}

// WeatherAPI configures the weather REST API.
type WeatherAPI struct {
	Key      string `mapstructure:"key" yaml:"key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Language string `mapstructure:"language" yaml:"language"`
	Unit     string `mapstructure:"unit" yaml:"unit"`
}

// BaiduAPI configures the NLP sentiment API.
type BaiduAPI struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
}

// APIs groups external service credentials.
type APIs struct {
	Weather WeatherAPI `mapstructure:"weather" yaml:"weather"`
	Baidu   BaiduAPI   `mapstructure:"baidu" yaml:"baidu"`
}

// TTS configures speech synthesis.
type TTS struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Voice    string `mapstructure:"voice" yaml:"voice"`
	Rate     int    `mapstructure:"rate" yaml:"rate"`
}

// Voice configures the speech pipeline.
type Voice struct {
	RecognitionURL string `mapstructure:"recognition_url" yaml:"recognition_url"`
	SampleRate     int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	TTS            TTS    `mapstructure:"tts" yaml:"tts"`
}

// Features toggles optional capabilities at runtime.
type Features struct {
	Weather      bool `mapstructure:"weather" yaml:"weather"`
	Education    bool `mapstructure:"education" yaml:"education"`
	Ecommerce    bool `mapstructure:"ecommerce" yaml:"ecommerce"`
	Government   bool `mapstructure:"government" yaml:"government"`
	Voice        bool `mapstructure:"voice" yaml:"voice"`
	Sentiment    bool `mapstructure:"sentiment" yaml:"sentiment"`
	ShowAnalysis bool `mapstructure:"show_analysis" yaml:"show_analysis"`
}

// Auth configures web basic auth. Empty user disables it.
type Auth struct {
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Web configures the browser UI server.
type Web struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Auth Auth   `mapstructure:"auth" yaml:"auth"`
}

// Logging configures log output.
type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// Config is the full application configuration, read once at startup and
// refreshed on file change.
type Config struct {
	Strategy  string           `mapstructure:"strategy" yaml:"strategy"`
	Models    map[string]Model `mapstructure:"models" yaml:"models"`
	Embedding Model            `mapstructure:"embedding" yaml:"embedding"`
	APIs      APIs             `mapstructure:"apis" yaml:"apis"`
	Voice     Voice            `mapstructure:"voice" yaml:"voice"`
	Features  Features         `mapstructure:"features" yaml:"features"`
	Web       Web              `mapstructure:"web" yaml:"web"`
	Logging   Logging          `mapstructure:"logging" yaml:"logging"`
}

const (
	envPrefix        = "POLYCHAT"
	defaultLocalBase = "http://localhost:11434/v1"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Strategy: "auto",
		Models: map[string]Model{
			"qwen": {
				Name:        "qwen2.5:7b",
				APIBase:     defaultLocalBase,
				APIKey:      "ollama",
				Temperature: 0.7,
				MaxTokens:   2048,
			},
			"deepseek": {
				Name:        "deepseek-r1:7b",
				APIBase:     defaultLocalBase,
				APIKey:      "ollama",
				Temperature: 0.7,
				MaxTokens:   2048,
			},
			"minicpm": {
				Name:        "minicpm-v:8b",
				APIBase:     defaultLocalBase,
				APIKey:      "ollama",
				Temperature: 0.7,
				MaxTokens:   2048,
				Vision:      true,
			},
		},
		Embedding: Model{
			Name:    "nomic-embed-text",
			APIBase: defaultLocalBase,
			APIKey:  "ollama",
		},
		APIs: APIs{
			Weather: WeatherAPI{
				BaseURL:  "https://api.seniverse.com/v3",
				Language: "zh-Hans",
				Unit:     "c",
			},
			Baidu: BaiduAPI{
				BaseURL: "https://aip.baidubce.com",
			},
		},
		Voice: Voice{
			RecognitionURL: "ws://localhost:2700",
			SampleRate:     16000,
			TTS: TTS{
				Endpoint: "http://localhost:5002/api/tts",
				Rate:     180,
			},
		},
		Features: Features{
			Weather:    true,
			Education:  true,
			Ecommerce:  true,
			Government: true,
			Voice:      false,
			Sentiment:  false,
		},
		Web: Web{
			Host: "127.0.0.1",
			Port: 7860,
		},
		Logging: Logging{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Manager loads the configuration and keeps it fresh on file changes. It
// implements agents.FeatureGates so the router picks up flag flips without
// a restart.
type Manager struct {
	v      *viper.Viper
	mtx    sync.RWMutex
	cfg    Config
	logger zerolog.Logger
}

var _ agents.FeatureGates = (*Manager)(nil)

// Load reads the configuration file at path. A missing file is created with
// the defaults first, so a fresh install starts with a config the operator
// can edit. Environment variables prefixed with POLYCHAT_ override any key.
func Load(path string) (*Manager, error) {
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	m := &Manager{v: v, logger: zerolog.Nop()}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteDefault writes the built-in configuration to path.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	bs, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("strategy", def.Strategy)
	for key, model := range def.Models {
		v.SetDefault("models."+key+".name", model.Name)
		v.SetDefault("models."+key+".api_base", model.APIBase)
		v.SetDefault("models."+key+".api_key", model.APIKey)
		v.SetDefault("models."+key+".temperature", model.Temperature)
		v.SetDefault("models."+key+".max_tokens", model.MaxTokens)
		v.SetDefault("models."+key+".vision", model.Vision)
	}
	v.SetDefault("embedding.name", def.Embedding.Name)
	v.SetDefault("embedding.api_base", def.Embedding.APIBase)
	v.SetDefault("embedding.api_key", def.Embedding.APIKey)
	v.SetDefault("apis.weather.key", def.APIs.Weather.Key)
	v.SetDefault("apis.weather.base_url", def.APIs.Weather.BaseURL)
	v.SetDefault("apis.weather.language", def.APIs.Weather.Language)
	v.SetDefault("apis.weather.unit", def.APIs.Weather.Unit)
	v.SetDefault("apis.baidu.api_key", def.APIs.Baidu.APIKey)
	v.SetDefault("apis.baidu.secret_key", def.APIs.Baidu.SecretKey)
	v.SetDefault("apis.baidu.base_url", def.APIs.Baidu.BaseURL)
	v.SetDefault("voice.recognition_url", def.Voice.RecognitionURL)
	v.SetDefault("voice.sample_rate", def.Voice.SampleRate)
	v.SetDefault("voice.tts.endpoint", def.Voice.TTS.Endpoint)
	v.SetDefault("voice.tts.voice", def.Voice.TTS.Voice)
	v.SetDefault("voice.tts.rate", def.Voice.TTS.Rate)
	v.SetDefault("features.weather", def.Features.Weather)
	v.SetDefault("features.education", def.Features.Education)
	v.SetDefault("features.ecommerce", def.Features.Ecommerce)
	v.SetDefault("features.government", def.Features.Government)
	v.SetDefault("features.voice", def.Features.Voice)
	v.SetDefault("features.sentiment", def.Features.Sentiment)
	v.SetDefault("features.show_analysis", def.Features.ShowAnalysis)
	v.SetDefault("web.host", def.Web.Host)
	v.SetDefault("web.port", def.Web.Port)
	v.SetDefault("web.auth.user", def.Web.Auth.User)
	v.SetDefault("web.auth.password", def.Web.Auth.Password)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.pretty", def.Logging.Pretty)
}

func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	m.mtx.Lock()
	m.cfg = cfg
	m.mtx.Unlock()
	return nil
}

// Config returns a snapshot of the current configuration.
func (m *Manager) Config() Config {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.cfg
}

// SetLogger sets the logger used for watch events.
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = logger.With().Str("component", "config").Logger()
}

// Watch reloads the configuration whenever the file changes. Feature flag
// flips take effect on the next routed message.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			m.logger.Error().Err(err).Str("file", e.Name).Msg("config reload failed")
			return
		}
		m.logger.Info().Str("file", e.Name).Msg("config reloaded")
	})
	m.v.WatchConfig()
}

// IntentEnabled implements agents.FeatureGates.
func (m *Manager) IntentEnabled(intent string) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	switch intent {
	case agents.IntentWeather:
		return m.cfg.Features.Weather
	case agents.IntentEducation:
		return m.cfg.Features.Education
	case agents.IntentEcommerce:
		return m.cfg.Features.Ecommerce
	case agents.IntentGovernment:
		return m.cfg.Features.Government
	default:
		return true
	}
}
