package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	CloudName       string
	CloudAPIKey     string
	CloudAPISecret  string
	CloudFolder     string
	AIProvider      string
	OpenAIAPIKey    string
	OpenAIModel     string
	BotNickname     string
	BotPersona      string
	DefaultChannels []string
	HistoryLimit    int
	WidgetCSSClass  string
	AllowedOrigins  string
	PrefsDir        string
	Features        map[string]bool
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
	v.SetEnvPrefix("VELORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Velora Chat API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloud.folder", "velora/documents")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("bot.nickname", "Vela")
	v.SetDefault("bot.persona", "You are Vela, the friendly resident assistant of this chat. Keep replies short and conversational.")
	v.SetDefault("channels.default", "general,random")
	v.SetDefault("history.limit", 50)
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("prefs.dir", "data/prefs")
	v.SetDefault("feature.embedding", true)
	v.SetDefault("feature.registration", true)

	historyLimit := v.GetInt("history.limit")
	if historyLimit <= 0 {
		historyLimit = 50
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		AppPort:        v.GetString("app.port"),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		NATSURL:        v.GetString("nats.url"),
		JWTSecret:      v.GetString("jwt.secret"),
		CloudName:      v.GetString("cloud.name"),
		CloudAPIKey:    v.GetString("cloud.api_key"),
		CloudAPISecret: v.GetString("cloud.api_secret"),
		CloudFolder:    v.GetString("cloud.folder"),
		AIProvider:     strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:   v.GetString("openai_api_key"),
		OpenAIModel:    v.GetString("ai.model"),
		BotNickname:    v.GetString("bot.nickname"),
		BotPersona:     v.GetString("bot.persona"),
		HistoryLimit:   historyLimit,
		WidgetCSSClass: v.GetString("widget.css_class"),
		AllowedOrigins: v.GetString("cors.allow_origins"),
		PrefsDir:       v.GetString("prefs.dir"),
		Features: map[string]bool{
			"embedding":    v.GetBool("feature.embedding"),
			"registration": v.GetBool("feature.registration"),
		},
	}

	for _, name := range strings.Split(v.GetString("channels.default"), ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.DefaultChannels = append(cfg.DefaultChannels, trimmed)
		}
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if len(cfg.DefaultChannels) == 0 {
		cfg.DefaultChannels = []string{"general"}
	}

	return cfg, nil
}
