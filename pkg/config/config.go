package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	App       AppConfig                 `json:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways"`
	Providers map[string]ProviderConfig `json:"providers"`
	Store     StoreConfig               `json:"store"`
	Memory    MemoryConfig              `json:"memory"`
	Scheduler SchedulerConfig           `json:"scheduler"`
}

type AppConfig struct {
	Name         string   `json:"name"`
	ProjectRoot  string   `json:"project_root"`
	AllowedRoots []string `json:"allowed_roots"`
}

type GatewayConfig struct {
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
	Enabled bool   `json:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

type MemoryConfig struct {
	Path string `json:"path"`
}

type SchedulerConfig struct {
	GoalIntervalSeconds       int `json:"goal_interval_seconds"`
	ReflectionIntervalSeconds int `json:"reflection_interval_seconds"`
}

func LoadConfig(path string) *Config {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.App.ProjectRoot == "" {
		c.App.ProjectRoot = "./workspace"
	}
	if len(c.App.AllowedRoots) == 0 {
		c.App.AllowedRoots = []string{c.App.ProjectRoot}
	}
	if c.Store.Path == "" {
		c.Store.Path = "goals.db"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "memories.db"
	}
	if c.Scheduler.GoalIntervalSeconds <= 0 {
		c.Scheduler.GoalIntervalSeconds = 60
	}
	if c.Scheduler.ReflectionIntervalSeconds <= 0 {
		c.Scheduler.ReflectionIntervalSeconds = 1800
	}
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
