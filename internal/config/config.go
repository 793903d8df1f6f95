// Package config handles configuration loading, validation, and persistence
// for the MCWarden server manager.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"

	DefaultRconPort      = 25575
	DefaultLogServerPort = 25576
	DefaultAPIPort       = 5800
)

// Config is the root configuration structure for MCWarden.
type Config struct {
	mu   sync.RWMutex
	path string

	Minecraft       Minecraft       `json:"minecraft"`
	ApplicationData ApplicationData `json:"application_data"`
}

// Minecraft contains the target server and chat bridge configuration.
type Minecraft struct {
	// RCON endpoint
	RconHost     string `json:"rcon_host"`
	RconPort     int    `json:"rcon_port"`
	RconPassword string `json:"rcon_password"`

	// RCON timing
	ExecTimeoutSec  int `json:"rcon_exec_timeout_sec"`
	GraceReadMillis int `json:"rcon_grace_read_ms"`

	// Admission: two independent allow-lists. Empty list = admit all.
	ChatAdminIDs      []string `json:"admin_ids"`
	MinecraftAdminIDs []string `json:"mc_admin_ids"`

	// Dangerous-command gate (stop, raw)
	EnableDangerousCommands bool `json:"enable_dangerous_commands"`

	// Log monitor bridge
	EnableLogMonitor bool     `json:"enable_log_monitor"`
	LogServerHost    string   `json:"log_server_host"`
	LogServerPort    int      `json:"log_server_port"`
	WakeWords        []string `json:"wake_words"`

	// In-game replies
	EnableChatResponse bool   `json:"enable_chat_response"`
	BotNickname        string `json:"bot_nickname"`
}

// ApplicationData contains manager application configuration.
type ApplicationData struct {
	Timers  TimerConfig   `json:"timers"`
	API     APIConfig     `json:"api"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Audit   AuditConfig   `json:"audit"`
	Logging LoggingConfig `json:"logging"`
}

// TimerConfig holds health check and task interval settings.
type TimerConfig struct {
	RconPingInterval    int `json:"rcon_ping_interval_sec"`
	BridgeCheckInterval int `json:"bridge_check_interval_sec"`
	DiskCheckInterval   int `json:"disk_check_interval_sec"`
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	AuthToken      string   `json:"auth_token"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// AuditConfig holds command/chat audit trail settings.
type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	DatabasePath  string `json:"database_path"`
	RetentionDays int    `json:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Minecraft: Minecraft{
			RconHost:           "127.0.0.1",
			RconPort:           DefaultRconPort,
			ExecTimeoutSec:     5,
			GraceReadMillis:    120,
			EnableLogMonitor:   false,
			LogServerHost:      "127.0.0.1",
			LogServerPort:      DefaultLogServerPort,
			WakeWords:          []string{"bot"},
			EnableChatResponse: true,
			BotNickname:        "Warden",
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				RconPingInterval:    60,
				BridgeCheckInterval: 30,
				DiskCheckInterval:   3600,
			},
			API: APIConfig{
				Enabled: true,
				Port:    DefaultAPIPort,
			},
			MQTT: MQTTConfig{
				Enabled: false,
				Port:    1883,
			},
			Audit: AuditConfig{
				Enabled:       true,
				DatabasePath:  "config/audit.db",
				RetentionDays: 30,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetMinecraft returns a copy of the Minecraft configuration.
func (c *Config) GetMinecraft() Minecraft {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Minecraft
}

// SetMinecraft updates the Minecraft configuration.
func (c *Config) SetMinecraft(data Minecraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Minecraft = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// UpdateMinecraftField updates a specific field in the Minecraft section by its JSON key.
func (c *Config) UpdateMinecraftField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.Minecraft)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.Minecraft); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Minecraft.RconPassword == ""
}
