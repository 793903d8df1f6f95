package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateMinecraft(&cfg.Minecraft, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateMinecraft(data *Minecraft, result *ValidationResult) {
	if strings.TrimSpace(data.RconHost) == "" {
		result.AddError("minecraft.rcon_host", "rcon host is required")
	}
	if data.RconPort < 1 || data.RconPort > 65535 {
		result.AddError("minecraft.rcon_port", fmt.Sprintf("invalid port: %d", data.RconPort))
	}
	if strings.TrimSpace(data.RconPassword) == "" {
		result.AddError("minecraft.rcon_password", "rcon password is required (enable-rcon with a password in server.properties)")
	}

	if data.ExecTimeoutSec < 1 {
		result.AddWarning("minecraft.rcon_exec_timeout_sec", "timeout below 1s, using default")
	}

	if data.EnableLogMonitor {
		if strings.TrimSpace(data.LogServerHost) == "" {
			result.AddError("minecraft.log_server_host", "log server host is required when the log monitor is enabled")
		}
		if data.LogServerPort < 1 || data.LogServerPort > 65535 {
			result.AddError("minecraft.log_server_port", fmt.Sprintf("invalid port: %d", data.LogServerPort))
		}
		if len(data.WakeWords) == 0 {
			result.AddWarning("minecraft.wake_words", "no wake words configured, no chat will reach the command path")
		}
	}

	if data.EnableChatResponse && strings.TrimSpace(data.BotNickname) == "" {
		result.AddWarning("minecraft.bot_nickname", "empty bot nickname, in-game replies will be unattributed")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.API.Enabled {
		if data.API.Port < 1 || data.API.Port > 65535 {
			result.AddError("application_data.api.port", fmt.Sprintf("invalid port: %d", data.API.Port))
		}
	}

	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "broker url is required when MQTT is enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", fmt.Sprintf("invalid port: %d", data.MQTT.Port))
		}
	}

	if data.Audit.Enabled && strings.TrimSpace(data.Audit.DatabasePath) == "" {
		result.AddError("application_data.audit.database_path", "database path is required when audit is enabled")
	}

	switch strings.ToLower(data.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		result.AddWarning("application_data.logging.level",
			fmt.Sprintf("unknown log level %q, falling back to info", data.Logging.Level))
	}
}
