package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║          MCWarden - First Run Setup          ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Println("║  Welcome! Let's connect to your server.      ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("── RCON Endpoint ──")

	cfg.Minecraft.RconHost = promptString(reader, "Minecraft server host", cfg.Minecraft.RconHost)
	cfg.Minecraft.RconPort = promptInt(reader, "RCON port", cfg.Minecraft.RconPort)
	cfg.Minecraft.RconPassword = promptPassword(reader, "RCON password (rcon.password in server.properties)")

	fmt.Println()
	fmt.Println("── Chat Bridge ──")

	cfg.Minecraft.EnableLogMonitor = promptBool(reader, "Enable in-game chat monitoring (requires mclogd on the server host)", cfg.Minecraft.EnableLogMonitor)
	if cfg.Minecraft.EnableLogMonitor {
		cfg.Minecraft.LogServerHost = promptString(reader, "Log server host", cfg.Minecraft.LogServerHost)
		cfg.Minecraft.LogServerPort = promptInt(reader, "Log server port", cfg.Minecraft.LogServerPort)
		words := promptString(reader, "Wake words (comma separated)", strings.Join(cfg.Minecraft.WakeWords, ","))
		cfg.Minecraft.WakeWords = splitTrimmed(words)
		cfg.Minecraft.EnableChatResponse = promptBool(reader, "Reply to players in game chat", cfg.Minecraft.EnableChatResponse)
		cfg.Minecraft.BotNickname = promptString(reader, "Bot display name", cfg.Minecraft.BotNickname)
	}

	fmt.Println()
	fmt.Println("── Safety ──")

	cfg.Minecraft.EnableDangerousCommands = promptBool(reader,
		"Allow dangerous commands (stop, raw)", cfg.Minecraft.EnableDangerousCommands)

	fmt.Println()
	fmt.Println("── MQTT Telemetry ──")

	cfg.ApplicationData.MQTT.Enabled = promptBool(reader, "Enable MQTT telemetry", cfg.ApplicationData.MQTT.Enabled)
	if cfg.ApplicationData.MQTT.Enabled {
		cfg.ApplicationData.MQTT.BrokerURL = promptString(reader, "MQTT broker URL", cfg.ApplicationData.MQTT.BrokerURL)
		cfg.ApplicationData.MQTT.Port = promptInt(reader, "MQTT broker port", cfg.ApplicationData.MQTT.Port)
	}

	// Validate before saving
	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Println("\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - [%s] %s\n", e.Field, e.Message)
		}
		retry := promptString(reader, "Would you like to try again? (yes/no)", "yes")
		if strings.ToLower(retry) == "yes" {
			return RunSetupWizard(cfg)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved successfully!")
	fmt.Println("  MCWarden will now start with your configuration.")
	fmt.Println()

	return nil
}

func splitTrimmed(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func promptString(reader *bufio.Reader, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptPassword(reader *bufio.Reader, prompt string) string {
	fmt.Printf("  %s: ", prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptInt(reader *bufio.Reader, prompt string, defaultVal int) int {
	fmt.Printf("  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Printf("    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Printf("  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
