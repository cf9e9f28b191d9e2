// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the server configuration, merged from config files and
// environment variables.
type Config struct {
	// Model is the model identifier used for every session.
	Model string `json:"model,omitempty"`

	// APIKey authenticates against the model provider. Usually supplied
	// through ANTHROPIC_API_KEY rather than a file.
	APIKey string `json:"apiKey,omitempty"`

	// MaxTurns caps model calls per inbound message.
	MaxTurns int `json:"maxTurns,omitempty"`

	// MaxTokens caps completion length.
	MaxTokens int `json:"maxTokens,omitempty"`

	// DataDir is where transcripts, command history, and session logs are
	// stored. Defaults to the XDG data directory.
	DataDir string `json:"dataDir,omitempty"`

	// LogLevel is a zerolog level name (trace, debug, info, warn, error).
	LogLevel string `json:"logLevel,omitempty"`

	// Host and Port bind the HTTP server.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// Defaults applied after merging all sources.
const (
	DefaultModel    = "claude-sonnet-4-0"
	DefaultLogLevel = "info"
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 7420
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/easel/)
// 2. Project config (easel.json / .easel/easel.json in directory)
// 3. EASEL_CONFIG file
// 4. EASEL_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{}

	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "easel.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "easel.jsonc"), globalPath)

	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".easel")
		loadOnce(filepath.Join(directory, "easel.json"), directory)
		loadOnce(filepath.Join(directory, "easel.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "easel.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "easel.jsonc"), projectConfigDir)
	}

	if configPath := os.Getenv("EASEL_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	if configContent := os.Getenv("EASEL_CONFIG_CONTENT"); configContent != "" {
		var inline Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inline); err == nil {
			mergeConfig(config, &inline)
		}
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	if config.Host == "" {
		config.Host = DefaultHost
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.DataDir == "" {
		config.DataDir = GetPaths().StoragePath()
	}
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // keep original if file not found
		}

		escaped := strings.ReplaceAll(strings.TrimSpace(string(content)), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")
		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target. Later sources win.
func mergeConfig(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.APIKey != "" {
		target.APIKey = source.APIKey
	}
	if source.MaxTurns != 0 {
		target.MaxTurns = source.MaxTurns
	}
	if source.MaxTokens != 0 {
		target.MaxTokens = source.MaxTokens
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
}

// applyEnvOverrides applies environment variable overrides (highest
// priority).
func applyEnvOverrides(config *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.APIKey = key
	}
	if model := os.Getenv("EASEL_MODEL"); model != "" {
		config.Model = model
	}
	if dir := os.Getenv("EASEL_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if level := os.Getenv("EASEL_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if host := os.Getenv("EASEL_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("EASEL_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Port = n
		}
	}
	if turns := os.Getenv("EASEL_MAX_TURNS"); turns != "" {
		if n, err := strconv.Atoi(turns); err == nil {
			config.MaxTurns = n
		}
	}
}

// Save writes the configuration to a file.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
