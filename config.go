package main

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".tistory2git"

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SettingsPath   *string
	PromptPath     *string
	SlugPromptPath *string
	EnvFile        *string
}

// Embedded configuration files
//
//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/markdown-system-prompt.md
var defaultMarkdownPrompt string

//go:embed config/slug-system-prompt.md
var defaultSlugPrompt string

// CompletionSettings configures the text-completion service
type CompletionSettings struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// GitHubSettings names the branch pair publishing works against
type GitHubSettings struct {
	Branch     string `yaml:"branch"`
	BaseBranch string `yaml:"base_branch"`
}

// ExtractSettings configures content region detection
type ExtractSettings struct {
	Selectors           []string `yaml:"selectors"`
	DateSelector        string   `yaml:"date_selector"`
	ReadabilityFallback bool     `yaml:"readability_fallback"`
}

// BrowserSettings holds the bounded waits of the admin console session
type BrowserSettings struct {
	Headless       bool   `yaml:"headless"`
	LoginTimeout   string `yaml:"login_timeout"`
	ListingTimeout string `yaml:"listing_timeout"`
	ListingSettle  string `yaml:"listing_settle"`
	PageSettle     string `yaml:"page_settle"`
	PostSettle     string `yaml:"post_settle"`
}

// TransformSettings toggles the local front matter repair pass
type TransformSettings struct {
	Repair bool `yaml:"repair"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	StagingDirectory string             `yaml:"staging_directory"`
	HistoryPath      string             `yaml:"history_path"`
	Completion       CompletionSettings `yaml:"completion"`
	GitHub           GitHubSettings     `yaml:"github"`
	Extract          ExtractSettings    `yaml:"extract"`
	Browser          BrowserSettings    `yaml:"browser"`
	Transform        TransformSettings  `yaml:"transform"`
}

// Credentials are read from the environment (and .env)
type Credentials struct {
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY"`
	GitHubToken   string `envconfig:"GITHUB_TOKEN"`
	GitHubRepo    string `envconfig:"GITHUB_REPO_NAME"`
	FeedURL       string `envconfig:"TISTORY_RSS_URL"`
	BlogName      string `envconfig:"TISTORY_BLOG_NAME"`
	LoginID       string `envconfig:"TISTORY_ID"`
	LoginPassword string `envconfig:"TISTORY_PW"`
}

// Config holds configuration and overrides
type Config struct {
	Settings    *Settings
	Credentials Credentials
	Overrides   *ConfigOverrides
}

// NewConfig creates a new Config with settings, credentials and overrides
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	if overrides == nil {
		overrides = &ConfigOverrides{}
	}

	var settings *Settings
	var err error
	if overrides.SettingsPath != nil {
		settings, err = loadSettings(*overrides.SettingsPath, true)
	} else {
		if err := ensureConfigExists(); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettings(getConfigPath("settings.yaml"), false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	creds, err := loadCredentials(overrides.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return &Config{
		Settings:    settings,
		Credentials: creds,
		Overrides:   overrides,
	}, nil
}

// Validate checks that the credentials needed by the chosen source are present
func (c *Config) Validate(source string, publish bool) error {
	switch source {
	case SourceFeed:
		if c.Credentials.FeedURL == "" {
			return fmt.Errorf("TISTORY_RSS_URL is required for the feed source")
		}
	case SourceAdmin:
		if c.Credentials.BlogName == "" {
			return fmt.Errorf("TISTORY_BLOG_NAME is required for the admin source")
		}
	default:
		return fmt.Errorf("unknown source %q (want %q or %q)", source, SourceFeed, SourceAdmin)
	}

	switch c.Settings.Completion.Provider {
	case ProviderOpenAI:
		if c.Credentials.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderAnthropic:
		if c.Credentials.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("unknown completion provider %q", c.Settings.Completion.Provider)
	}

	if publish {
		return c.ValidatePublish()
	}
	return nil
}

// ValidatePublish checks the hosting credentials
func (c *Config) ValidatePublish() error {
	if c.Credentials.GitHubToken == "" || c.Credentials.GitHubRepo == "" {
		return fmt.Errorf("GITHUB_TOKEN and GITHUB_REPO_NAME are required to publish")
	}
	if _, _, err := splitRepoName(c.Credentials.GitHubRepo); err != nil {
		return err
	}
	return nil
}

// GetMarkdownPrompt returns the conversion prompt (from override file or embedded)
func (c *Config) GetMarkdownPrompt() string {
	if c.Overrides != nil && c.Overrides.PromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.PromptPath); err == nil {
			return string(content)
		}
		log.Printf("Warning: prompt file %s unreadable, using embedded prompt", *c.Overrides.PromptPath)
	}
	return defaultMarkdownPrompt
}

// GetSlugPrompt returns the slug prompt (from override file or embedded)
func (c *Config) GetSlugPrompt() string {
	if c.Overrides != nil && c.Overrides.SlugPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.SlugPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultSlugPrompt
}

// CompletionTimeout returns the HTTP timeout for completion calls
func (s *Settings) CompletionTimeout() time.Duration {
	return durationOr(s.Completion.Timeout, 300*time.Second)
}

// defaultSettingsValues parses the embedded settings file
func defaultSettingsValues() *Settings {
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettings), &settings); err != nil {
		panic(fmt.Sprintf("embedded settings.yaml is invalid: %v", err))
	}
	return &settings
}

// loadSettings merges a settings file over the embedded defaults
func loadSettings(settingsPath string, required bool) (*Settings, error) {
	settings := defaultSettingsValues()

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	if len(settings.Extract.Selectors) == 0 {
		log.Printf("Warning: extract.selectors is empty, using defaults")
		settings.Extract.Selectors = defaultSettingsValues().Extract.Selectors
	}
	if settings.GitHub.Branch == "" {
		settings.GitHub.Branch = "backup"
	}
	if settings.GitHub.BaseBranch == "" {
		settings.GitHub.BaseBranch = "main"
	}

	return settings, nil
}

// loadCredentials loads .env (if present) and then reads the environment
func loadCredentials(envFile *string) (Credentials, error) {
	var creds Credentials

	if envFile != nil {
		if err := godotenv.Load(*envFile); err != nil {
			return creds, fmt.Errorf("loading %s: %w", *envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return creds, fmt.Errorf("loading .env: %w", err)
	}

	if err := envconfig.Process("", &creds); err != nil {
		return creds, err
	}
	return creds, nil
}

// getConfigPath returns the path to a config file in .tistory2git directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and default settings if they don't exist
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("failed to write default settings: %w", err)
		}
	}

	return nil
}

// splitRepoName splits "owner/name"
func splitRepoName(full string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(full), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("GITHUB_REPO_NAME must look like owner/name, got %q", full)
	}
	return parts[0], parts[1], nil
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		debugLog("invalid duration %q, using %s", s, def)
		return def
	}
	return d
}
