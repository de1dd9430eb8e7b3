package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in SOURCE_PROVIDER.
const (
	ProviderBitbucket = "bitbucket"
	ProviderGitHub    = "github"
)

// Config holds all configuration for one pipeline run. It is assembled once
// at process start and passed into each component; pipeline logic never
// reads the environment on its own.
type Config struct {
	Provider string

	Bitbucket struct {
		Username    string
		Email       string
		AppPassword string
		Workspace   string
		RepoSlug    string
	}

	GitHub struct {
		Token string
		Owner string
		Repo  string
	}

	GeminiAPIKey string
	GeminiModel  string

	GoogleCredentialsFile string
	GoogleDocID           string

	Timezone string
	Location *time.Location

	// Contributor allow-list. Defaults to the configured account identity;
	// the YAML file can widen it.
	AllowedEmails    []string
	AllowedUsernames []string

	Verbose bool
	Quiet   bool
	DryRun  bool
}

// fileConfig is the optional YAML configuration file. It carries only
// non-secret settings; credentials always come from the environment.
type fileConfig struct {
	Timezone         string   `yaml:"timezone"`
	GeminiModel      string   `yaml:"gemini_model"`
	AllowedEmails    []string `yaml:"allowed_emails"`
	AllowedUsernames []string `yaml:"allowed_usernames"`
}

// FromEnvAndFlags creates a Config from environment variables, the optional
// YAML config file, and CLI flags.
func FromEnvAndFlags(configPath string, verbose, quiet, dryRun bool) (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Provider:              os.Getenv("SOURCE_PROVIDER"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           os.Getenv("GEMINI_MODEL"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_SERVICE_ACCOUNT_FILE"),
		GoogleDocID:           os.Getenv("GOOGLE_DOC_ID"),
		Timezone:              os.Getenv("REPORT_TIMEZONE"),
		Verbose:               verbose && !quiet, // verbose is disabled if quiet is set
		Quiet:                 quiet,
		DryRun:                dryRun,
	}

	cfg.Bitbucket.Username = os.Getenv("BITBUCKET_USERNAME")
	cfg.Bitbucket.Email = os.Getenv("BITBUCKET_EMAIL")
	cfg.Bitbucket.AppPassword = os.Getenv("BITBUCKET_APP_PASSWORD")
	cfg.Bitbucket.Workspace = os.Getenv("WORKSPACE")
	cfg.Bitbucket.RepoSlug = os.Getenv("REPO_SLUG")

	cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	cfg.GitHub.Owner = os.Getenv("GITHUB_OWNER")
	cfg.GitHub.Repo = os.Getenv("GITHUB_REPO")

	if cfg.Provider == "" {
		cfg.Provider = ProviderBitbucket
	}

	if configPath != "" {
		if err := cfg.applyFile(configPath); err != nil {
			return nil, err
		}
	}

	// Default the allow-list to the configured account identity.
	switch cfg.Provider {
	case ProviderBitbucket:
		if cfg.Bitbucket.Email != "" {
			cfg.AllowedEmails = append(cfg.AllowedEmails, cfg.Bitbucket.Email)
		}
		if cfg.Bitbucket.Username != "" {
			cfg.AllowedUsernames = append(cfg.AllowedUsernames, cfg.Bitbucket.Username)
		}
	case ProviderGitHub:
		if cfg.GitHub.Owner != "" {
			cfg.AllowedUsernames = append(cfg.AllowedUsernames, cfg.GitHub.Owner)
		}
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile merges the YAML config file into the Config. File values win
// over environment defaults for the settings they name; allow-list entries
// are additive.
func (c *Config) applyFile(path string) error {
	cleaned := filepath.Clean(path)

	data, err := os.ReadFile(cleaned)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleaned, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cleaned, err)
	}

	if file.Timezone != "" {
		c.Timezone = file.Timezone
	}
	if file.GeminiModel != "" {
		c.GeminiModel = file.GeminiModel
	}
	c.AllowedEmails = append(c.AllowedEmails, file.AllowedEmails...)
	c.AllowedUsernames = append(c.AllowedUsernames, file.AllowedUsernames...)

	return nil
}

// validate checks that every credential the run will need is present.
func (c *Config) validate() error {
	switch c.Provider {
	case ProviderBitbucket:
		if c.Bitbucket.Username == "" {
			return errors.New("BITBUCKET_USERNAME environment variable is required")
		}
		if c.Bitbucket.AppPassword == "" {
			return errors.New("BITBUCKET_APP_PASSWORD environment variable is required")
		}
		if c.Bitbucket.Workspace == "" {
			return errors.New("WORKSPACE environment variable is required")
		}
		if c.Bitbucket.RepoSlug == "" {
			return errors.New("REPO_SLUG environment variable is required")
		}
	case ProviderGitHub:
		if c.GitHub.Token == "" {
			return errors.New("GITHUB_TOKEN environment variable is required")
		}
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return errors.New("GITHUB_OWNER and GITHUB_REPO environment variables are required")
		}
	default:
		return fmt.Errorf("unknown SOURCE_PROVIDER %q (expected %q or %q)", c.Provider, ProviderBitbucket, ProviderGitHub)
	}

	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}

	// A dry run stops before the document write, so Docs credentials are
	// only required for real runs.
	if !c.DryRun {
		if c.GoogleCredentialsFile == "" {
			return errors.New("GOOGLE_CREDENTIALS_SERVICE_ACCOUNT_FILE environment variable is required")
		}
		if c.GoogleDocID == "" {
			return errors.New("GOOGLE_DOC_ID environment variable is required")
		}
	}

	return nil
}
