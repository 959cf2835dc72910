// Package config provides configuration loading for repograph.
// Settings come from environment variables, optionally overridden by CLI flags.
// When slip lookups are enabled it also loads the ClickHouse connection and the
// pipeline configuration from HashiCorp Vault or a local file.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	jsoniter "github.com/json-iterator/go"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Environment variable names.
const (
	// EnvRepoDir is the location of the repository to serve.
	EnvRepoDir = "REPO_DIR"

	// EnvListenAddr is the HTTP listen address for the serve command.
	EnvListenAddr = "LISTEN_ADDR"

	// EnvObjectCacheSize is the number of decoded commits kept in memory.
	EnvObjectCacheSize = "OBJECT_CACHE_SIZE"

	// EnvSlippyEnabled turns on routing slip lookups for commits.
	EnvSlippyEnabled = "SLIPPY_ENABLED"

	// EnvDatabase is the ClickHouse database holding routing slips.
	EnvDatabase = "SLIPPY_DATABASE"

	// EnvPipelineConfig is the path to the pipeline configuration JSON file (fallback when Vault is not configured).
	EnvPipelineConfig = "SLIPPY_PIPELINE_CONFIG"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvVaultPipelineConfigPath is the path in Vault KV where pipeline config is stored.
	// An optional "#key" suffix names the secret key holding the JSON document.
	EnvVaultPipelineConfigPath = "VAULT_PIPELINE_CONFIG_PATH"

	// EnvVaultPipelineConfigMount is the Vault KV mount point (defaults to "secret").
	EnvVaultPipelineConfigMount = "VAULT_PIPELINE_CONFIG_MOUNT"
)

// Default values.
const (
	DefaultListenAddr         = ":3000"
	DefaultLogLevel           = "info"
	DefaultLogAppName         = "repograph"
	DefaultDatabase           = "ci"
	DefaultVaultPipelineMount = "secret"
	DefaultSecretKey          = "config"
)

// Configuration errors.
var (
	// ErrRepoDirRequired indicates no repository location was given.
	ErrRepoDirRequired = errors.New("repository location required: set REPO_DIR or pass --repo")

	// ErrInvalidSetting indicates an environment variable holds a malformed value.
	ErrInvalidSetting = errors.New("invalid configuration value")

	// ErrPipelineConfigRequired indicates pipeline config source is not available.
	ErrPipelineConfigRequired = errors.New(
		"pipeline configuration required: set VAULT_PIPELINE_CONFIG_PATH (with VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID) " +
			"or SLIPPY_PIPELINE_CONFIG for local file",
	)

	// ErrPipelineConfigNotFound indicates the pipeline config file does not exist.
	ErrPipelineConfigNotFound = errors.New("pipeline configuration file not found")

	// ErrPipelineConfigInvalid indicates the pipeline config is not valid JSON.
	ErrPipelineConfigInvalid = errors.New("pipeline configuration is not valid JSON")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("pipeline configuration not found in Vault")
)

// VaultClient defines the interface for Vault operations.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Overrides holds values given on the command line. Non-empty fields win
// over the environment.
type Overrides struct {
	RepoDir    string
	ListenAddr string
}

// Config holds all application configuration.
type Config struct {
	// RepoDir is the repository location.
	RepoDir string

	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// ObjectCacheSize bounds the decoded commit cache.
	ObjectCacheSize int

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string

	// SlippyEnabled reports whether Commit.slip lookups are served.
	SlippyEnabled bool

	// ClickHouse holds the ClickHouse connection configuration. Nil unless SlippyEnabled.
	ClickHouse *ch.ClickhouseConfig

	// PipelineConfig holds the pipeline step definitions. Nil unless SlippyEnabled.
	PipelineConfig *slippy.PipelineConfig

	// Database is the ClickHouse database name for slip storage.
	Database string
}

// Load loads the application configuration from environment variables.
//
// When SLIPPY_ENABLED is true, pipeline configuration is loaded from Vault
// (preferred) or a local file (fallback). For Vault loading, requires:
//   - VAULT_ADDRESS: Vault server address
//   - VAULT_ROLE_ID: AppRole role ID
//   - VAULT_SECRET_ID: AppRole secret ID
//   - VAULT_PIPELINE_CONFIG_PATH: Path to the secret in Vault, optionally suffixed with #key
//   - VAULT_PIPELINE_CONFIG_MOUNT: KV mount point (optional, defaults to "secret")
//
// For file loading (fallback):
//   - SLIPPY_PIPELINE_CONFIG: Path to local JSON file
func Load(overrides Overrides) (*Config, error) {
	return LoadWithVaultClient(context.Background(), overrides, nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
func LoadWithVaultClient(
	ctx context.Context,
	overrides Overrides,
	vaultClientFactory VaultClientFactory,
) (*Config, error) {
	cfg := &Config{
		RepoDir:    firstNonEmpty(overrides.RepoDir, os.Getenv(EnvRepoDir)),
		ListenAddr: firstNonEmpty(overrides.ListenAddr, os.Getenv(EnvListenAddr), DefaultListenAddr),
		LogLevel:   firstNonEmpty(os.Getenv(EnvLogLevel), DefaultLogLevel),
		LogAppName: firstNonEmpty(os.Getenv(EnvLogAppName), DefaultLogAppName),
		Database:   firstNonEmpty(os.Getenv(EnvDatabase), DefaultDatabase),
	}
	if cfg.RepoDir == "" {
		return nil, ErrRepoDirRequired
	}

	var err error
	if cfg.ObjectCacheSize, err = intFromEnv(EnvObjectCacheSize, domain.DefaultObjectCacheSize); err != nil {
		return nil, err
	}
	if cfg.SlippyEnabled, err = boolFromEnv(EnvSlippyEnabled, false); err != nil {
		return nil, err
	}
	if !cfg.SlippyEnabled {
		return cfg, nil
	}

	cfg.ClickHouse, err = ch.ClickhouseLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ClickHouse config: %w", err)
	}

	cfg.PipelineConfig, err = loadPipelineConfigWithVault(ctx, vaultClientFactory)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q must be a positive integer", ErrInvalidSetting, name, raw)
	}
	return n, nil
}

func boolFromEnv(name string, def bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q must be a boolean", ErrInvalidSetting, name, raw)
	}
	return b, nil
}

// loadPipelineConfigWithVault attempts to load pipeline config from Vault first,
// falling back to local file if Vault is not configured.
func loadPipelineConfigWithVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
) (*slippy.PipelineConfig, error) {
	if vaultPath := os.Getenv(EnvVaultPipelineConfigPath); vaultPath != "" {
		return loadPipelineConfigFromVault(ctx, vaultClientFactory, vaultPath)
	}

	pipelineConfigPath := os.Getenv(EnvPipelineConfig)
	if pipelineConfigPath == "" {
		return nil, ErrPipelineConfigRequired
	}

	return loadPipelineConfigFromFile(pipelineConfigPath)
}

// parseVaultPath splits "path#key" on the last '#'. Without a '#' the key is
// DefaultSecretKey.
func parseVaultPath(fullPath string) (path, key string) {
	idx := strings.LastIndex(fullPath, "#")
	if idx < 0 {
		return fullPath, DefaultSecretKey
	}
	return fullPath[:idx], fullPath[idx+1:]
}

// loadPipelineConfigFromVault loads pipeline configuration from Vault KV v2.
func loadPipelineConfigFromVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	fullPath string,
) (*slippy.PipelineConfig, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return nil, err
	}

	mount := firstNonEmpty(os.Getenv(EnvVaultPipelineConfigMount), DefaultVaultPipelineMount)
	path, key := parseVaultPath(fullPath)

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return nil, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	return parsePipelineConfigFromVault(secretData, key)
}

// parsePipelineConfigFromVault parses pipeline config from Vault secret data.
// The key may hold the config as a JSON string; otherwise the secret itself
// is treated as the config document.
func parsePipelineConfigFromVault(secretData map[string]interface{}, key string) (*slippy.PipelineConfig, error) {
	if configStr, ok := secretData[key].(string); ok && key != "" {
		var config slippy.PipelineConfig
		if err := json.Unmarshal([]byte(configStr), &config); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPipelineConfigInvalid, err)
		}
		return &config, nil
	}

	jsonData, err := json.Marshal(secretData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal secret data: %w", ErrPipelineConfigInvalid, err)
	}

	var config slippy.PipelineConfig
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineConfigInvalid, err)
	}

	return &config, nil
}

// loadPipelineConfigFromFile loads the pipeline configuration from the specified file path.
func loadPipelineConfigFromFile(path string) (*slippy.PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPipelineConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}

	var config slippy.PipelineConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineConfigInvalid, err)
	}

	return &config, nil
}
