package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// mockVaultClient implements VaultClient interface for testing.
type mockVaultClient struct {
	secrets map[string]map[string]interface{}
	err     error
}

func (m *mockVaultClient) GetKVSecret(_ context.Context, path, _ string) (map[string]interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	if secret, ok := m.secrets[path]; ok {
		return secret, nil
	}
	return nil, errors.New("secret not found")
}

// mockVaultClientFactory creates a factory that returns the provided mock client.
func mockVaultClientFactory(client VaultClient, err error) VaultClientFactory {
	return func(_ context.Context) (VaultClient, error) {
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// clearEnv unsets every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvRepoDir, EnvListenAddr, EnvObjectCacheSize, EnvSlippyEnabled, EnvDatabase,
		EnvPipelineConfig, EnvLogLevel, EnvLogAppName, EnvVaultPipelineConfigPath,
		EnvVaultPipelineConfigMount,
	} {
		t.Setenv(name, "")
	}
}

func writePipelineConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validPipelineConfig = `{
	"version": "1",
	"name": "test-pipeline",
	"steps": [
		{"name": "push_parsed", "description": "Push parsed"}
	]
}`

func TestLoad_RepoDirRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load(Overrides{})

	assert.ErrorIs(t, err, ErrRepoDirRequired)
}

func TestLoad_Settings(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		overrides Overrides
		want      Config
	}{
		{
			name: "defaults",
			env:  map[string]string{EnvRepoDir: "/srv/repo"},
			want: Config{
				RepoDir:         "/srv/repo",
				ListenAddr:      DefaultListenAddr,
				ObjectCacheSize: domain.DefaultObjectCacheSize,
				LogLevel:        DefaultLogLevel,
				LogAppName:      DefaultLogAppName,
				Database:        DefaultDatabase,
			},
		},
		{
			name: "environment",
			env: map[string]string{
				EnvRepoDir:         "/srv/repo",
				EnvListenAddr:      "127.0.0.1:8080",
				EnvObjectCacheSize: "128",
				EnvLogLevel:        "debug",
				EnvLogAppName:      "custom-app",
				EnvDatabase:        "production",
				EnvSlippyEnabled:   "false",
			},
			want: Config{
				RepoDir:         "/srv/repo",
				ListenAddr:      "127.0.0.1:8080",
				ObjectCacheSize: 128,
				LogLevel:        "debug",
				LogAppName:      "custom-app",
				Database:        "production",
			},
		},
		{
			name:      "flags override environment",
			env:       map[string]string{EnvRepoDir: "/srv/repo", EnvListenAddr: ":9000"},
			overrides: Overrides{RepoDir: "/tmp/other", ListenAddr: ":7000"},
			want: Config{
				RepoDir:         "/tmp/other",
				ListenAddr:      ":7000",
				ObjectCacheSize: domain.DefaultObjectCacheSize,
				LogLevel:        DefaultLogLevel,
				LogAppName:      DefaultLogAppName,
				Database:        DefaultDatabase,
			},
		},
		{
			name:      "flag supplies missing repo dir",
			overrides: Overrides{RepoDir: "."},
			want: Config{
				RepoDir:         ".",
				ListenAddr:      DefaultListenAddr,
				ObjectCacheSize: domain.DefaultObjectCacheSize,
				LogLevel:        DefaultLogLevel,
				LogAppName:      DefaultLogAppName,
				Database:        DefaultDatabase,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			// Act
			cfg, err := Load(tt.overrides)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{name: "cache size not a number", env: EnvObjectCacheSize, val: "lots"},
		{name: "cache size zero", env: EnvObjectCacheSize, val: "0"},
		{name: "slippy enabled not a bool", env: EnvSlippyEnabled, val: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvRepoDir, "/srv/repo")
			t.Setenv(tt.env, tt.val)

			_, err := Load(Overrides{})

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSetting)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}

func TestLoad_SlipsDisabledSkipsPipelineConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRepoDir, "/srv/repo")

	cfg, err := Load(Overrides{})

	require.NoError(t, err)
	assert.False(t, cfg.SlippyEnabled)
	assert.Nil(t, cfg.ClickHouse)
	assert.Nil(t, cfg.PipelineConfig)
}

func TestLoad_MissingPipelineConfig(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)

	// Act
	_, err := Load(Overrides{})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineConfigRequired)
}

func TestLoad_PipelineConfigFile(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
		wantMsg string
	}{
		{
			name: "valid",
			path: func(t *testing.T) string { return writePipelineConfig(t, validPipelineConfig) },
		},
		{
			name:    "not found",
			path:    func(_ *testing.T) string { return "/nonexistent/path/to/config.json" },
			wantErr: ErrPipelineConfigNotFound,
		},
		{
			name:    "invalid JSON",
			path:    func(t *testing.T) string { return writePipelineConfig(t, "not valid json") },
			wantErr: ErrPipelineConfigInvalid,
		},
		{
			name: "directory instead of file",
			path: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "not-a-file")
				require.NoError(t, os.Mkdir(dir, 0o755))
				return dir
			},
			wantMsg: "failed to read pipeline config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			setSlippyEnvVars(t)
			t.Setenv(EnvPipelineConfig, tt.path(t))

			// Act
			cfg, err := Load(Overrides{})

			// Assert
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrPipelineConfigNotFound)
				assert.Contains(t, err.Error(), tt.wantMsg)
			default:
				require.NoError(t, err)
				assert.True(t, cfg.SlippyEnabled)
				assert.NotNil(t, cfg.ClickHouse)
				require.NotNil(t, cfg.PipelineConfig)
				assert.Equal(t, "test-pipeline", cfg.PipelineConfig.Name)
				assert.Equal(t, DefaultDatabase, cfg.Database)
			}
		})
	}
}

// Vault integration tests

func TestLoadWithVaultClient_VaultConfigAsJSONString(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")

	// Create mock vault client with JSON string in "config" key
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"config": `{"version":"1","name":"vault-pipeline","steps":[{"name":"push_parsed","description":"Push parsed"}]}`,
			},
		},
	}

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.PipelineConfig)
	assert.Equal(t, "vault-pipeline", cfg.PipelineConfig.Name)
}

func TestLoadWithVaultClient_VaultConfigAsDirectMapping(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")

	// Create mock vault client with direct mapping
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"version": "1",
				"name":    "direct-mapping-pipeline",
				"steps": []interface{}{
					map[string]interface{}{
						"name":        "push_parsed",
						"description": "Push parsed",
					},
				},
			},
		},
	}

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.PipelineConfig)
	assert.Equal(t, "direct-mapping-pipeline", cfg.PipelineConfig.Name)
}

func TestLoadWithVaultClient_VaultClientError(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")

	// Create factory that returns an error
	factory := mockVaultClientFactory(nil, errors.New("vault connection failed"))

	// Act
	_, err := LoadWithVaultClient(context.Background(), Overrides{}, factory)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault connection failed")
}

func TestLoadWithVaultClient_VaultSecretNotFound(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "nonexistent/path")

	// Create mock vault client with no secrets
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{},
	}

	// Act
	_, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVaultSecretNotFound)
}

func TestLoadWithVaultClient_VaultInvalidJSON(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")

	// Create mock vault client with invalid JSON in config key
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"config": "not valid json",
			},
		},
	}

	// Act
	_, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineConfigInvalid)
}

func TestLoadWithVaultClient_CustomMount(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")
	t.Setenv(EnvVaultPipelineConfigMount, "custom-kv")

	// Create mock vault client
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"config": `{"version":"1","name":"custom-mount-pipeline","steps":[]}`,
			},
		},
	}

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "custom-mount-pipeline", cfg.PipelineConfig.Name)
}

func TestLoadWithVaultClient_FallsBackToFile(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvPipelineConfig, writePipelineConfig(t, `{"version":"1","name":"file-fallback-pipeline","steps":[]}`))
	factory := mockVaultClientFactory(nil, errors.New("vault must not be used"))

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, factory)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "file-fallback-pipeline", cfg.PipelineConfig.Name)
}

func TestParsePipelineConfigFromVault_MarshalError(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline")

	// Create mock vault client with data that will fail unmarshal to PipelineConfig
	// (valid JSON but wrong structure for PipelineConfig)
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				// No "config" key, and invalid structure for direct mapping
				"invalid_field": make(chan int), // channels can't be marshaled to JSON
			},
		},
	}

	// Act
	_, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineConfigInvalid)
}

// setSlippyEnvVars sets the repository location, enables slip lookups and
// sets the required ClickHouse environment variables.
func setSlippyEnvVars(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv(EnvRepoDir, "/srv/repo")
	t.Setenv(EnvSlippyEnabled, "true")
	t.Setenv("CLICKHOUSE_HOSTNAME", "localhost")
	t.Setenv("CLICKHOUSE_PORT", "9000")
	t.Setenv("CLICKHOUSE_USERNAME", "default")
	t.Setenv("CLICKHOUSE_PASSWORD", "testpassword")
	t.Setenv("CLICKHOUSE_DATABASE", "ci")
	t.Setenv("CLICKHOUSE_SKIP_VERIFY", "true")
}

func TestParseVaultPath(t *testing.T) {
	tests := []struct {
		name     string
		fullPath string
		wantPath string
		wantKey  string
	}{
		{
			name:     "path without key uses default",
			fullPath: "ci/repograph/pipeline",
			wantPath: "ci/repograph/pipeline",
			wantKey:  DefaultSecretKey,
		},
		{
			name:     "path with explicit key",
			fullPath: "DevOps/slippy/config#config",
			wantPath: "DevOps/slippy/config",
			wantKey:  "config",
		},
		{
			name:     "path with custom key",
			fullPath: "my/secret/path#mykey",
			wantPath: "my/secret/path",
			wantKey:  "mykey",
		},
		{
			name:     "path with multiple hash symbols uses last one",
			fullPath: "path/with#hash/in/name#actualkey",
			wantPath: "path/with#hash/in/name",
			wantKey:  "actualkey",
		},
		{
			name:     "path ending with hash only returns empty key",
			fullPath: "ci/repograph/pipeline#",
			wantPath: "ci/repograph/pipeline",
			wantKey:  "",
		},
		{
			name:     "simple path",
			fullPath: "secret",
			wantPath: "secret",
			wantKey:  DefaultSecretKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPath, gotKey := parseVaultPath(tt.fullPath)
			assert.Equal(t, tt.wantPath, gotPath, "path mismatch")
			assert.Equal(t, tt.wantKey, gotKey, "key mismatch")
		})
	}
}

func TestLoadWithVaultClient_CustomKey(t *testing.T) {
	// Arrange
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline#myconfig")

	// Create mock vault client with JSON string in custom key
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"myconfig": `{"version":"1","name":"test-pipeline","steps":[{"name":"push_parsed","description":"Push parsed"}]}`,
			},
		},
	}

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "test-pipeline", cfg.PipelineConfig.Name)
}

func TestLoadWithVaultClient_KeyNotFoundFallsBackToSecret(t *testing.T) {
	// When the specified key doesn't exist as a string, the code falls back
	// to treating the entire secret as the config. This test verifies that behavior.
	setSlippyEnvVars(t)
	t.Setenv(EnvVaultPipelineConfigPath, "ci/repograph/pipeline#nonexistent")

	// The secret has a different key, but the entire secret IS a valid pipeline config
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/repograph/pipeline": {
				"version": "1",
				"name":    "fallback-pipeline",
				"steps": []interface{}{
					map[string]interface{}{
						"name":        "push_parsed",
						"description": "Push parsed",
					},
				},
			},
		},
	}

	// Act
	cfg, err := LoadWithVaultClient(context.Background(), Overrides{}, mockVaultClientFactory(mockClient, nil))

	// Assert - should succeed by falling back to the entire secret
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "fallback-pipeline", cfg.PipelineConfig.Name)
}
