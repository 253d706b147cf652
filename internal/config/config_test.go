package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const minimalYAML = `
database:
  host: localhost
  name: ess
  user: ess
ebay:
  client_id: app-id
  client_secret: cert-id
vault:
  secret: vault-secret
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: minimalYAML,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "app-id", cfg.Ebay.ClientID)
				assert.Equal(t, "vault-secret", cfg.Vault.Secret)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: minimalYAML,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, domain.EnvProduction, cfg.Ebay.Environment)
				assert.Equal(t, "EBAY_US", cfg.Ebay.Marketplace)
				assert.Equal(t, int64(5000), cfg.Ebay.RateLimit.DailyLimit)
				assert.Equal(t, 5*time.Minute, cfg.Tokens.RefreshMargin)
				assert.Equal(t, 15*time.Minute, cfg.Tokens.Lookahead)
				assert.Equal(t, 4, cfg.Tokens.Concurrency)
				assert.Equal(t,
					[]domain.APIFamily{domain.FamilyOrders, domain.FamilyFinances},
					cfg.Worker.Families,
				)
				assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
				assert.Equal(t, 15*time.Minute, cfg.Worker.StaleTimeout)
				assert.Equal(t, 10*time.Minute, cfg.Worker.RunTimeout)
				assert.Equal(t, 30*24*time.Hour, cfg.Worker.RunRetention)
				assert.Equal(t, 90*24*time.Hour, cfg.Worker.LogRetention)
				assert.Equal(t, 10*time.Minute, cfg.Schedule.RefreshInterval)
				assert.Equal(t, 5*time.Minute, cfg.Schedule.SyncInterval)
				assert.Equal(t, time.Hour, cfg.Schedule.CleanupInterval)
				assert.Equal(t, "ebay-seller-sync", cfg.Telemetry.ServiceName)
				assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 0)
				assert.Empty(t, cfg.Telemetry.Endpoint)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "env var substitution",
			yaml: minimalYAML + `
notifications:
  discord:
    enabled: true
    webhook_url: "${TEST_ESS_DISCORD}"
`,
			envVars: map[string]string{"TEST_ESS_DISCORD": "https://discord.test/hook"},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "https://discord.test/hook", cfg.Notifications.Discord.WebhookURL)
			},
		},
		{
			name: "missing required database.host",
			yaml: `
database:
  name: ess
  user: ess
ebay:
  client_id: a
  client_secret: b
vault:
  secret: s
`,
			wantErr: "database.host is required",
		},
		{
			name: "missing vault secret",
			yaml: `
database:
  host: localhost
  name: ess
  user: ess
ebay:
  client_id: a
  client_secret: b
`,
			wantErr: "vault.secret is required",
		},
		{
			name:    "invalid yaml",
			yaml:    "database: [",
			wantErr: "parsing config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  host: db
  name: ess
  user: ess
ebay:
  client_id: a
  client_secret: b
  environment: sandbox
vault:
  secret: s
worker:
  families: [orders]
  interval: 2m
schedule:
  sync_interval: 1m
logging:
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, domain.EnvSandbox, cfg.Ebay.Environment)
	assert.Equal(t, []domain.APIFamily{domain.FamilyOrders}, cfg.Worker.Families)
	assert.Equal(t, 2*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, time.Minute, cfg.Schedule.SyncInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Ebay.Environment = "staging"
	cfg.Worker.Families = []domain.APIFamily{"listings"}
	cfg.Worker.StaleTimeout = time.Minute
	cfg.Tokens.Lookahead = time.Minute
	cfg.Schedule.SyncInterval = time.Millisecond
	cfg.Notifications.Discord.Enabled = true
	cfg.Telemetry.SampleRatio = 2
	cfg.Logging.Format = "xml"

	err := validate(cfg)
	require.Error(t, err)

	for _, want := range []string{
		"database.host is required",
		"database.name is required",
		"database.user is required",
		"ebay.client_id is required",
		"ebay.client_secret is required",
		`ebay.environment must be one of: production, sandbox (got "staging")`,
		"vault.secret is required",
		"tokens.lookahead must not be shorter than tokens.refresh_margin",
		`worker.families: unknown api family "listings"`,
		"worker.stale_timeout must exceed worker.run_timeout",
		"schedule.sync_interval must be at least 1s",
		"notifications.discord.webhook_url is required",
		"telemetry.sample_ratio must be between 0 and 1",
		`logging.format must be one of: text, json (got "xml")`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		Name:     "ess",
		User:     "ess",
		Password: "pw",
		SSLMode:  "require",
	}
	assert.Equal(t, "host=db port=5432 dbname=ess user=ess password=pw sslmode=require", d.DSN())
}
