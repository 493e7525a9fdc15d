package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("app:\n  name: ledger\n"))
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.App.Name)
	assert.Equal(t, 8090, cfg.App.Port)
	assert.Equal(t, "associate-ledger-events", cfg.Infra.Kafka.Topic)
	assert.Equal(t, "associate-ledger-writer", cfg.Infra.Zookeeper.WriterLock)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_Settlement(t *testing.T) {
	doc := `
settlement:
  bonus_levels:
    1: 1000
    7: 25
  commission_bps:
    1: 1000
  qualification_rule: "total_amount >= 5000"
access:
  bootstrap_admins: [ops, finance]
idempotency:
  ttl: 90m
infra:
  zookeeper:
    session_timeout: 3s
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, map[int]int64{1: 1000, 7: 25}, cfg.Settlement.BonusLevels)
	assert.Equal(t, map[int]int64{1: 1000}, cfg.Settlement.CommissionBPS)
	assert.Equal(t, "total_amount >= 5000", cfg.Settlement.QualificationRule)
	assert.Equal(t, []string{"ops", "finance"}, cfg.Access.BootstrapAdmins)
	assert.Equal(t, 90*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, 3*time.Second, cfg.Infra.Zookeeper.SessionTimeout)
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("app: [unterminated"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 9000\ninfra:\n  redis:\n    addrs: file:6379\n"), 0o600))

	t.Setenv("REDIS_ADDRS", "env:6379")
	t.Setenv("APP_PORT", "9100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env:6379", cfg.Infra.Redis.Addrs)
	assert.Equal(t, 9100, cfg.App.Port)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "associate-ledger", cfg.App.Name)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.App.Name = "" }},
		{"port out of range", func(c *Config) { c.App.Port = 70000 }},
		{"non-positive ttl", func(c *Config) { c.Idempotency.TTL = 0 }},
		{"mysql without database", func(c *Config) { c.Infra.MySQL.Addr = "db:3306" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
