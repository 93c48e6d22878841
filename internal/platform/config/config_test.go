package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "dataguard/pkg/domain-errors"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func envFrom(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func (s *ConfigSuite) TestDefaultsAreValid() {
	cfg := Defaults()
	s.Require().NoError(cfg.Validate())
	s.Equal(map[string]int{"FREE": 30, "PRO": 90, "BUSINESS": 365}, cfg.Compliance.RetentionDays)
	s.Equal(10, cfg.Compliance.DSR.MaxPendingRequests)
	s.Equal(30, cfg.Compliance.DSR.MaxProcessingDays)
	s.Equal(10*time.Minute, cfg.Compliance.Retention.LeaseTTL)
	s.Equal("@daily", cfg.Compliance.Retention.CleanupSchedule)
}

func (s *ConfigSuite) TestEnvOverrides() {
	cfg := Defaults()
	err := applyEnv(cfg, envFrom(map[string]string{
		"RETENTION_DAYS_PRO":        "120",
		"DSR_AUTO_APPROVAL_ENABLED": "true",
		"DSR_AUTO_APPROVAL_KINDS":   "access, portability",
		"AUDIT_CAPTURE_PII":         "true",
		"RETENTION_LEASE_TTL":       "2m",
		"RETENTION_PURGE_RATE":      "12.5",
		"KAFKA_BROKERS":             "localhost:9092",
	}))
	s.Require().NoError(err)
	s.Equal(120, cfg.Compliance.RetentionDays["PRO"])
	s.True(cfg.Compliance.DSR.AutoApprovalEnabled)
	s.Equal([]string{"ACCESS", "PORTABILITY"}, cfg.Compliance.DSR.AutoApprovalKinds)
	s.True(cfg.Compliance.Audit.CapturePII)
	s.Equal(2*time.Minute, cfg.Compliance.Retention.LeaseTTL)
	s.InDelta(12.5, cfg.Compliance.Retention.PurgeRate, 0.0001)
	s.True(cfg.KafkaEnabled())
}

func (s *ConfigSuite) TestMalformedEnvIsAConfigurationError() {
	for key, value := range map[string]string{
		"RETENTION_DAYS_FREE":       "thirty",
		"DSR_AUTO_APPROVAL_ENABLED": "maybe",
		"RETENTION_LEASE_TTL":       "10 minutes",
	} {
		err := applyEnv(Defaults(), envFrom(map[string]string{key: value}))
		s.Require().Error(err, key)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration), key)
	}
}

func (s *ConfigSuite) TestValidateRejectsOutOfRangeValues() {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retention", func(c *Config) { c.Compliance.RetentionDays["FREE"] = 0 }},
		{"negative retention", func(c *Config) { c.Compliance.RetentionDays["PRO"] = -1 }},
		{"retention above ceiling", func(c *Config) { c.Compliance.RetentionDays["BUSINESS"] = MaxRetentionDays + 1 }},
		{"no pending cap", func(c *Config) { c.Compliance.DSR.MaxPendingRequests = 0 }},
		{"unknown auto kind", func(c *Config) { c.Compliance.DSR.AutoApprovalKinds = []string{"DELETE_ALL"} }},
		{"empty schedule", func(c *Config) { c.Compliance.Retention.CleanupSchedule = " " }},
		{"short lease", func(c *Config) { c.Compliance.Retention.LeaseTTL = time.Second }},
		{"production without token", func(c *Config) { c.Server.Environment = "production" }},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
		})
	}
}

func (s *ConfigSuite) TestMissingAdminTokenWarnsOutsideProduction() {
	cfg := Defaults()
	s.Require().NoError(cfg.Validate())
	warnings := cfg.Warnings()
	s.Require().Len(warnings, 1)
	s.Contains(warnings[0], "ADMIN_API_TOKEN")

	cfg.Server.AdminToken = "secret"
	s.Empty(cfg.Warnings())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
compliance:
  retention_days:
    FREE: 15
    PRO: 60
    BUSINESS: 730
  dsr:
    max_pending_requests: 3
  retention:
    cleanup_schedule: "0 3 * * *"
    lease_ttl: 5m
`), 0o600))
	t.Setenv("DATAGUARD_CONFIG_FILE", path)
	t.Setenv("RETENTION_DAYS_FREE", "20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Compliance.RetentionDays["FREE"])
	assert.Equal(t, 60, cfg.Compliance.RetentionDays["PRO"])
	assert.Equal(t, 3, cfg.Compliance.DSR.MaxPendingRequests)
	assert.Equal(t, "0 3 * * *", cfg.Compliance.Retention.CleanupSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Compliance.Retention.LeaseTTL)
	assert.Equal(t, 30, cfg.Compliance.DSR.MaxProcessingDays)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compliance: [oops"), 0o600))
	t.Setenv("DATAGUARD_CONFIG_FILE", path)

	_, err := Load()

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
