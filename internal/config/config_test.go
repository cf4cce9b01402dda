package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "UTC", cfg.Ticket.NumberTimezone)
	assert.Equal(t, AllocatorPostgres, cfg.Ticket.NumberAllocator)
	assert.True(t, cfg.Ticket.AllowReopen)
	assert.Equal(t, 5, cfg.Ticket.CreateMaxAttempts)
	assert.Equal(t, PolicySourceStatic, cfg.Policy.Source)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Empty(t, cfg.Postgres.DSN)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_PORT":                   "9090",
		"TICKET_NUMBER_TIMEZONE":     "America/Sao_Paulo",
		"TICKET_NUMBER_ALLOCATOR":    "redis",
		"TICKET_ALLOW_REOPEN":        "false",
		"TICKET_CREATE_MAX_ATTEMPTS": "0",
		"POLICY_SOURCE":              "postgres",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, AllocatorRedis, cfg.Ticket.NumberAllocator)
	assert.False(t, cfg.Ticket.AllowReopen)
	assert.Equal(t, 1, cfg.Ticket.CreateMaxAttempts)
	loc, err := cfg.Ticket.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestLoadWith_RejectsInvalidValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"timezone":  {"TICKET_NUMBER_TIMEZONE": "Mars/Olympus"},
		"allocator": {"TICKET_NUMBER_ALLOCATOR": "etcd"},
		"policy":    {"POLICY_SOURCE": "ldap"},
		"int":       {"APP_PORT": "8080", "REDIS_DB": "zero"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
