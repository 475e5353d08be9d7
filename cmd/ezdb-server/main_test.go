package main

import (
	"testing"
	"time"

	"github.com/ryanpbrewster/ezdb/config"
	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     9000,
		Database: database.Config{},
		Logging:  logging.Config{Output: logging.CONSOLE, Interval: time.Second},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := validConfig()
		require.NoError(t, c.Validate())
	})

	t.Run("port_out_of_range", func(t *testing.T) {
		c := validConfig()
		c.Port = 0
		require.Error(t, c.Validate())

		c.Port = 70000
		require.Error(t, c.Validate())
	})

	t.Run("tls_enabled_without_cert_and_key", func(t *testing.T) {
		c := validConfig()
		c.TLS = config.TLS{Enable: true}
		require.Error(t, c.Validate())
	})

	t.Run("tls_enabled_with_cert_and_key_passes_validate", func(t *testing.T) {
		c := validConfig()
		c.TLS = config.TLS{Enable: true, Cert: "cert.pem", Key: "key.pem"}
		require.NoError(t, c.Validate())
	})
}

func TestFlags_ImplementsConfigFlags(t *testing.T) {
	f := Flags{Config: "custom.yaml"}
	require.Equal(t, "custom.yaml", f.GetConfigPath())
	require.True(t, f.IsExplicitConfigPath())

	var zero Flags
	require.False(t, zero.IsExplicitConfigPath())
}
