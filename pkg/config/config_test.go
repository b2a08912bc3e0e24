package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ServerConfig {
	return &ServerConfig{
		Port:            8080,
		ChainID:         ChainId_EthereumMainnet,
		RegistryBackend: RegistryBackendMemory,
		RateLimit:       50,
		RateBurst:       100,
	}
}

func TestServerConfig_Validate(t *testing.T) {
	t.Run("Valid config resolves chain name", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ChainName_EthereumMainnet, cfg.ChainName)
	})

	t.Run("Port out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = 0
		require.Error(t, cfg.Validate())

		cfg.Port = 70000
		require.Error(t, cfg.Validate())
	})

	t.Run("Unknown chain id", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChainID = 424242
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported chain ID")
	})

	t.Run("Badger requires data path", func(t *testing.T) {
		cfg := validConfig()
		cfg.RegistryBackend = RegistryBackendBadger
		require.Error(t, cfg.Validate())

		cfg.RegistryDataPath = "/var/lib/verifier"
		require.NoError(t, cfg.Validate())
	})

	t.Run("Redis requires address", func(t *testing.T) {
		cfg := validConfig()
		cfg.RegistryBackend = RegistryBackendRedis
		require.Error(t, cfg.Validate())

		cfg.Redis.Address = "localhost:6379"
		require.NoError(t, cfg.Validate())
	})

	t.Run("Unknown backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.RegistryBackend = "postgres"
		require.Error(t, cfg.Validate())
	})

	t.Run("Rate limit must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimit = 0
		require.Error(t, cfg.Validate())

		cfg.RateLimit = 10
		cfg.RateBurst = 0
		require.Error(t, cfg.Validate())
	})
}

func TestRedisSettings_Validate(t *testing.T) {
	t.Run("Aggregates all field errors", func(t *testing.T) {
		rs := &RedisSettings{DB: 99}
		err := rs.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address")
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("Valid settings", func(t *testing.T) {
		rs := &RedisSettings{Address: "localhost:6379", DB: 15}
		require.NoError(t, rs.Validate())
	})
}

func TestParseRegistryBackend(t *testing.T) {
	for _, name := range []string{"memory", "badger", "redis"} {
		backend, err := ParseRegistryBackend(name)
		require.NoError(t, err)
		assert.Equal(t, name, backend.String())
	}

	_, err := ParseRegistryBackend("dynamo")
	require.Error(t, err)
}

func TestChainMaps(t *testing.T) {
	// The two maps must stay inverses of each other.
	for id, name := range ChainIdToName {
		assert.Equal(t, id, ChainNameToId[name])
	}
	assert.Len(t, GetSupportedChainIDs(), len(ChainIdToName))
}
