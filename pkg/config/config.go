package config

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the verifier service configuration
const (
	EnvServicePort       = "SIG_SERVICE_PORT"
	EnvServiceChainID    = "SIG_SERVICE_CHAIN_ID"
	EnvServiceRPCURL     = "SIG_SERVICE_RPC_URL"
	EnvServiceRateLimit  = "SIG_SERVICE_RATE_LIMIT"
	EnvServiceRateBurst  = "SIG_SERVICE_RATE_BURST"
	EnvServiceVerbose    = "SIG_SERVICE_VERBOSE"
	EnvRegistryBackend   = "SIG_REGISTRY_BACKEND"
	EnvRegistryDataPath  = "SIG_REGISTRY_DATA_PATH"
	EnvRedisAddress      = "SIG_REDIS_ADDRESS"
	EnvRedisPassword     = "SIG_REDIS_PASSWORD"
	EnvRedisDB           = "SIG_REDIS_DB"
	EnvRedisKeyPrefix    = "SIG_REDIS_KEY_PREFIX"
	EnvAWSKMSKeyID       = "SIG_AWS_KMS_KEY_ID"
	EnvAWSRegion         = "AWS_REGION"
)

// RegistryBackend selects where account records are persisted.
type RegistryBackend string

func (r RegistryBackend) String() string {
	return string(r)
}

const (
	RegistryBackendMemory RegistryBackend = "memory"
	RegistryBackendBadger RegistryBackend = "badger"
	RegistryBackendRedis  RegistryBackend = "redis"
)

func ParseRegistryBackend(s string) (RegistryBackend, error) {
	switch RegistryBackend(s) {
	case RegistryBackendMemory:
		return RegistryBackendMemory, nil
	case RegistryBackendBadger:
		return RegistryBackendBadger, nil
	case RegistryBackendRedis:
		return RegistryBackendRedis, nil
	default:
		return "", fmt.Errorf("unsupported registry backend: %s (supported: memory, badger, redis)", s)
	}
}

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_Base            ChainId = 8453
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_Base            ChainName = "base"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_Base:            ChainName_Base,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_Base:            ChainId_Base,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_Base,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (base), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_Base, ChainId_EthereumAnvil)
}

// RedisSettings holds the connection settings for the Redis registry backend.
type RedisSettings struct {
	Address   string `json:"address"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

func (rs *RedisSettings) Validate() error {
	var allErrors field.ErrorList
	if rs.Address == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("address"), "address is required"))
	}
	if rs.DB < 0 || rs.DB > 15 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("db"), rs.DB, "db must be between 0 and 15"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ServerConfig represents the complete configuration for a verifier service
type ServerConfig struct {
	Port int `json:"port"`

	// Chain configuration
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	// RpcUrl enables on-chain reads (ERC-5267 domain discovery, remote
	// ERC-1271 probes). Optional: with no RPC endpoint the service still
	// verifies against registered accounts.
	RpcUrl string `json:"rpc_url,omitempty"`

	// Registry backend selection
	RegistryBackend  RegistryBackend `json:"registry_backend"`
	RegistryDataPath string          `json:"registry_data_path,omitempty"`
	Redis            RedisSettings   `json:"redis,omitempty"`

	// RateLimit is the sustained request budget per second; RateBurst is the
	// momentary burst allowance.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the verifier service configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		return fmt.Errorf("unsupported chain ID %d. Supported: %s", c.ChainID, GetSupportedChainIDsString())
	}
	c.ChainName = chainName

	switch c.RegistryBackend {
	case RegistryBackendMemory:
	case RegistryBackendBadger:
		if c.RegistryDataPath == "" {
			return fmt.Errorf("registry data path is required for the badger backend")
		}
	case RegistryBackendRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis settings: %w", err)
		}
	default:
		return fmt.Errorf("unsupported registry backend: %s (supported: memory, badger, redis)", c.RegistryBackend)
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %f", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1, got %d", c.RateBurst)
	}

	return nil
}
