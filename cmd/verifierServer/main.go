package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/pkg/chain"
	"github.com/rehash-labs/erc7739-go/pkg/config"
	"github.com/rehash-labs/erc7739-go/pkg/logger"
	"github.com/rehash-labs/erc7739-go/pkg/registry"
	"github.com/rehash-labs/erc7739-go/pkg/registry/badger"
	"github.com/rehash-labs/erc7739-go/pkg/registry/memory"
	"github.com/rehash-labs/erc7739-go/pkg/registry/redis"
	"github.com/rehash-labs/erc7739-go/pkg/service"
)

func main() {
	app := &cli.App{
		Name:  "verifier-server",
		Usage: "ERC-7739 signature verification service",
		Description: `An HTTP service that verifies smart-account signatures produced with
defensive rehashing.

The service implements:
- Extended-signature decoding and workflow dispatch (TypedDataSign / PersonalSign)
- ERC-1271 verdicts with the standard magic values
- An account registry (memory, badger, or redis backed)
- A rehashing support probe endpoint`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvServicePort},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Value:   uint64(config.ChainId_EthereumMainnet),
				Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvServiceChainID},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Optional Ethereum RPC endpoint, checked against --chain-id at startup",
				EnvVars: []string{config.EnvServiceRPCURL},
			},
			&cli.StringFlag{
				Name:    "registry-backend",
				Aliases: []string{"backend"},
				Value:   "memory",
				Usage:   "Account registry backend: memory, badger or redis",
				EnvVars: []string{config.EnvRegistryBackend},
			},
			&cli.StringFlag{
				Name:    "registry-data-path",
				Usage:   "Data directory for the badger backend",
				EnvVars: []string{config.EnvRegistryDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis backend",
				EnvVars: []string{config.EnvRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Optional key prefix for the redis backend",
				EnvVars: []string{config.EnvRedisKeyPrefix},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Value:   50,
				Usage:   "Sustained requests per second before 429s",
				EnvVars: []string{config.EnvServiceRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   100,
				Usage:   "Momentary burst allowance on top of --rate-limit",
				EnvVars: []string{config.EnvServiceRateBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvServiceVerbose},
			},
		},
		Action: runVerifierServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runVerifierServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("verbose"),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	serverConfig := parseServerConfig(c)
	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.Sugar().Infow("Using chain", "name", serverConfig.ChainName, "chain_id", serverConfig.ChainID)

	if serverConfig.RpcUrl != "" {
		if err := checkChainEndpoint(serverConfig, l); err != nil {
			return err
		}
	}

	store, err := buildRegistryStore(serverConfig, l)
	if err != nil {
		return fmt.Errorf("failed to open registry backend: %w", err)
	}
	defer func() { _ = store.Close() }()

	server, err := service.NewServer(service.Config{
		Port:      serverConfig.Port,
		RateLimit: serverConfig.RateLimit,
		RateBurst: serverConfig.RateBurst,
		Backend:   serverConfig.RegistryBackend.String(),
	}, store, l)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	l.Sugar().Infow("Starting verifier server",
		"port", serverConfig.Port,
		"backend", serverConfig.RegistryBackend,
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Available endpoints",
		"verify", "POST /v1/verify",
		"probe", "POST /v1/probe",
		"accounts", "POST|GET|DELETE /v1/accounts",
		"health", "GET /healthz")

	// Block until SIGINT/SIGTERM, then drain in-flight requests.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	l.Sugar().Infow("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop server cleanly: %w", err)
	}

	l.Sugar().Info("Server stopped")
	return nil
}

// checkChainEndpoint fails fast when the configured RPC endpoint serves a
// different chain than --chain-id claims.
func checkChainEndpoint(cfg *config.ServerConfig, l *zap.Logger) error {
	caller, err := chain.NewCaller(cfg.RpcUrl, l)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC endpoint %s: %w", cfg.RpcUrl, err)
	}
	defer caller.Close()

	chainID := caller.ChainId()
	if chainID.Uint64() != uint64(cfg.ChainID) {
		return fmt.Errorf("RPC endpoint %s serves chain %d, configured chain is %d",
			cfg.RpcUrl, chainID.Uint64(), cfg.ChainID)
	}

	l.Sugar().Infow("RPC endpoint verified", "rpc_url", cfg.RpcUrl, "chain_id", chainID.Uint64())
	return nil
}

func buildRegistryStore(cfg *config.ServerConfig, l *zap.Logger) (registry.Store, error) {
	switch cfg.RegistryBackend {
	case config.RegistryBackendMemory:
		return memory.NewMemoryStore(), nil
	case config.RegistryBackendBadger:
		return badger.NewBadgerStore(cfg.RegistryDataPath, l)
	case config.RegistryBackendRedis:
		return redis.NewRedisStore(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", cfg.RegistryBackend)
	}
}

func parseServerConfig(c *cli.Context) *config.ServerConfig {
	return &config.ServerConfig{
		Port:             c.Int("port"),
		ChainID:          config.ChainId(c.Uint64("chain-id")),
		RpcUrl:           c.String("rpc-url"),
		RegistryBackend:  config.RegistryBackend(c.String("registry-backend")),
		RegistryDataPath: c.String("registry-data-path"),
		Redis: config.RedisSettings{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		RateLimit: c.Float64("rate-limit"),
		RateBurst: c.Int("rate-burst"),
		Debug:     c.Bool("verbose"),
		Verbose:   c.Bool("verbose"),
	}
}
