package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort                     = "8080"
	defaultShutdownTimeout          = 10 * time.Second
	defaultDBReadinessTimeout       = 30 * time.Second
	defaultDBReadinessRetryInterval = 2 * time.Second
	defaultMigrationsPath           = "internal/adapters/outbound/persistence/postgresql/migrations"
	defaultPersistenceMode          = "postgres"
	defaultChainMode                = "evm"
	defaultNetworksFile             = "networks.yaml"
	defaultRPCTimeout               = 15 * time.Second
	defaultInvoiceTimeout           = 48 * time.Hour
	defaultTransactionPollInterval  = 500 * time.Millisecond
	defaultTransactionTimeout       = 10 * time.Minute
	defaultReconcilePollInterval    = time.Minute
	defaultSweepPollInterval        = time.Hour
	defaultReconcileLookback        = 24 * time.Hour
	defaultSweepWindowStart         = 72 * time.Hour
	defaultSweepWindowEnd           = 24 * time.Hour
	defaultNetworkConcurrency       = 4
	defaultSchedulerLockTTL         = 10 * time.Minute
)

type ConfigError struct {
	Code     string
	Message  string
	Metadata map[string]string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

// NetworkConfig is one entry of the networks file.
type NetworkConfig struct {
	Network        string   `yaml:"network"`
	RPCURL         string   `yaml:"rpc_url"`
	WalletFactory  string   `yaml:"wallet_factory"`
	HoldingWallet  string   `yaml:"holding_wallet"`
	NativeSymbol   string   `yaml:"native_symbol"`
	NativeDecimals int      `yaml:"native_decimals"`
	SweepTokens    []string `yaml:"sweep_tokens"`
}

type networksFile struct {
	Networks []NetworkConfig `yaml:"networks"`
}

type Config struct {
	Port                     string
	ShutdownTimeout          time.Duration
	PersistenceMode          string
	DatabaseURL              string
	DatabaseTarget           string
	DBReadinessTimeout       time.Duration
	DBReadinessRetryInterval time.Duration
	DBMaxOpenConns           int
	MigrationsPath           string
	ChainMode                string
	NetworksFile             string
	Networks                 []NetworkConfig
	SignerKeystorePath       string
	SignerKeystorePassword   string
	RPCTimeout               time.Duration
	InvoiceTimeout           time.Duration
	TimeBucketWidth          time.Duration
	TimeBucketRepeatLen      int64
	BalanceChunkSize         int
	BalanceConcurrency       int
	TransactionPollInterval  time.Duration
	TransactionTimeout       time.Duration
	SchedulerEnabled         bool
	ReconcilePollInterval    time.Duration
	SweepPollInterval        time.Duration
	ReconcileLookback        time.Duration
	SweepWindowStart         time.Duration
	SweepWindowEnd           time.Duration
	NetworkConcurrency       int
	RedisURL                 string
	SchedulerLockTTL         time.Duration
	WorkerID                 string
}

func LoadConfig() (Config, *ConfigError) {
	cfg := Config{
		Port:                     envDefault("PORT", defaultPort),
		ShutdownTimeout:          defaultShutdownTimeout,
		PersistenceMode:          strings.ToLower(envDefault("INVOICE_WALLET_PERSISTENCE_MODE", defaultPersistenceMode)),
		DBReadinessTimeout:       defaultDBReadinessTimeout,
		DBReadinessRetryInterval: defaultDBReadinessRetryInterval,
		MigrationsPath:           envDefault("MIGRATIONS_PATH", defaultMigrationsPath),
		ChainMode:                strings.ToLower(envDefault("INVOICE_WALLET_CHAIN_MODE", defaultChainMode)),
		NetworksFile:             envDefault("INVOICE_WALLET_NETWORKS_FILE", defaultNetworksFile),
		SignerKeystorePath:       strings.TrimSpace(os.Getenv("SIGNER_KEYSTORE_FILE")),
		SignerKeystorePassword:   os.Getenv("SIGNER_KEYSTORE_PASSWORD"),
		RedisURL:                 strings.TrimSpace(os.Getenv("REDIS_URL")),
		WorkerID:                 strings.TrimSpace(os.Getenv("SCHEDULER_WORKER_ID")),
	}

	if cfg.PersistenceMode != "postgres" && cfg.PersistenceMode != "memory" {
		return Config{}, &ConfigError{
			Code:     "CONFIG_PERSISTENCE_MODE_INVALID",
			Message:  "INVOICE_WALLET_PERSISTENCE_MODE must be postgres or memory",
			Metadata: map[string]string{"value": cfg.PersistenceMode},
		}
	}

	if cfg.PersistenceMode == "postgres" {
		databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if databaseURL == "" {
			return Config{}, &ConfigError{
				Code:    "CONFIG_DATABASE_URL_REQUIRED",
				Message: "DATABASE_URL is required",
			}
		}
		databaseTarget, parseErr := parseDatabaseTarget(databaseURL)
		if parseErr != nil {
			return Config{}, parseErr
		}
		cfg.DatabaseURL = databaseURL
		cfg.DatabaseTarget = databaseTarget
	}

	durations := []struct {
		env      string
		target   *time.Duration
		fallback time.Duration
	}{
		{"RPC_TIMEOUT", &cfg.RPCTimeout, defaultRPCTimeout},
		{"INVOICE_TIMEOUT", &cfg.InvoiceTimeout, defaultInvoiceTimeout},
		{"TIME_BUCKET_WIDTH", &cfg.TimeBucketWidth, 0},
		{"TRANSACTION_POLL_INTERVAL", &cfg.TransactionPollInterval, defaultTransactionPollInterval},
		{"TRANSACTION_TIMEOUT", &cfg.TransactionTimeout, defaultTransactionTimeout},
		{"RECONCILE_POLL_INTERVAL", &cfg.ReconcilePollInterval, defaultReconcilePollInterval},
		{"SWEEP_POLL_INTERVAL", &cfg.SweepPollInterval, defaultSweepPollInterval},
		{"RECONCILE_LOOKBACK", &cfg.ReconcileLookback, defaultReconcileLookback},
		{"SWEEP_WINDOW_START", &cfg.SweepWindowStart, defaultSweepWindowStart},
		{"SWEEP_WINDOW_END", &cfg.SweepWindowEnd, defaultSweepWindowEnd},
		{"SCHEDULER_LOCK_TTL", &cfg.SchedulerLockTTL, defaultSchedulerLockTTL},
	}
	for _, entry := range durations {
		value, cfgErr := envDuration(entry.env, entry.fallback)
		if cfgErr != nil {
			return Config{}, cfgErr
		}
		*entry.target = value
	}
	if cfg.SweepWindowEnd >= cfg.SweepWindowStart {
		return Config{}, &ConfigError{
			Code:    "CONFIG_SWEEP_WINDOW_INVALID",
			Message: "SWEEP_WINDOW_START must be greater than SWEEP_WINDOW_END",
		}
	}

	integers := []struct {
		env      string
		target   *int
		fallback int
	}{
		{"DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns, 0},
		{"BALANCE_CHUNK_SIZE", &cfg.BalanceChunkSize, 0},
		{"BALANCE_CONCURRENCY", &cfg.BalanceConcurrency, 0},
		{"SCHEDULER_NETWORK_CONCURRENCY", &cfg.NetworkConcurrency, defaultNetworkConcurrency},
	}
	for _, entry := range integers {
		value, cfgErr := envInt(entry.env, entry.fallback)
		if cfgErr != nil {
			return Config{}, cfgErr
		}
		*entry.target = value
	}

	repeatLen, cfgErr := envInt("TIME_BUCKET_REPEAT_LEN", 0)
	if cfgErr != nil {
		return Config{}, cfgErr
	}
	cfg.TimeBucketRepeatLen = int64(repeatLen)

	schedulerEnabled, cfgErr := envBool("SCHEDULER_ENABLED", true)
	if cfgErr != nil {
		return Config{}, cfgErr
	}
	cfg.SchedulerEnabled = schedulerEnabled

	networks, cfgErr := loadNetworks(cfg.NetworksFile)
	if cfgErr != nil {
		return Config{}, cfgErr
	}
	cfg.Networks = networks

	if cfg.ChainMode != "evm" && cfg.ChainMode != "devtest" {
		return Config{}, &ConfigError{
			Code:     "CONFIG_CHAIN_MODE_INVALID",
			Message:  "INVOICE_WALLET_CHAIN_MODE must be evm or devtest",
			Metadata: map[string]string{"value": cfg.ChainMode},
		}
	}
	if cfg.ChainMode == "evm" {
		for _, network := range cfg.Networks {
			if network.RPCURL == "" || network.WalletFactory == "" {
				return Config{}, &ConfigError{
					Code:     "CONFIG_NETWORK_INCOMPLETE",
					Message:  "evm networks require rpc_url and wallet_factory",
					Metadata: map[string]string{"network": network.Network},
				}
			}
		}
		if cfg.SignerKeystorePath != "" && cfg.SignerKeystorePassword == "" {
			return Config{}, &ConfigError{
				Code:    "CONFIG_SIGNER_PASSWORD_REQUIRED",
				Message: "SIGNER_KEYSTORE_PASSWORD is required when SIGNER_KEYSTORE_FILE is set",
			}
		}
	}

	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return Config{}, &ConfigError{
				Code:    "CONFIG_REDIS_URL_INVALID",
				Message: "REDIS_URL is invalid",
			}
		}
	}

	return cfg, nil
}

func (c Config) Address() string {
	return ":" + c.Port
}

// NetworkNames lists the configured networks in file order.
func (c Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for _, network := range c.Networks {
		names = append(names, network.Network)
	}
	return names
}

// SweepTokens maps each network to the tokens swept from every wallet.
func (c Config) SweepTokens() map[string][]string {
	out := make(map[string][]string, len(c.Networks))
	for _, network := range c.Networks {
		if len(network.SweepTokens) == 0 {
			continue
		}
		out[network.Network] = append([]string(nil), network.SweepTokens...)
	}
	return out
}

func loadNetworks(path string) ([]NetworkConfig, *ConfigError) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{
			Code:     "CONFIG_NETWORKS_FILE_UNREADABLE",
			Message:  "networks file could not be read",
			Metadata: map[string]string{"path": path, "error": err.Error()},
		}
	}
	return parseNetworks(raw, path)
}

func parseNetworks(raw []byte, path string) ([]NetworkConfig, *ConfigError) {
	decoded := networksFile{}
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, &ConfigError{
			Code:     "CONFIG_NETWORKS_FILE_INVALID",
			Message:  "networks file must be YAML with a networks list",
			Metadata: map[string]string{"path": path, "error": err.Error()},
		}
	}

	seen := map[string]struct{}{}
	networks := make([]NetworkConfig, 0, len(decoded.Networks))
	for _, network := range decoded.Networks {
		network.Network = strings.ToUpper(strings.TrimSpace(network.Network))
		if network.Network == "" {
			return nil, &ConfigError{
				Code:     "CONFIG_NETWORK_NAME_MISSING",
				Message:  "every networks entry needs a network name",
				Metadata: map[string]string{"path": path},
			}
		}
		if _, dup := seen[network.Network]; dup {
			return nil, &ConfigError{
				Code:     "CONFIG_NETWORK_DUPLICATE",
				Message:  "network is listed twice",
				Metadata: map[string]string{"path": path, "network": network.Network},
			}
		}
		seen[network.Network] = struct{}{}

		network.RPCURL = strings.TrimSpace(network.RPCURL)
		network.WalletFactory = strings.ToLower(strings.TrimSpace(network.WalletFactory))
		network.HoldingWallet = strings.ToLower(strings.TrimSpace(network.HoldingWallet))
		tokens := make([]string, 0, len(network.SweepTokens))
		for _, token := range network.SweepTokens {
			if trimmed := strings.ToLower(strings.TrimSpace(token)); trimmed != "" {
				tokens = append(tokens, trimmed)
			}
		}
		network.SweepTokens = tokens
		networks = append(networks, network)
	}

	if len(networks) == 0 {
		return nil, &ConfigError{
			Code:     "CONFIG_NETWORKS_EMPTY",
			Message:  "networks file must define at least one network",
			Metadata: map[string]string{"path": path},
		}
	}
	return networks, nil
}

func parseDatabaseTarget(databaseURL string) (string, *ConfigError) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", &ConfigError{
			Code:    "CONFIG_DATABASE_URL_INVALID",
			Message: "DATABASE_URL is invalid",
		}
	}

	switch parsed.Scheme {
	case "postgres", "postgresql":
	default:
		return "", &ConfigError{
			Code:    "CONFIG_DATABASE_URL_SCHEME_INVALID",
			Message: "DATABASE_URL must use postgres or postgresql scheme",
		}
	}

	if parsed.Host == "" {
		return "", &ConfigError{
			Code:    "CONFIG_DATABASE_URL_HOST_MISSING",
			Message: "DATABASE_URL host is required",
		}
	}

	databaseName := strings.TrimPrefix(parsed.Path, "/")
	if databaseName == "" {
		return "", &ConfigError{
			Code:    "CONFIG_DATABASE_NAME_MISSING",
			Message: "DATABASE_URL database name is required",
		}
	}

	return parsed.Host + "/" + databaseName, nil
}

func envDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, *ConfigError) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return 0, &ConfigError{
			Code:     "CONFIG_DURATION_INVALID",
			Message:  key + " must be a positive duration",
			Metadata: map[string]string{"key": key, "value": raw},
		}
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, *ConfigError) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, &ConfigError{
			Code:     "CONFIG_INTEGER_INVALID",
			Message:  key + " must be a positive integer",
			Metadata: map[string]string{"key": key, "value": raw},
		}
	}
	return parsed, nil
}

func envBool(key string, fallback bool) (bool, *ConfigError) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ConfigError{
			Code:     "CONFIG_BOOLEAN_INVALID",
			Message:  key + " must be a boolean",
			Metadata: map[string]string{"key": key, "value": raw},
		}
	}
	return parsed, nil
}
