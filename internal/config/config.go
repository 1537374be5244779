// Package config provides configuration loading and validation.
package config

import (
	"crypto/ecdsa"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	API       APIConfig       `mapstructure:"api"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// ChainConfig holds node and farm contract configuration.
type ChainConfig struct {
	ChainID        uint64            `mapstructure:"chain_id"`
	HTTPURL        string            `mapstructure:"http_url"`       // falls back to the network default
	WebSocketURL   string            `mapstructure:"websocket_url"`  // optional; empty means HTTP polling only
	FarmAddresses  map[string]string `mapstructure:"farm_addresses"` // chain id -> farm proxy
	FarmAddress    string            `mapstructure:"farm_address"`   // overrides farm_addresses for the selected chain
	PollInterval   time.Duration     `mapstructure:"poll_interval"`
	MaxReconnects  int               `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration     `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration     `mapstructure:"max_backoff"`
	ReceiptTimeout time.Duration     `mapstructure:"receipt_timeout"`
}

// FarmDeployments parses farm_addresses into chain id keyed addresses.
func (c *ChainConfig) FarmDeployments() (map[uint64]common.Address, error) {
	out := make(map[uint64]common.Address, len(c.FarmAddresses))
	for key, addr := range c.FarmAddresses {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain.farm_addresses key %q", key)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid chain.farm_addresses[%d]: %q", id, addr)
		}
		out[id] = common.HexToAddress(addr)
	}
	return out, nil
}

// WalletConfig selects the connected wallet. A private key makes the wallet
// writable; a bare address connects it read-only.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Address    string `mapstructure:"address"`
}

// Connected reports whether any wallet is configured.
func (w *WalletConfig) Connected() bool {
	return w.PrivateKey != "" || w.Address != ""
}

// CanSign reports whether transactions can be signed.
func (w *WalletConfig) CanSign() bool {
	return w.PrivateKey != ""
}

// SigningKey parses the private key. It returns nil without error when the
// wallet is watch-only.
func (w *WalletConfig) SigningKey() (*ecdsa.PrivateKey, error) {
	if w.PrivateKey == "" {
		return nil, nil
	}
	return crypto.HexToECDSA(strings.TrimPrefix(w.PrivateKey, "0x"))
}

// AccountAddress returns the wallet address, derived from the key when set.
func (w *WalletConfig) AccountAddress() common.Address {
	if key, err := w.SigningKey(); err == nil && key != nil {
		return crypto.PubkeyToAddress(key.PublicKey)
	}
	return common.HexToAddress(w.Address)
}

// PricingConfig holds price API configuration.
type PricingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DashboardConfig holds view-model and refresh settings.
type DashboardConfig struct {
	IconBaseURL       string        `mapstructure:"icon_base_url"`
	RefreshTimeout    time.Duration `mapstructure:"refresh_timeout"`
	ReadConcurrency   int           `mapstructure:"read_concurrency"`
	MinRefreshSpacing time.Duration `mapstructure:"min_refresh_spacing"`
}

// APIConfig holds the dashboard HTTP API settings.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SVF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		farmAddressesHook,
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SVF_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SVF_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SVF_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("chain.chain_id", "SVF_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("chain.http_url", "SVF_RPC_HTTP_URL", "RPC_HTTP_URL")
	v.BindEnv("chain.websocket_url", "SVF_RPC_WS_URL", "RPC_WS_URL")
	v.BindEnv("chain.farm_addresses", "SVF_FARM_ADDRESSES", "FARM_ADDRESSES")
	v.BindEnv("chain.farm_address", "SVF_FARM_ADDRESS", "FARM_ADDRESS")

	// Wallet
	v.BindEnv("wallet.private_key", "SVF_WALLET_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("wallet.address", "SVF_WALLET_ADDRESS", "WALLET_ADDRESS")

	// Pricing
	v.BindEnv("pricing.base_url", "SVF_PRICE_API_URL", "PRICE_API_URL")

	// API
	v.BindEnv("api.port", "SVF_API_PORT", "API_PORT")
	v.BindEnv("api.allowed_origins", "SVF_API_ALLOWED_ORIGINS")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SVF_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SVF_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "SVF_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "SVF_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "savvy-farm")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Chain defaults
	v.SetDefault("chain.chain_id", asset.DefaultChainID)
	v.SetDefault("chain.poll_interval", "3s")
	v.SetDefault("chain.max_reconnects", 0) // infinite
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")
	v.SetDefault("chain.receipt_timeout", "2m")

	// Pricing defaults
	v.SetDefault("pricing.base_url", "https://api.pancakeswap.info/api/v2")
	v.SetDefault("pricing.requests_per_minute", 120)
	v.SetDefault("pricing.cache_ttl", "15s")
	v.SetDefault("pricing.timeout", "10s")

	// Dashboard defaults
	v.SetDefault("dashboard.icon_base_url", "/icons")
	v.SetDefault("dashboard.refresh_timeout", "20s")
	v.SetDefault("dashboard.read_concurrency", 8)
	v.SetDefault("dashboard.min_refresh_spacing", "1s")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{"*"})

	// Health defaults
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "savvy-farm")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	networks := asset.DefaultRegistry()
	if _, ok := networks.Get(c.Chain.ChainID); !ok {
		return fmt.Errorf("unsupported chain.chain_id: %d", c.Chain.ChainID)
	}
	farms, err := c.Chain.FarmDeployments()
	if err != nil {
		return err
	}
	for id := range farms {
		if _, ok := networks.Get(id); !ok {
			return fmt.Errorf("chain.farm_addresses: unsupported chain id %d", id)
		}
	}
	if c.Chain.FarmAddress != "" && !common.IsHexAddress(c.Chain.FarmAddress) {
		return fmt.Errorf("invalid chain.farm_address: %q", c.Chain.FarmAddress)
	}
	if _, ok := farms[c.Chain.ChainID]; !ok && c.Chain.FarmAddress == "" {
		return fmt.Errorf("no farm address for chain id %d: set chain.farm_addresses or chain.farm_address", c.Chain.ChainID)
	}
	if c.Wallet.PrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.Wallet.PrivateKey, "0x")); err != nil {
			return fmt.Errorf("invalid wallet.private_key: %w", err)
		}
	}
	if c.Wallet.Address != "" && !common.IsHexAddress(c.Wallet.Address) {
		return fmt.Errorf("invalid wallet.address: %q", c.Wallet.Address)
	}
	if c.Pricing.BaseURL == "" {
		return fmt.Errorf("pricing.base_url is required")
	}
	if c.Dashboard.ReadConcurrency <= 0 {
		return fmt.Errorf("dashboard.read_concurrency must be positive")
	}
	return nil
}

// Network records every configured farm deployment in reg, then resolves the
// selected network with its RPC endpoint overrides. farm_address, when set,
// replaces the deployment of the selected chain only.
func (c *Config) Network(reg *asset.Registry) (asset.Network, error) {
	farms, err := c.Chain.FarmDeployments()
	if err != nil {
		return asset.Network{}, err
	}
	for id, farm := range farms {
		if err := reg.SetFarm(id, farm); err != nil {
			return asset.Network{}, apperror.New(apperror.CodeUnsupportedNetwork,
				apperror.WithCause(err),
				apperror.WithContext("chain.farm_addresses"))
		}
	}

	n, ok := reg.Get(c.Chain.ChainID)
	if !ok {
		return asset.Network{}, apperror.New(apperror.CodeUnsupportedNetwork,
			apperror.WithContext(fmt.Sprintf("chain id %d", c.Chain.ChainID)))
	}
	if c.Chain.HTTPURL != "" {
		n.RPCURL = c.Chain.HTTPURL
	}
	if c.Chain.WebSocketURL != "" {
		n.WSURL = c.Chain.WebSocketURL
	}
	if c.Chain.FarmAddress != "" {
		n.Farm = common.HexToAddress(c.Chain.FarmAddress)
	}
	if !n.HasFarm() {
		return asset.Network{}, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("no farm address for %s", n.Name)))
	}
	reg.Register(n)
	return n, nil
}

// farmAddressesHook decodes "56=0x..,97=0x.." (as given in SVF_FARM_ADDRESSES)
// into the chain id keyed map.
func farmAddressesHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
		return data, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(data.(string), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, addr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid farm address entry %q, want <chain id>=<address>", pair)
		}
		out[strings.TrimSpace(id)] = strings.TrimSpace(addr)
	}
	return out, nil
}
