package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFarm     = "0x00000000000000000000000000000000000000f1"
	testMainFarm = "0x00000000000000000000000000000000000000f2"
	// Well-known hardhat account #0.
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SVF_FARM_ADDRESS", testFarm)
	t.Setenv("SVF_WALLET_ADDRESS", "0x00000000000000000000000000000000000000aa")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, asset.DefaultChainID, cfg.Chain.ChainID)
	assert.Equal(t, "https://api.pancakeswap.info/api/v2", cfg.Pricing.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.Wallet.Connected())
	assert.False(t, cfg.Wallet.CanSign())

	n, err := cfg.Network(asset.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testFarm), n.Farm)
}

func TestLoad_FarmAddressesFromEnvFollowChainID(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SVF_FARM_ADDRESSES", "56="+testMainFarm+", 97="+testFarm)

	tests := []struct {
		chainID string
		want    string
		name    string
	}{
		{"97", testFarm, "bsc-test"},
		{"56", testMainFarm, "bsc-main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SVF_CHAIN_ID", tt.chainID)

			cfg, err := Load("")
			require.NoError(t, err)

			n, err := cfg.Network(asset.DefaultRegistry())
			require.NoError(t, err)
			assert.Equal(t, tt.name, n.Name)
			assert.Equal(t, common.HexToAddress(tt.want), n.Farm)
		})
	}
}

func TestConfig_NetworkRegistersEveryDeployment(t *testing.T) {
	cfg := Config{Chain: ChainConfig{
		ChainID:       asset.ChainIDBSCTestnet,
		FarmAddresses: map[string]string{"56": testMainFarm, "97": testFarm},
	}}
	reg := asset.DefaultRegistry()

	n, err := cfg.Network(reg)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testFarm), n.Farm)

	main, ok := reg.Get(asset.ChainIDBSC)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(testMainFarm), main.Farm)

	// farm_address only replaces the selected chain's deployment.
	override := "0x00000000000000000000000000000000000000f3"
	cfg.Chain.FarmAddress = override
	reg = asset.DefaultRegistry()
	n, err = cfg.Network(reg)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(override), n.Farm)
	main, _ = reg.Get(asset.ChainIDBSC)
	assert.Equal(t, common.HexToAddress(testMainFarm), main.Farm)
}

func TestConfig_NetworkWithoutFarmFails(t *testing.T) {
	cfg := Config{Chain: ChainConfig{
		ChainID:       asset.ChainIDBSC,
		FarmAddresses: map[string]string{"97": testFarm},
	}}

	_, err := cfg.Network(asset.DefaultRegistry())
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))

	cfg.Chain.ChainID = 1
	_, err = cfg.Network(asset.DefaultRegistry())
	assert.Equal(t, apperror.CodeUnsupportedNetwork, apperror.GetCode(err))
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farm.yaml")
	body := `
chain:
  chain_id: 56
  farm_addresses:
    "56": "` + testMainFarm + `"
    "97": "` + testFarm + `"
  http_url: "http://localhost:8545"
pricing:
  requests_per_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, asset.ChainIDBSC, cfg.Chain.ChainID)
	assert.Equal(t, 30, cfg.Pricing.RequestsPerMinute)
	assert.False(t, cfg.Wallet.Connected())

	n, err := cfg.Network(asset.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", n.RPCURL)
	assert.Equal(t, "bsc-main", n.Name)
	assert.Equal(t, common.HexToAddress(testMainFarm), n.Farm)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Chain:     ChainConfig{ChainID: 97, FarmAddress: testFarm},
			Pricing:   PricingConfig{BaseURL: "http://x"},
			Dashboard: DashboardConfig{ReadConcurrency: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unsupported_chain", func(c *Config) { c.Chain.ChainID = 1 }, true},
		{"missing_farm", func(c *Config) { c.Chain.FarmAddress = "" }, true},
		{"farm_for_other_chain_only", func(c *Config) {
			c.Chain.FarmAddress = ""
			c.Chain.FarmAddresses = map[string]string{"56": testMainFarm}
		}, true},
		{"farm_from_deployments", func(c *Config) {
			c.Chain.FarmAddress = ""
			c.Chain.FarmAddresses = map[string]string{"97": testFarm}
		}, false},
		{"bad_deployment_key", func(c *Config) { c.Chain.FarmAddresses = map[string]string{"bsc": testFarm} }, true},
		{"unsupported_deployment_chain", func(c *Config) { c.Chain.FarmAddresses = map[string]string{"1": testFarm} }, true},
		{"bad_deployment_address", func(c *Config) { c.Chain.FarmAddresses = map[string]string{"56": "0x12"} }, true},
		{"bad_private_key", func(c *Config) { c.Wallet.PrivateKey = "zz" }, true},
		{"prefixed_private_key", func(c *Config) { c.Wallet.PrivateKey = "0x" + testKey }, false},
		{"bad_watch_address", func(c *Config) { c.Wallet.Address = "nope" }, true},
		{"zero_concurrency", func(c *Config) { c.Dashboard.ReadConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWalletConfig_AccountAddress(t *testing.T) {
	w := WalletConfig{PrivateKey: testKey}
	assert.True(t, w.CanSign())
	assert.Equal(t, common.HexToAddress(testKeyAddr), w.AccountAddress())

	watch := WalletConfig{Address: testFarm}
	assert.Equal(t, common.HexToAddress(testFarm), watch.AccountAddress())
}
