package asset_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fd1az/savvy-farm/internal/asset"
)

func TestDefaultRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	test, ok := r.Get(asset.DefaultChainID)
	if !ok {
		t.Fatal("expected default network to be registered")
	}
	if test.Name != "bsc-test" {
		t.Errorf("expected bsc-test, got %s", test.Name)
	}
	if test.HasFarm() {
		t.Error("expected farm address to be unset by default")
	}

	main, ok := r.Get(asset.ChainIDBSC)
	if !ok || main.Name != "bsc-main" {
		t.Errorf("expected bsc-main with chain id 56, got %+v", main)
	}

	if _, ok := r.Get(1); ok {
		t.Error("expected ethereum mainnet to be unknown")
	}

	all := r.All()
	if len(all) != 2 || all[0].ChainID != 56 || all[1].ChainID != 97 {
		t.Errorf("unexpected ordering: %+v", all)
	}
}

func TestRegistry_SetFarm(t *testing.T) {
	r := asset.DefaultRegistry()
	farm := common.HexToAddress("0x00000000000000000000000000000000000000f1")

	if err := r.SetFarm(asset.ChainIDBSCTestnet, farm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := r.Get(asset.ChainIDBSCTestnet)
	if n.Farm != farm || !n.HasFarm() {
		t.Errorf("expected farm %s, got %s", farm.Hex(), n.Farm.Hex())
	}

	if err := r.SetFarm(1, farm); err == nil {
		t.Error("expected error for unknown chain")
	}
}

func TestNetwork_TxURL(t *testing.T) {
	n := asset.Network{ExplorerURL: "https://testnet.bscscan.com"}
	h := common.HexToHash("0x01")

	want := "https://testnet.bscscan.com/tx/" + h.Hex()
	if got := n.TxURL(h); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if (asset.Network{}).TxURL(h) != "" {
		t.Error("expected empty url without explorer")
	}
}
