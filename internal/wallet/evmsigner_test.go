package wallet

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

const (
	testPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddressHex    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewEVMSignerFromEnvUsesPrivateKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, testPrivateKeyHex)
	signer, err := NewEVMSignerFromEnv(KeySourceEnv)
	if err != nil {
		t.Fatalf("NewEVMSignerFromEnv: %v", err)
	}
	if got := signer.AddressHex(); got != testAddressHex {
		t.Fatalf("address = %s, want %s", got, testAddressHex)
	}
}

func TestNewEVMSignerFromEnvAcceptsHexPrefix(t *testing.T) {
	t.Setenv(EnvPrivateKey, "0x"+testPrivateKeyHex)
	signer, err := NewEVMSignerFromEnv(KeySourceEnv)
	if err != nil {
		t.Fatalf("NewEVMSignerFromEnv: %v", err)
	}
	if got := signer.AddressHex(); got != testAddressHex {
		t.Fatalf("address = %s, want %s", got, testAddressHex)
	}
}

func TestNewEVMSignerFromEnvMissingKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvPrivateKeyFile, "")
	t.Setenv(EnvKeystorePath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if _, err := NewEVMSignerFromEnv(KeySourceEnv); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestNewEVMSignerFromEnvRejectsUnknownSource(t *testing.T) {
	if _, err := NewEVMSignerFromEnv("vault"); err == nil {
		t.Fatal("expected error for unknown key source")
	}
}

func TestEVMSignerSignTx(t *testing.T) {
	signer, err := NewEVMSigner(EVMSignerConfig{PrivateKeyHex: testPrivateKeyHex})
	if err != nil {
		t.Fatalf("NewEVMSigner: %v", err)
	}
	chainID := big.NewInt(8453)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(3_000_000_000),
		Gas:       21_000,
	})
	signed, err := signer.SignTx(chainID, tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from.Hex() != testAddressHex {
		t.Fatalf("sender = %s, want %s", from.Hex(), testAddressHex)
	}
}

func TestLoadSolanaKeyMissing(t *testing.T) {
	t.Setenv(EnvSolanaPrivateKey, "")
	t.Setenv(EnvSolanaKeygenFile, "")
	if _, err := loadSolanaKey(); err == nil {
		t.Fatal("expected error for missing solana key")
	}
}

func TestLoadSolanaKeyInvalidBase58(t *testing.T) {
	t.Setenv(EnvSolanaPrivateKey, "not-a-key!!")
	_, err := loadSolanaKey()
	if err == nil || !strings.Contains(err.Error(), "parse solana private key") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
