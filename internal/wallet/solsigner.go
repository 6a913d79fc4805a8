package wallet

import (
	"fmt"
	"os"
	"strings"

	sol "github.com/gagliardetto/solana-go"
)

const (
	EnvSolanaPrivateKey = "DEFI_AGENT_SOLANA_PRIVATE_KEY"
	EnvSolanaKeygenFile = "DEFI_AGENT_SOLANA_KEYGEN_FILE"
)

// loadSolanaKey reads the ed25519 key from the environment: base58 first,
// then a solana-keygen JSON file.
func loadSolanaKey() (sol.PrivateKey, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvSolanaPrivateKey)); raw != "" {
		key, err := sol.PrivateKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("parse solana private key: %w", err)
		}
		return key, nil
	}
	if path := strings.TrimSpace(os.Getenv(EnvSolanaKeygenFile)); path != "" {
		key, err := sol.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, fmt.Errorf("read solana keygen file: %w", err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("missing solana signing key: set %s or %s", EnvSolanaPrivateKey, EnvSolanaKeygenFile)
}
