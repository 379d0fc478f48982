package evm

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// LoadKeystoreSigner decrypts a web3 secret-storage JSON file.
func LoadKeystoreSigner(path string, password string) (*ecdsa.PrivateKey, error) {
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signer keystore: %w", err)
	}
	key, err := keystore.DecryptKey(encrypted, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt signer keystore: %w", err)
	}
	return key.PrivateKey, nil
}
