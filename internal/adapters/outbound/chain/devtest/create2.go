package devtest

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Minimal proxy (EIP-1167) creation code around the implementation address.
const (
	cloneCodePrefix = "3d602d80600a3d3981f3363d3d373d3d3d363d73"
	cloneCodeSuffix = "5af43d82803e903d91602b57fd5bf3"
)

func keccak256(parts ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, part := range parts {
		hash.Write(part)
	}
	return hash.Sum(nil)
}

func create2Address(deployer []byte, salt []byte, initCodeHash []byte) []byte {
	return keccak256([]byte{0xff}, deployer, salt, initCodeHash)[12:]
}

func cloneInitCode(implementation []byte) []byte {
	prefix, _ := hex.DecodeString(cloneCodePrefix)
	suffix, _ := hex.DecodeString(cloneCodeSuffix)
	code := make([]byte, 0, len(prefix)+len(implementation)+len(suffix))
	code = append(code, prefix...)
	code = append(code, implementation...)
	return append(code, suffix...)
}

func decodeHex(raw string) ([]byte, bool) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func encodeHex(raw []byte) string {
	return "0x" + hex.EncodeToString(raw)
}
